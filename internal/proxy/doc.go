// Package proxy forwards matched requests to backend services and
// classifies forwarding failures.
package proxy
