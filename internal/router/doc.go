// Package router matches request paths to configured backend routes and
// rewrites paths for forwarding.
package router
