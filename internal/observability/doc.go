// Package observability provides structured logging for the API Gateway.
package observability
