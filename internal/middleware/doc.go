// Package middleware provides gin middleware for the API Gateway:
// request IDs, structured request logging, panic recovery, and HTTP
// metrics.
package middleware
