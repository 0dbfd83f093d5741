package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/svcgw/apigateway/internal/proxy"
)

// ErrorCode is the taxonomy code carried in the error envelope.
type ErrorCode string

// Gateway error codes.
const (
	ErrorNotFound           ErrorCode = "not_found"
	ErrorBadGateway         ErrorCode = "bad_gateway"
	ErrorServiceUnavailable ErrorCode = "service_unavailable"
	ErrorGatewayTimeout     ErrorCode = "gateway_timeout"

	// ErrorPayloadTooLarge is reserved for a request body size limit.
	// No forwarding code path enforces it yet; the limit in
	// GatewayConfig.MaxBodySize is carried but unused.
	ErrorPayloadTooLarge ErrorCode = "payload_too_large"
)

// ErrorResponse is the uniform JSON error envelope. It is constructed at
// the point of failure and serialized directly to the response body.
type ErrorResponse struct {
	Error      ErrorCode `json:"error"`
	Message    string    `json:"message"`
	Path       string    `json:"path"`
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"status_code"`
}

// newErrorResponse builds an envelope with a UTC timestamp.
func newErrorResponse(code ErrorCode, message, path string, statusCode int) ErrorResponse {
	return ErrorResponse{
		Error:      code,
		Message:    message,
		Path:       path,
		Timestamp:  time.Now().UTC(),
		StatusCode: statusCode,
	}
}

// notFoundError builds the 404 envelope for an unrouted path.
func notFoundError(path string) ErrorResponse {
	return newErrorResponse(
		ErrorNotFound,
		fmt.Sprintf("No route found for path: %s", path),
		path,
		http.StatusNotFound,
	)
}

// serviceUnavailableError builds the 503 envelope for an unreachable
// backend.
func serviceUnavailableError(serviceName, path string) ErrorResponse {
	return newErrorResponse(
		ErrorServiceUnavailable,
		fmt.Sprintf("Backend service '%s' is not responding", serviceName),
		path,
		http.StatusServiceUnavailable,
	)
}

// gatewayTimeoutError builds the 504 envelope, naming the effective
// timeout actually applied to the request.
func gatewayTimeoutError(serviceName string, timeout time.Duration, path string) ErrorResponse {
	return newErrorResponse(
		ErrorGatewayTimeout,
		fmt.Sprintf("Request to '%s' timed out after %d seconds", serviceName, int(timeout.Seconds())),
		path,
		http.StatusGatewayTimeout,
	)
}

// badGatewayError builds the 502 envelope for any other forwarding
// failure.
func badGatewayError(serviceName, cause, path string) ErrorResponse {
	return newErrorResponse(
		ErrorBadGateway,
		fmt.Sprintf("Error forwarding request to '%s': %s", serviceName, cause),
		path,
		http.StatusBadGateway,
	)
}

// mapForwardError converts a tagged forwarding failure into the envelope
// and matching HTTP status. A canceled call means the inbound client is
// gone; the 502 envelope is produced anyway so every terminal state has
// a deterministic response.
func mapForwardError(ferr *proxy.ForwardError, path string) ErrorResponse {
	switch ferr.Kind {
	case proxy.FailureConnect:
		return serviceUnavailableError(ferr.Route, path)
	case proxy.FailureTimeout:
		return gatewayTimeoutError(ferr.Route, ferr.Timeout, path)
	default:
		cause := ""
		if ferr.Err != nil {
			cause = ferr.Err.Error()
		}
		return badGatewayError(ferr.Route, cause, path)
	}
}
