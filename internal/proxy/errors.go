package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// FailureKind tags a forwarding failure so the dispatcher can select the
// HTTP status without inspecting error types itself.
type FailureKind int

const (
	// FailureConnect indicates the backend refused the connection or
	// was unreachable at the transport level.
	FailureConnect FailureKind = iota

	// FailureTimeout indicates the backend did not respond within the
	// effective timeout, including connect-phase timeouts.
	FailureTimeout

	// FailureCanceled indicates the inbound client disconnected before
	// the backend responded, canceling the outbound call.
	FailureCanceled

	// FailureOther covers any other forwarding failure.
	FailureOther
)

// String returns the kind name for logging.
func (k FailureKind) String() string {
	switch k {
	case FailureConnect:
		return "connect_failed"
	case FailureTimeout:
		return "timeout"
	case FailureCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// ForwardError is the tagged result of a failed forwarding attempt.
type ForwardError struct {
	Kind    FailureKind
	Route   string        // route name
	Target  string        // target URL
	Timeout time.Duration // effective timeout applied to the request
	Err     error         // underlying transport error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forward error [%s] route=%s target=%s: %v",
			e.Kind, e.Route, e.Target, e.Err)
	}
	return fmt.Sprintf("forward error [%s] route=%s target=%s", e.Kind, e.Route, e.Target)
}

// Unwrap returns the underlying error.
func (e *ForwardError) Unwrap() error {
	return e.Err
}

// classifyFailure maps a transport error to a FailureKind. Timeouts are
// checked before dial failures: a connect-phase timeout counts as a
// timeout, not as an unreachable backend, matching the effective-timeout
// contract.
func classifyFailure(err error) FailureKind {
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return FailureConnect
	}

	return FailureOther
}
