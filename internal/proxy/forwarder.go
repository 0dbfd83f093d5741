package proxy

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/svcgw/apigateway/internal/config"
	"github.com/svcgw/apigateway/internal/observability"
)

// connectTimeout is the fixed connect-phase deadline. A slow-to-connect
// backend fails fast even when the overall timeout budget is large.
const connectTimeout = 5 * time.Second

// copyBufferSize bounds the memory used to relay a response body.
const copyBufferSize = 32 * 1024

// Forwarder issues outbound calls to backend services. One attempt per
// request, a single configured target per route.
type Forwarder struct {
	client         *http.Client
	defaultTimeout time.Duration
	logger         observability.Logger
}

// ForwarderOption is a functional option for configuring the forwarder.
type ForwarderOption func(*Forwarder)

// WithLogger sets the logger for the forwarder.
func WithLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithTransport sets the transport for outbound calls.
func WithTransport(transport http.RoundTripper) ForwarderOption {
	return func(f *Forwarder) {
		f.client = &http.Client{Transport: transport}
	}
}

// NewForwarder creates a forwarder with the given global default
// timeout. The default transport enforces the fixed connect deadline and
// relays bodies verbatim (no transparent decompression).
func NewForwarder(defaultTimeout time.Duration, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		defaultTimeout: defaultTimeout,
		logger:         observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   connectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				DisableCompression:  true,
			},
			// Redirects are relayed to the caller, not followed.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return f
}

// Forward sends the inbound request to the route's backend and streams
// the response back to w. The inbound body is read in full before the
// outbound call; the response body is relayed incrementally. Failures
// before the response starts are returned as a tagged ForwardError and
// never written to w, so the dispatcher performs the classification.
func (f *Forwarder) Forward(
	w http.ResponseWriter,
	r *http.Request,
	route *config.ServiceRoute,
	backendPath, requestID, clientIP string,
) *ForwardError {
	targetURL := strings.TrimRight(route.TargetURL, "/") + backendPath
	if r.URL.RawQuery != "" {
		targetURL = targetURL + "?" + r.URL.RawQuery
	}

	timeout := route.EffectiveTimeout(f.defaultTimeout)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return f.failure(err, route, targetURL, timeout)
	}

	// The inbound request context is the parent, so a client disconnect
	// cancels the in-flight outbound call.
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, targetURL, bytes.NewReader(body))
	if err != nil {
		return f.failure(err, route, targetURL, timeout)
	}

	req.Header = FilterOutbound(r.Header, clientIP, r.Host)
	req.Header.Set(HeaderXRequestID, requestID)

	start := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		return f.failure(err, route, targetURL, timeout)
	}
	defer func() { _ = resp.Body.Close() }()

	durationMs := time.Since(start).Milliseconds()
	getProxyMetrics().backendDuration.WithLabelValues(route.Name).
		Observe(time.Since(start).Seconds())

	f.logger.Info("proxied request",
		observability.String("request_id", requestID),
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.String("target_service", route.Name),
		observability.String("target_url", targetURL),
		observability.Int("status_code", resp.StatusCode),
		observability.Int64("duration_ms", durationMs),
		observability.String("client_ip", clientIP),
	)

	f.relayResponse(w, resp, route, requestID)
	return nil
}

// relayResponse writes the backend response to the caller, stripping
// hop-by-hop headers and streaming the body with bounded memory.
func (f *Forwarder) relayResponse(
	w http.ResponseWriter,
	resp *http.Response,
	route *config.ServiceRoute,
	requestID string,
) {
	header := w.Header()
	for key, values := range FilterInbound(resp.Header) {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if err := copyWithFlush(w, resp.Body); err != nil {
		// Headers are already sent; the failure can only be logged.
		f.logger.Warn("response relay interrupted",
			observability.String("request_id", requestID),
			observability.String("target_service", route.Name),
			observability.Error(err),
		)
	}
}

// failure classifies a transport error, records it, and wraps it as a
// tagged ForwardError for the dispatcher.
func (f *Forwarder) failure(
	err error,
	route *config.ServiceRoute,
	targetURL string,
	timeout time.Duration,
) *ForwardError {
	kind := classifyFailure(err)
	getProxyMetrics().errorsTotal.WithLabelValues(route.Name, kind.String()).Inc()

	return &ForwardError{
		Kind:    kind,
		Route:   route.Name,
		Target:  targetURL,
		Timeout: timeout,
		Err:     err,
	}
}

// copyWithFlush relays src to dst through a fixed-size buffer, flushing
// after every write so a streaming backend reaches a slow client without
// unbounded buffering.
func copyWithFlush(dst http.ResponseWriter, src io.Reader) error {
	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, copyBufferSize)

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
