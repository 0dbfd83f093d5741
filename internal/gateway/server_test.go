package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcgw/apigateway/internal/config"
	"github.com/svcgw/apigateway/internal/observability"
	"github.com/svcgw/apigateway/internal/proxy"
)

const testVersion = "1.2.3"

// newTestServer builds a gateway over the given routes with a 30s
// global timeout.
func newTestServer(t *testing.T, routes ...config.ServiceRoute) *Server {
	t.Helper()

	cfg := &config.GatewayConfig{
		Host:        "127.0.0.1",
		Port:        8000,
		Timeout:     30 * time.Second,
		MaxBodySize: config.DefaultMaxBodySize,
		LogLevel:    "INFO",
		Routes:      routes,
	}
	require.NoError(t, cfg.Validate())

	return NewServer(cfg, testVersion, observability.NopLogger())
}

func doRequest(srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var health HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "api-gateway", health.Service)
	assert.Equal(t, testVersion, health.Version)
	assert.WithinDuration(t, time.Now().UTC(), health.Timestamp, time.Minute)
}

func TestHealthNeverForwards(t *testing.T) {
	t.Parallel()

	backendHit := false
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHit = true
	}))
	defer backend.Close()

	// A route whose prefix matches /health must not capture it.
	srv := newTestServer(t, config.ServiceRoute{
		Name: "greedy", Prefix: "/h", TargetURL: backend.URL, StripPrefix: true,
	})

	rec := doRequest(srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.False(t, backendHit)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t,
		config.ServiceRoute{Name: "service1", Prefix: "/api/service1", TargetURL: "http://service1:8000", StripPrefix: true},
		config.ServiceRoute{Name: "service2", Prefix: "/api/service2", TargetURL: "http://service2:8000", StripPrefix: true},
	)

	rec := doRequest(srv, http.MethodGet, "/api/gateway/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status GatewayStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, testVersion, status.Version)
	require.Len(t, status.Services, 2)
	assert.Equal(t, ServiceInfo{Name: "service1", Prefix: "/api/service1", Status: "configured"}, status.Services[0])
	assert.Equal(t, ServiceInfo{Name: "service2", Prefix: "/api/service2", Status: "configured"}, status.Services[1])
}

func TestServicesEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t,
		config.ServiceRoute{Name: "service1", Prefix: "/api/service1", TargetURL: "http://service1:8000", StripPrefix: true},
	)

	rec := doRequest(srv, http.MethodGet, "/api/gateway/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var services []ServiceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &services))
	require.Len(t, services, 1)
	assert.Equal(t, "service1", services[0].Name)
	assert.Equal(t, "configured", services[0].Status)
}

func TestUnknownPathReturns404Envelope(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t,
		config.ServiceRoute{Name: "service1", Prefix: "/api/service1", TargetURL: "http://service1:8000", StripPrefix: true},
	)

	for _, path := range []string{"/api/service3/x", "/unknown", "/api/gateway/bogus"} {
		rec := doRequest(srv, http.MethodGet, path, nil)

		require.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		envelope := decodeEnvelope(t, rec)
		assert.Equal(t, ErrorNotFound, envelope.Error)
		assert.Equal(t, path, envelope.Path)
		assert.Equal(t, http.StatusNotFound, envelope.StatusCode)
	}
}

func TestForwardedRequest(t *testing.T) {
	t.Parallel()

	var seenPath, seenRequestID string
	var seenBody []byte
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		seenRequestID = r.Header.Get("X-Request-ID")
		seenBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer backend.Close()

	srv := newTestServer(t, config.ServiceRoute{
		Name: "service1", Prefix: "/api/service1", TargetURL: backend.URL, StripPrefix: true,
	})

	rec := doRequest(srv, http.MethodPost, "/api/service1/orders", strings.NewReader(`{"item":"book"}`))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/orders", seenPath)
	assert.Equal(t, `{"item":"book"}`, string(seenBody))
	assert.Equal(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// The outbound request id matches the one returned to the caller.
	assert.NotEmpty(t, seenRequestID)
	assert.Equal(t, seenRequestID, rec.Header().Get("X-Request-ID"))
}

func TestForwardedPrefixRootRewritesToAPIRoot(t *testing.T) {
	t.Parallel()

	var seenPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
	}))
	defer backend.Close()

	srv := newTestServer(t, config.ServiceRoute{
		Name: "service1", Prefix: "/api/service1", TargetURL: backend.URL, StripPrefix: true,
	})

	rec := doRequest(srv, http.MethodGet, "/api/service1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api", seenPath)
}

func TestBackendRefusedReturns503(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := backend.URL
	backend.Close()

	srv := newTestServer(t, config.ServiceRoute{
		Name: "service1", Prefix: "/api/service1", TargetURL: target, StripPrefix: true,
	})

	rec := doRequest(srv, http.MethodGet, "/api/service1/orders", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, ErrorServiceUnavailable, envelope.Error)
	assert.Contains(t, envelope.Message, "service1")
	assert.Equal(t, "/api/service1/orders", envelope.Path)
}

func TestBackendTimeoutReturns504(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer backend.Close()
	defer close(release)

	srv := newTestServer(t, config.ServiceRoute{
		Name:        "service1",
		Prefix:      "/api/service1",
		TargetURL:   backend.URL,
		StripPrefix: true,
		Timeout:     1 * time.Second,
	})

	rec := doRequest(srv, http.MethodGet, "/api/service1/slow", nil)

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, ErrorGatewayTimeout, envelope.Error)
	// The message names the effective (route override) timeout.
	assert.Contains(t, envelope.Message, "timed out after 1 seconds")
	assert.Equal(t, "/api/service1/slow", envelope.Path)
}

func TestFirstMatchWinsEndToEnd(t *testing.T) {
	t.Parallel()

	var broadHits, specificHits int
	var mu sync.Mutex
	broad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		broadHits++
		mu.Unlock()
	}))
	defer broad.Close()
	specific := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		specificHits++
		mu.Unlock()
	}))
	defer specific.Close()

	srv := newTestServer(t,
		config.ServiceRoute{Name: "broad", Prefix: "/api/service1", TargetURL: broad.URL, StripPrefix: true},
		config.ServiceRoute{Name: "specific", Prefix: "/api/service1/special", TargetURL: specific.URL, StripPrefix: true},
	)

	rec := doRequest(srv, http.MethodGet, "/api/service1/special/x", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, broadHits)
	assert.Equal(t, 0, specificHits)
}

func TestAllMethodsForwarded(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seenMethods := map[string]bool{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seenMethods[r.Method] = true
		mu.Unlock()
	}))
	defer backend.Close()

	srv := newTestServer(t, config.ServiceRoute{
		Name: "service1", Prefix: "/api/service1", TargetURL: backend.URL, StripPrefix: true,
	})

	methods := []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodDelete, http.MethodPatch, http.MethodHead, http.MethodOptions,
	}
	for _, method := range methods {
		rec := doRequest(srv, method, "/api/service1/x", nil)
		require.Equal(t, http.StatusOK, rec.Code, "method %s", method)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, method := range methods {
		assert.True(t, seenMethods[method], "backend never saw %s", method)
	}
}

func TestConcurrentRequestsAreIndependent(t *testing.T) {
	t.Parallel()

	slowRelease := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-slowRelease
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fast"))
	}))
	defer fast.Close()

	srv := newTestServer(t,
		config.ServiceRoute{Name: "slow", Prefix: "/api/slow", TargetURL: slow.URL, StripPrefix: true},
		config.ServiceRoute{Name: "fast", Prefix: "/api/fast", TargetURL: fast.URL, StripPrefix: true},
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		doRequest(srv, http.MethodGet, "/api/slow/x", nil)
	}()

	// While the slow backend holds its request open, the fast route
	// must still answer promptly.
	start := time.Now()
	rec := doRequest(srv, http.MethodGet, "/api/fast/x", nil)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fast", rec.Body.String())
	assert.Less(t, elapsed, 2*time.Second)

	close(slowRelease)
	wg.Wait()
}

func TestClientDisconnectCancelsOutbound(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	canceled := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		select {
		case <-r.Context().Done():
			close(canceled)
		case <-time.After(5 * time.Second):
		}
	}))
	defer backend.Close()

	srv := newTestServer(t, config.ServiceRoute{
		Name: "service1", Prefix: "/api/service1", TargetURL: backend.URL, StripPrefix: true,
	})

	// A live server so the client can actually drop the connection.
	gw := httptest.NewServer(srv.Handler())
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gw.URL+"/api/service1/slow", nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := gw.Client().Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("backend never saw the forwarded request")
	}

	// Dropping the client must tear down the in-flight backend call.
	cancel()

	select {
	case <-canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("backend request context still live after client disconnect")
	}
	<-done
}

func TestQueryStringForwardedVerbatim(t *testing.T) {
	t.Parallel()

	var seenQuery string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenQuery = r.URL.RawQuery
	}))
	defer backend.Close()

	srv := newTestServer(t, config.ServiceRoute{
		Name: "service1", Prefix: "/api/service1", TargetURL: backend.URL, StripPrefix: true,
	})

	rec := doRequest(srv, http.MethodGet, "/api/service1/orders?status=open&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "status=open&page=2", seenQuery)
}

// brokenTransport fails every round trip with a non-network error.
type brokenTransport struct{}

func (brokenTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errInjected
}

var errInjected = errors.New("injected transport failure")

func TestOtherForwardingFailureReturns502(t *testing.T) {
	t.Parallel()

	cfg := &config.GatewayConfig{
		Host:    "127.0.0.1",
		Port:    8000,
		Timeout: 30 * time.Second,
		Routes: []config.ServiceRoute{
			{Name: "service1", Prefix: "/api/service1", TargetURL: "http://service1:8000", StripPrefix: true},
		},
	}
	require.NoError(t, cfg.Validate())

	srv := NewServer(cfg, testVersion, observability.NopLogger(),
		WithForwarderOptions(proxy.WithTransport(brokenTransport{})))

	rec := doRequest(srv, http.MethodGet, "/api/service1/x", nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, ErrorBadGateway, envelope.Error)
	assert.Contains(t, envelope.Message, "service1")
	assert.Contains(t, envelope.Message, "injected transport failure")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
