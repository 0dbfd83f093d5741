package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/svcgw/apigateway/internal/config"
	"github.com/svcgw/apigateway/internal/middleware"
	"github.com/svcgw/apigateway/internal/observability"
	"github.com/svcgw/apigateway/internal/proxy"
	"github.com/svcgw/apigateway/internal/router"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race
// conditions.
var ginModeOnce sync.Once

// Server is the API Gateway HTTP server. Its configuration and route
// table are fixed at construction and shared by all request goroutines
// without synchronization.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	cfg        *config.GatewayConfig
	table      *router.Table
	logger     observability.Logger
	version    string

	forwarderOpts []proxy.ForwarderOption
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*Server)

// WithForwarderOptions forwards options to the underlying proxy
// forwarder (used by tests to inject transports).
func WithForwarderOptions(opts ...proxy.ForwarderOption) ServerOption {
	return func(s *Server) {
		s.forwarderOpts = append(s.forwarderOpts, opts...)
	}
}

// NewServer builds the full gateway handler chain: request-id, logging,
// recovery and metrics middleware, the gateway-owned endpoints, and the
// dispatcher as the catch-all for everything else.
func NewServer(cfg *config.GatewayConfig, version string, logger observability.Logger, opts ...ServerOption) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		cfg:     cfg,
		table:   router.NewTable(cfg.Routes),
		logger:  logger,
		version: version,
	}

	for _, opt := range opts {
		opt(s)
	}

	forwarder := proxy.NewForwarder(cfg.Timeout,
		append([]proxy.ForwarderOption{proxy.WithLogger(logger.Named("proxy"))}, s.forwarderOpts...)...)
	dispatcher := NewDispatcher(s.table, forwarder, logger.Named("dispatcher"))
	status := newStatusHandler(s.table, version)

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logging(logger.Named("http"), s.table),
		middleware.Recovery(logger),
		middleware.Metrics(),
	)

	engine.GET("/health", status.health)
	engine.GET("/api/gateway/status", status.status)
	engine.GET("/api/gateway/services", status.services)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Everything else, any method, goes through the dispatcher.
	engine.NoRoute(dispatcher.Handle)

	s.engine = engine
	return s
}

// Handler returns the gateway's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Table returns the immutable route table.
func (s *Server) Table() *router.Table {
	return s.table
}

// Start binds the listen address and serves until Shutdown. A bind
// failure is returned to the caller and is fatal at startup.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server",
		observability.String("address", s.cfg.Addr()),
		observability.Duration("timeout", s.cfg.Timeout),
		observability.Int("routes", len(s.cfg.Routes)),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully, waiting for in-flight requests
// up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("stopping HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
