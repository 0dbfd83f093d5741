// Package main is the entry point for the API Gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/svcgw/apigateway/internal/config"
	"github.com/svcgw/apigateway/internal/gateway"
	"github.com/svcgw/apigateway/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// shutdownTimeout bounds how long graceful shutdown waits for in-flight
// requests.
const shutdownTimeout = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logStartup(cfg, logger)

	srv := gateway.NewServer(cfg, version, logger)
	runGateway(srv, logger)
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("apigateway version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger from the configured log level.
func initLogger(cfg *config.GatewayConfig) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: "json",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// logStartup records the effective configuration and every registered
// route.
func logStartup(cfg *config.GatewayConfig, logger observability.Logger) {
	logger.Info("starting API Gateway",
		observability.String("version", version),
		observability.String("host", cfg.Host),
		observability.Int("port", cfg.Port),
		observability.Duration("timeout", cfg.Timeout),
		observability.Int("routes_count", len(cfg.Routes)),
	)

	for _, route := range cfg.Routes {
		logger.Info("registered route",
			observability.String("target_service", route.Name),
			observability.String("prefix", route.Prefix),
			observability.String("target_url", route.TargetURL),
		)
	}
}

// runGateway serves until a termination signal or a fatal server error,
// then shuts down gracefully.
func runGateway(srv *gateway.Server, logger observability.Logger) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", observability.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", observability.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", observability.Error(err))
		}
	}

	logger.Info("API Gateway stopped")
}
