package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 << 20 // 10 MB
	DefaultLogLevel    = "INFO"
)

// ServiceRoute maps a URL prefix to a backend service. Routes are
// immutable after construction.
type ServiceRoute struct {
	// Name uniquely identifies the backend service.
	Name string

	// Prefix is the leading path segment the route claims. Must start
	// with "/". Matching is literal string prefix comparison.
	Prefix string

	// TargetURL is the base URL of the backend service.
	TargetURL string

	// StripPrefix controls whether the prefix is removed before
	// forwarding (the canonical /api root is substituted).
	StripPrefix bool

	// Timeout overrides the global request timeout when positive.
	// Zero means "use the global default".
	Timeout time.Duration
}

// EffectiveTimeout returns the route's timeout override if set, else
// the given global default.
func (r ServiceRoute) EffectiveTimeout(global time.Duration) time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return global
}

// GatewayConfig holds the global gateway configuration. It is built once
// from the environment at startup and treated as read-only afterwards.
type GatewayConfig struct {
	Host        string
	Port        int
	Timeout     time.Duration
	MaxBodySize int64
	LogLevel    string
	Routes      []ServiceRoute
}

// Addr returns the listen address in host:port form.
func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the configuration for consistency. Route names must be
// unique: duplicates would make the routing table ambiguous, so they are
// rejected outright rather than silently tolerated.
func (c *GatewayConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}

	seen := make(map[string]bool, len(c.Routes))
	for _, route := range c.Routes {
		if err := validateRoute(route); err != nil {
			return err
		}
		if seen[route.Name] {
			return fmt.Errorf("duplicate route name %q", route.Name)
		}
		seen[route.Name] = true
	}

	return nil
}

// validateRoute checks a single service route.
func validateRoute(route ServiceRoute) error {
	if route.Name == "" {
		return fmt.Errorf("route with prefix %q has no name", route.Prefix)
	}
	if !strings.HasPrefix(route.Prefix, "/") {
		return fmt.Errorf("route %q: prefix %q must start with /", route.Name, route.Prefix)
	}
	if route.Timeout < 0 {
		return fmt.Errorf("route %q: timeout must not be negative (zero selects the global default)", route.Name)
	}

	u, err := url.Parse(route.TargetURL)
	if err != nil {
		return fmt.Errorf("route %q: invalid target URL %q: %w", route.Name, route.TargetURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("route %q: target URL %q must be absolute http(s)", route.Name, route.TargetURL)
	}
	if u.Host == "" {
		return fmt.Errorf("route %q: target URL %q has no host", route.Name, route.TargetURL)
	}

	return nil
}
