package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvHost       = "GATEWAY_HOST"
	EnvPort       = "GATEWAY_PORT"
	EnvTimeout    = "GATEWAY_TIMEOUT"
	EnvMaxBody    = "GATEWAY_MAX_BODY_SIZE"
	EnvLogLevel   = "GATEWAY_LOG_LEVEL"
	EnvRoutesFile = "GATEWAY_ROUTES_FILE"
)

// serviceEnvVars enumerate the well-known backend URL variables. The
// presence of each registers a route with prefix /api/<name> and prefix
// stripping enabled. Order here is the route table's matching order.
var serviceEnvVars = []struct {
	envVar string
	name   string
}{
	{"SERVICE1_URL", "service1"},
	{"SERVICE2_URL", "service2"},
}

// FromEnv loads the gateway configuration from environment variables.
// Routes come from the SERVICEn_URL variables, followed by any routes
// declared in the optional GATEWAY_ROUTES_FILE YAML file, in file order.
func FromEnv() (*GatewayConfig, error) {
	port, err := getEnvInt(EnvPort, DefaultPort)
	if err != nil {
		return nil, err
	}

	timeoutSec, err := getEnvInt(EnvTimeout, int(DefaultTimeout/time.Second))
	if err != nil {
		return nil, err
	}

	maxBody, err := getEnvInt(EnvMaxBody, DefaultMaxBodySize)
	if err != nil {
		return nil, err
	}

	cfg := &GatewayConfig{
		Host:        getEnvOrDefault(EnvHost, DefaultHost),
		Port:        port,
		Timeout:     time.Duration(timeoutSec) * time.Second,
		MaxBodySize: int64(maxBody),
		LogLevel:    getEnvOrDefault(EnvLogLevel, DefaultLogLevel),
	}

	for _, svc := range serviceEnvVars {
		targetURL := os.Getenv(svc.envVar)
		if targetURL == "" {
			continue
		}
		cfg.Routes = append(cfg.Routes, ServiceRoute{
			Name:        svc.name,
			Prefix:      "/api/" + svc.name,
			TargetURL:   targetURL,
			StripPrefix: true,
		})
	}

	if routesFile := os.Getenv(EnvRoutesFile); routesFile != "" {
		routes, err := loadRoutesFile(routesFile)
		if err != nil {
			return nil, err
		}
		cfg.Routes = append(cfg.Routes, routes...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// routesFile is the YAML document structure for GATEWAY_ROUTES_FILE.
type routesFile struct {
	Routes []routeEntry `yaml:"routes"`
}

// routeEntry is a single route declaration. Timeout is in whole seconds,
// matching GATEWAY_TIMEOUT.
type routeEntry struct {
	Name        string `yaml:"name"`
	Prefix      string `yaml:"prefix"`
	TargetURL   string `yaml:"target_url"`
	StripPrefix *bool  `yaml:"strip_prefix"`
	Timeout     int    `yaml:"timeout"`
}

// loadRoutesFile parses the YAML routes file, preserving declaration
// order. strip_prefix defaults to true when omitted.
func loadRoutesFile(path string) ([]ServiceRoute, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file %s: %w", path, err)
	}

	var file routesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse routes file %s: %w", path, err)
	}

	routes := make([]ServiceRoute, 0, len(file.Routes))
	for _, entry := range file.Routes {
		stripPrefix := true
		if entry.StripPrefix != nil {
			stripPrefix = *entry.StripPrefix
		}
		routes = append(routes, ServiceRoute{
			Name:        entry.Name,
			Prefix:      entry.Prefix,
			TargetURL:   entry.TargetURL,
			StripPrefix: stripPrefix,
			Timeout:     time.Duration(entry.Timeout) * time.Second,
		})
	}

	return routes, nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q", key, value)
	}
	return n, nil
}
