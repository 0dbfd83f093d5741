// Package config defines the gateway configuration model and loads it
// from the environment at process startup. The resulting GatewayConfig
// is immutable for the lifetime of the process.
package config
