// Package telemetry wires OpenTelemetry tracing for the okr client.
//
// Tracing is off unless an OTLP endpoint is configured; every helper in this
// package is safe to call against the noop provider.
package telemetry

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the name of the service
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, production)
	Environment string

	// Enabled determines whether tracing is enabled
	// When false, a noop tracer is used
	Enabled bool

	// Endpoint is the OTLP collector endpoint (host:port)
	// If empty, spans are recorded but not exported
	Endpoint string

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns the CLI default: tracing disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "okr",
		ServiceVersion: "dev",
		Environment:    "development",
		Enabled:        false,
		SampleRate:     1.0,
	}
}

// FromEndpoint enables tracing when endpoint is set.
func FromEndpoint(endpoint, version string) Config {
	cfg := DefaultConfig()
	if version != "" {
		cfg.ServiceVersion = version
	}
	if endpoint != "" {
		cfg.Enabled = true
		cfg.Endpoint = endpoint
		cfg.Environment = "production"
	}
	return cfg
}
