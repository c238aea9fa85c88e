// Package api is the HTTP boundary to the objectives backend.
//
// Every request carries the bearer token held in persistent storage, and every
// failure comes back as an *Error whose message is fit to show a user.
package api

import (
	"time"
)

const (
	// DefaultBaseURL is used when no API URL is configured.
	DefaultBaseURL = "http://localhost:3000/api"

	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the client-side request budget per second.
	DefaultRateLimit = 20

	// DefaultBurst is the client-side burst allowance.
	DefaultBurst = 40

	// maxBodyBytes caps the response body the client will read.
	maxBodyBytes = 10 << 20
)

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Timeout bounds each request, including reading the body.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64

	// Burst is the limiter bucket size. Defaults to DefaultBurst.
	Burst int
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   DefaultTimeout,
		UserAgent: "okr-cli",
		RateLimit: DefaultRateLimit,
		Burst:     DefaultBurst,
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "okr-cli"
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	return c
}
