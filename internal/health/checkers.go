package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/okr/internal/storage"
)

// APIChecker verifies the API base URL answers HTTP. Any response counts as
// reachable; 5xx responses are degraded.
type APIChecker struct {
	baseURL string
	client  *http.Client
}

// NewAPIChecker creates an API reachability checker. A nil client uses http.DefaultClient.
func NewAPIChecker(baseURL string, client *http.Client) *APIChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIChecker{baseURL: baseURL, client: client}
}

// Name returns the checker name.
func (c *APIChecker) Name() string {
	return "api"
}

// Check issues an unauthenticated GET against the base URL.
func (c *APIChecker) Check(ctx context.Context) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Unhealthy(fmt.Sprintf("invalid API URL: %v", err)).WithDetail("url", c.baseURL)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Unhealthy("API did not answer before the deadline").WithDetail("url", c.baseURL)
		}
		return Unhealthy("API is unreachable - is the backend server running?").
			WithDetail("url", c.baseURL).
			WithDetail("error", err.Error())
	}
	resp.Body.Close()

	result := Healthy("API is reachable")
	if resp.StatusCode >= 500 {
		result = Degraded(fmt.Sprintf("API answered with status %d", resp.StatusCode))
	}
	result.Latency = time.Since(start)
	return result.WithDetail("url", c.baseURL).WithDetail("status", resp.StatusCode)
}

// StorageChecker verifies persisted state can be read.
type StorageChecker struct {
	store storage.Store
}

// NewStorageChecker creates a storage checker.
func NewStorageChecker(store storage.Store) *StorageChecker {
	return &StorageChecker{store: store}
}

// Name returns the checker name.
func (c *StorageChecker) Name() string {
	return "storage"
}

// Check reads the session keys and sweeps expired entries.
func (c *StorageChecker) Check(ctx context.Context) *Result {
	for _, key := range []string{storage.KeyAuthToken, storage.KeyCurrentUser, storage.KeyCompanyData} {
		if _, _, err := c.store.Get(key); err != nil {
			return Unhealthy(err.Error()).WithDetail("key", key)
		}
	}
	removed, err := c.store.Cleanup(ctx)
	if err != nil {
		return Unhealthy(err.Error())
	}
	result := Healthy("local state is readable")
	if fs, ok := c.store.(interface{ Path() string }); ok {
		result.WithDetail("path", fs.Path())
	}
	return result.WithDetail("expired_removed", removed)
}

// TokenSource exposes the held bearer token and its expiry.
type TokenSource interface {
	Token() string
	TokenExpiry() (time.Time, bool)
}

// SessionChecker reports whether a usable token is held.
type SessionChecker struct {
	source TokenSource
	warn   time.Duration
	now    func() time.Time
}

// NewSessionChecker creates a session checker. Tokens expiring within a day are degraded.
func NewSessionChecker(source TokenSource) *SessionChecker {
	return &SessionChecker{source: source, warn: 24 * time.Hour, now: time.Now}
}

// Name returns the checker name.
func (c *SessionChecker) Name() string {
	return "session"
}

// Check inspects the token's expiry claim. The token is not sent to the server.
func (c *SessionChecker) Check(ctx context.Context) *Result {
	if c.source.Token() == "" {
		return Degraded("not signed in - run 'okr auth login'")
	}
	exp, ok := c.source.TokenExpiry()
	if !ok {
		return Healthy("signed in; token carries no expiry")
	}

	left := exp.Sub(c.now())
	switch {
	case left <= 0:
		return Unhealthy("token has expired - run 'okr auth login'").WithDetail("expires_at", exp.Format(time.RFC3339))
	case left < c.warn:
		return Degraded(fmt.Sprintf("token expires in %s", left.Round(time.Minute))).WithDetail("expires_at", exp.Format(time.RFC3339))
	default:
		return Healthy("signed in").WithDetail("expires_at", exp.Format(time.RFC3339))
	}
}
