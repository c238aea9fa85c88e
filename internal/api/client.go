package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
	"github.com/felixgeelhaar/okr/internal/storage"
	"github.com/felixgeelhaar/okr/internal/telemetry"
)

// UnauthorizedFunc is called after a 401 has cleared the persisted session.
// route is the client route the request was made on behalf of, possibly "".
type UnauthorizedFunc func(ctx context.Context, route string)

// Client is the objectives API client
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	store      storage.Store
	limiter    *rate.Limiter
	logger     *log.Logger
	metrics    *metrics.Metrics

	mu    sync.RWMutex
	hooks []UnauthorizedFunc
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records request metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client that authenticates with the token held in store.
func New(cfg Config, store storage.Store, opts ...Option) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		store:  store,
		logger: log.Discard(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("api")
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnUnauthorized registers fn to run after any 401 response.
func (c *Client) OnUnauthorized(fn UnauthorizedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch issues a PATCH with an optional JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do performs a request. A nil body sends no payload; a nil out discards the response.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	route := RouteTemplate(path)
	requestID := uuid.NewString()

	ctx, span := telemetry.StartRequestSpan(ctx, method, route)
	defer span.End()

	start := time.Now()
	status, err := c.do(ctx, method, path, query, body, out, requestID)
	elapsed := time.Since(start)

	c.metrics.ObserveRequest(method, route, status, elapsed)
	if status != 0 {
		telemetry.RecordStatus(span, status)
	}

	if err != nil {
		if apiErr, ok := AsError(err); ok {
			apiErr.Method = method
			apiErr.Path = path
			apiErr.RequestID = requestID
			c.metrics.ObserveAPIError(route, string(apiErr.Kind))
			if apiErr.Kind == KindUnauthorized {
				c.handleUnauthorized(ctx)
			}
		}
		telemetry.RecordError(span, err)
		c.logger.WithError(err).DebugContext(ctx, "api request failed",
			"method", method, "path", path, "duration_ms", elapsed.Milliseconds())
		return err
	}

	telemetry.RecordSuccess(span)
	c.logger.DebugContext(ctx, "api request",
		"method", method, "path", path, "status", status,
		"request_id", requestID, "duration_ms", elapsed.Milliseconds())
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, requestID string) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, transportError(ctx, err)
		}
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, responseError(resp.StatusCode, data)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, &Error{
				Kind:       KindDecode,
				StatusCode: resp.StatusCode,
				Message:    "Unexpected response from server",
				Cause:      err,
			}
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) token() string {
	if c.store == nil {
		return ""
	}
	token, ok, err := c.store.Get(storage.KeyAuthToken)
	if err != nil {
		c.logger.WithError(err).Warn("failed to read auth token")
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// handleUnauthorized clears the persisted session and notifies hooks unless the
// request was made from the login or register routes.
func (c *Client) handleUnauthorized(ctx context.Context) {
	if c.store != nil {
		if err := c.store.Remove(storage.KeyAuthToken, storage.KeyCurrentUser); err != nil {
			c.logger.WithError(err).Warn("failed to clear session after 401")
		}
	}

	route := CurrentRoute(ctx)
	if route == "/login" || route == "/register" {
		return
	}

	c.mu.RLock()
	hooks := make([]UnauthorizedFunc, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, route)
	}
}

type routeKey struct{}

// WithCurrentRoute records the client route a request is made on behalf of.
func WithCurrentRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey{}, route)
}

// CurrentRoute returns the route recorded by WithCurrentRoute.
func CurrentRoute(ctx context.Context) string {
	route, _ := ctx.Value(routeKey{}).(string)
	return route
}

// RouteTemplate collapses identifiers in path so it can label metrics and spans.
// "/objectives/42/progress" becomes "/objectives/:id/progress".
func RouteTemplate(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if i > 0 && segments[i-1] == "tags" {
			segments[i] = ":tag"
			continue
		}
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = ":id"
			continue
		}
		if _, err := uuid.Parse(seg); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// PathEscape escapes a single path segment such as a tag name.
func PathEscape(segment string) string {
	return url.PathEscape(segment)
}
