// Package server runs the CLI's short-lived local HTTP listeners: the OAuth
// loopback callback and the metrics endpoint used by long-running commands.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/okr/internal/errors"
	"github.com/felixgeelhaar/okr/internal/metrics"
)

// CallbackPath is where the OAuth provider redirects the browser.
const CallbackPath = "/auth/google/callback"

// Server is a local HTTP listener with graceful shutdown.
type Server struct {
	httpServer      *http.Server
	listener        net.Listener
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration

	callbacks chan Callback
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address, e.g. "127.0.0.1:8765". Port 0 picks a free port.
	Address string

	// ShutdownTimeout bounds connection draining. Defaults to 5 seconds.
	ShutdownTimeout time.Duration

	// ReadTimeout defaults to 10 seconds.
	ReadTimeout time.Duration

	// WriteTimeout defaults to 10 seconds.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

func newServer(cfg Config, handler http.Handler) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		shutdownTimeout: cfg.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Callback is what the OAuth provider sent back to the loopback listener.
type Callback struct {
	Code  string
	State string
	Error string
}

// NewCallbackServer creates the OAuth loopback listener. It accepts the first
// callback only; later ones are answered but dropped.
func NewCallbackServer(cfg Config) *Server {
	mux := http.NewServeMux()
	s := newServer(cfg, mux)
	s.callbacks = make(chan Callback, 1)
	mux.HandleFunc(CallbackPath, s.handleCallback)
	return s
}

// NewMetricsServer serves the registry at /metrics and a liveness probe at /healthz.
func NewMetricsServer(cfg Config, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(gatherer))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return newServer(cfg, mux)
}

// Listen binds the address. Call it before handing the callback URL to the provider.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeOAuthFailed, fmt.Sprintf("failed to listen on %s", s.httpServer.Addr), err).
			WithSuggestion("Choose another address with 'okr config set oauth.callback_addr 127.0.0.1:<port>'")
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// URL returns the base URL of the bound listener.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// CallbackURL returns the redirect URI to register with the OAuth provider.
func (s *Server) CallbackURL() string {
	return s.URL() + CallbackPath
}

// Serve blocks serving requests. It listens first if Listen was not called.
// Returns nil after Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	err := s.httpServer.Serve(s.listener)
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains connections for at most the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// WaitForCode blocks until the provider calls back or ctx is done.
func (s *Server) WaitForCode(ctx context.Context) (Callback, error) {
	if s.callbacks == nil {
		return Callback{}, fmt.Errorf("server does not accept OAuth callbacks")
	}
	select {
	case cb := <-s.callbacks:
		if cb.Error != "" {
			return cb, errors.New(errors.ErrCodeOAuthFailed, "Google sign-in was rejected: "+cb.Error)
		}
		if cb.Code == "" {
			return cb, errors.New(errors.ErrCodeOAuthFailed, "Google sign-in returned no authorization code")
		}
		return cb, nil
	case <-ctx.Done():
		return Callback{}, errors.Wrap(errors.ErrCodeOAuthTimeout, "timed out waiting for Google sign-in", ctx.Err()).
			WithSuggestion("Run 'okr auth google' again and finish signing in within the time limit")
	}
}

// handleCallback handles the browser redirect.
// GET /auth/google/callback?code=...&state=...
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	cb := Callback{Code: q.Get("code"), State: q.Get("state"), Error: q.Get("error")}

	select {
	case s.callbacks <- cb:
	default:
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if cb.Error != "" || cb.Code == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Sign-in failed. Return to the terminal for details.\n"))
		return
	}
	_, _ = w.Write([]byte("Sign-in complete. You can close this window and return to the terminal.\n"))
}
