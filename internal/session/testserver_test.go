package session

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/storage"
)

// newTestServer starts an HTTP server bound to IPv4-only loopback so tests work
// inside restricted sandboxes that forbid IPv6 listeners.
func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test server: %v", err)
	}

	server := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	server.Start()
	t.Cleanup(server.Close)
	return server
}

func newSession(t *testing.T, handler http.Handler, opts ...Option) (*Store, *storage.MemoryStore, *api.Client) {
	t.Helper()
	srv := newTestServer(t, handler)

	cfg := api.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RateLimit = 0

	persist := storage.NewMemoryStore()
	client := api.New(cfg, persist)
	return New(client, persist, opts...), persist, client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
