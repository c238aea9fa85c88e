package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/okr/internal/config"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/health"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/router"
	"github.com/felixgeelhaar/okr/internal/session"
	"github.com/felixgeelhaar/okr/internal/storage"
)

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

func newApp(t *testing.T, handler http.Handler) (*App, *storage.MemoryStore) {
	t.Helper()
	srv := newTestServer(t, handler)

	cfg := config.Default()
	cfg.API.URL = srv.URL
	cfg.API.RateLimit = 0

	store := storage.NewMemoryStore()
	a := New(cfg, Options{Storage: store, Logger: log.Discard()})
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a, store
}

func TestBoot_RehydratesAndValidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":1,"organizationId":9,"name":"Ada"}`))
	})
	a, store := newApp(t, mux)
	require.NoError(t, store.Set(storage.KeyAuthToken, "tok1"))
	require.NoError(t, store.Set(storage.KeyCurrentUser, `{"id":1,"name":"Ada"}`))
	require.NoError(t, store.Set(storage.KeyCompanyData, `{"name":"Acme"}`))

	ctx := context.Background()
	require.NoError(t, a.Boot(ctx))

	assert.True(t, a.Session.IsAuthenticated(), "rehydrated session is usable before validation")
	assert.Equal(t, "Acme - Objectives Management", a.Company.Title())

	require.NoError(t, a.Session.Wait(ctx))
	assert.Equal(t, session.PhaseConfirmed, a.Session.Phase())
	assert.Equal(t, domain.ID("9"), a.Session.OrganizationID())

	d := a.Navigate(ctx, "/objectives")
	assert.True(t, d.Allowed())
}

func TestBoot_RejectedSessionRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	a, store := newApp(t, mux)
	require.NoError(t, store.Set(storage.KeyAuthToken, "stale"))
	require.NoError(t, store.Set(storage.KeyCurrentUser, `{"id":1}`))

	ctx := context.Background()
	require.NoError(t, a.Boot(ctx))
	require.NoError(t, a.Session.Wait(ctx))

	assert.False(t, a.Session.IsAuthenticated())
	_, ok, _ := store.Get(storage.KeyAuthToken)
	assert.False(t, ok)

	d := a.Navigate(ctx, "/people")
	assert.Equal(t, router.Redirect, d.Action)
	assert.Equal(t, "/login?redirect=/people", d.To)
}

func TestNavigate_SyncsNotificationUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"tok1","user":{"id":5}}`))
	})
	mux.HandleFunc("GET /notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("user_id"))
		_, _ = w.Write([]byte(`{"count":3}`))
	})
	a, _ := newApp(t, mux)
	ctx := context.Background()
	require.NoError(t, a.Boot(ctx))

	require.True(t, a.Session.Login(ctx, "ada@example.com", "secret").Success)
	assert.True(t, a.Navigate(ctx, "/notifications").Allowed())

	a.Notifications.FetchUnreadCount(ctx)
	assert.Equal(t, 3, a.Notifications.UnreadCount())
}

func TestDoctor(t *testing.T) {
	a, _ := newApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	reports := a.Doctor().Check(context.Background())
	require.Len(t, reports, 3)
	assert.Equal(t, "api", reports[0].Name)
	assert.Equal(t, health.StatusHealthy, reports[0].Status)
	assert.Equal(t, health.StatusHealthy, reports[1].Status)
	assert.Equal(t, health.StatusDegraded, reports[2].Status, "signed out")
	assert.Equal(t, health.StatusDegraded, health.OverallStatus(reports))
}

func TestNew_FileStorageUnderHome(t *testing.T) {
	home := t.TempDir()
	a := New(config.Default(), Options{Home: home, Logger: log.Discard()})

	fs, ok := a.Storage.(*storage.FileStore)
	require.True(t, ok)
	assert.Equal(t, config.StatePath(home), fs.Path())
	assert.Equal(t, "http://127.0.0.1:8765/auth/google/callback", a.Session.CallbackURL())
}
