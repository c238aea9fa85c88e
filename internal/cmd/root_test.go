package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/okr/internal/config"
	"github.com/felixgeelhaar/okr/internal/errors"
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

type harness struct {
	t      *testing.T
	home   string
	apiURL string
	store  *storage.MemoryStore
}

func newHarness(t *testing.T, handler http.Handler) *harness {
	t.Helper()
	t.Setenv(config.EnvNoColor, "1")
	h := &harness{t: t, home: t.TempDir(), store: storage.NewMemoryStore()}
	if handler != nil {
		h.apiURL = newTestServer(t, handler).URL
	}
	return h
}

// signIn seeds a persisted session the way a previous login would leave it.
func (h *harness) signIn() {
	h.t.Helper()
	require.NoError(h.t, h.store.Set(storage.KeyAuthToken, "tok1"))
	require.NoError(h.t, h.store.Set(storage.KeyCurrentUser, `{"id":1,"email":"ada@example.com","name":"Ada"}`))
}

func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	base := []string{"--home", h.home}
	if h.apiURL != "" {
		base = append(base, "--api-url", h.apiURL)
	}
	err := Run(context.Background(), Options{
		In:        bytes.NewReader(nil),
		Out:       &out,
		Err:       &errOut,
		Storage:   h.store,
		DotEnvDir: h.home,
	}, append(base, args...))
	return out.String(), errOut.String(), err
}

func meHandler(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"email":"ada@example.com","name":"Ada","organizationId":9}`))
	})
}

func TestProtectedCommandRequiresLogin(t *testing.T) {
	h := newHarness(t, http.NewServeMux())

	_, stderr, err := h.run("objectives", "list")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeLoginRequired))
	assert.Contains(t, stderr, "Error: [AUTH-001]")
	assert.Contains(t, stderr, "okr auth login --redirect /objectives")
}

func TestObjectivesList(t *testing.T) {
	mux := http.NewServeMux()
	meHandler(mux)
	mux.HandleFunc("GET /objectives", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		assert.Equal(t, "growth", r.URL.Query().Get("tag"))
		_, _ = w.Write([]byte(`[
			{"id":1,"title":"Grow revenue","status":"in_progress","tags":["growth"],"current_value":4,"target_value":10},
			{"id":2,"title":"Hire team","status":"open","tags":["people"]}
		]`))
	})
	h := newHarness(t, mux)
	h.signIn()

	out, _, err := h.run("objectives", "list", "--tag", "growth")
	require.NoError(t, err)
	assert.Contains(t, out, "Grow revenue")
	assert.NotContains(t, out, "Hire team", "tag filter is applied to the cached list")
}

func TestObjectivesListJSON(t *testing.T) {
	mux := http.NewServeMux()
	meHandler(mux)
	mux.HandleFunc("GET /objectives", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a1","title":"Ship it"}]`))
	})
	h := newHarness(t, mux)
	h.signIn()

	out, _, err := h.run("objectives", "list", "-o", "json")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Ship it", got[0]["title"])
}

func TestUsersListWarnsOnFallback(t *testing.T) {
	mux := http.NewServeMux()
	meHandler(mux)
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := newHarness(t, mux)
	h.signIn()

	_, stderr, err := h.run("users", "list")
	require.NoError(t, err, "a degraded list is not a failure")
	assert.Contains(t, stderr, "Showing fallback users")
}

func TestGuestOnlyCommandShowsDashboardWhenSignedIn(t *testing.T) {
	mux := http.NewServeMux()
	meHandler(mux)
	mux.HandleFunc("GET /objectives", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"title":"Grow revenue"}]`))
	})
	mux.HandleFunc("GET /notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":2}`))
	})
	mux.HandleFunc("GET /company", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Acme"}`))
	})
	loginCalled := false
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		loginCalled = true
	})
	h := newHarness(t, mux)
	h.signIn()

	out, stderr, err := h.run("auth", "login", "--email", "ada@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.False(t, loginCalled)
	assert.Contains(t, stderr, "Already signed in as ada@example.com")
	assert.Contains(t, out, "Grow revenue")
}

func TestLoginStoresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		_, _ = w.Write([]byte(`{"token":"tok9","user":{"id":1,"email":"ada@example.com","name":"Ada"}}`))
	})
	h := newHarness(t, mux)

	out, _, err := h.run("auth", "login", "--email", "ada@example.com", "--password", "pw", "--redirect", "/people")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ada")
	assert.Contains(t, out, "/people")

	tok, ok, err := h.store.Get(storage.KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok9", tok)
}

func TestLoginRequiresCredentials(t *testing.T) {
	t.Setenv("CI", "true")
	h := newHarness(t, http.NewServeMux())

	_, _, err := h.run("auth", "login", "--email", "ada@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidCredentials))
}

func TestConfigSetAndGet(t *testing.T) {
	h := newHarness(t, nil)

	out, _, err := h.run("config", "set", "api.timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "Set api.timeout = 5s")

	data, err := os.ReadFile(config.Path(h.home))
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout")

	out, _, err = h.run("config", "get", "api.timeout")
	require.NoError(t, err)
	assert.Equal(t, "5s\n", out)

	_, _, err = h.run("config", "get", "api.nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigKey))
}

func TestConfigSetKeepsFlagOverridesOutOfFile(t *testing.T) {
	h := newHarness(t, nil)
	h.apiURL = "http://override.example"

	_, _, err := h.run("config", "set", "logging.level", "info")
	require.NoError(t, err)

	cfg, err := config.Load(h.home)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEqual(t, "http://override.example", cfg.API.URL)
}

func TestVersionJSON(t *testing.T) {
	h := newHarness(t, nil)

	out, _, err := h.run("version", "--format", "json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")
}

func TestDoctorReportsUnreachableAPI(t *testing.T) {
	srv := newTestServer(t, http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := newHarness(t, nil)
	h.apiURL = url

	out, _, err := h.run("doctor")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNetworkDown))
	assert.Contains(t, out, "api")
	assert.Contains(t, out, "storage")
}

func TestRouteFor(t *testing.T) {
	cmd := withRoute(&cobra.Command{Use: "get"}, "/objectives/:id")
	assert.Equal(t, "/objectives/42", routeFor(cmd, []string{"42"}))
	assert.Equal(t, "/objectives/:id", routeFor(cmd, nil))
	assert.Equal(t, "", routeFor(noBoot(&cobra.Command{Use: "version"}), []string{"x"}))

	// the argument never leaves the :id segment
	assert.Equal(t, "/objectives/42%3Fx=1", routeFor(cmd, []string{"42?x=1"}))
	assert.Equal(t, "/objectives/1%2F..%2Fpeople", routeFor(cmd, []string{"1/../people"}))
	assert.Equal(t, "/people", routeFor(withRoute(&cobra.Command{Use: "list"}, "/people"), []string{"7"}))
}

func TestGuardSeesEscapedArgument(t *testing.T) {
	h := newHarness(t, http.NewServeMux())

	_, stderr, err := h.run("objectives", "get", "42?redirect=/people")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeLoginRequired))
	assert.Contains(t, stderr, "--redirect /objectives/42%3Fredirect=%2Fpeople")
}

func TestConfigSetWithoutValueInCI(t *testing.T) {
	t.Setenv("CI", "true")
	h := newHarness(t, nil)

	_, stderr, err := h.run("config", "set", "output.format")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
	assert.Contains(t, stderr, "okr config set output.format <value>")
}

func TestDeleteRefusesInCIWithoutYes(t *testing.T) {
	t.Setenv("CI", "true")
	mux := http.NewServeMux()
	meHandler(mux)
	deleted := false
	mux.HandleFunc("DELETE /objectives/3", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
	})
	h := newHarness(t, mux)
	h.signIn()

	out, stderr, err := h.run("objectives", "delete", "3")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Contains(t, stderr, "without --yes")
	assert.Contains(t, out, "Canceled.")
}

func TestObjectivesUpdateClearsTags(t *testing.T) {
	mux := http.NewServeMux()
	meHandler(mux)
	var body map[string]any
	mux.HandleFunc("PUT /objectives/3", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":3,"title":"Grow revenue","tags":[]}`))
	})
	h := newHarness(t, mux)
	h.signIn()

	_, _, err := h.run("objectives", "update", "3", "--tag", "")
	require.NoError(t, err)
	assert.Equal(t, []any{}, body["tags"])
	assert.NotContains(t, body, "title")
}
