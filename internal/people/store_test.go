package people

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/cache"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
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

func newStore(t *testing.T, handler http.Handler, m *metrics.Metrics) *Store {
	t.Helper()
	srv := newTestServer(t, handler)
	cfg := api.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RateLimit = 0
	return New(api.New(cfg, storage.NewMemoryStore()), log.Discard(), m)
}

func reply(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func ptr[T any](v T) *T { return &v }

const usersJSON = `[
	{"id":1,"name":"Ada","department":10},
	{"id":2,"name":"Grace","department":20},
	{"id":3,"name":"Linus"}
]`

func TestFetchUsers_Fresh(t *testing.T) {
	s := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		reply(w, 200, usersJSON)
	}), nil)

	res := s.FetchUsers(context.Background())
	assert.Equal(t, cache.SourceFresh, res.Source)
	assert.NoError(t, res.Err)
	assert.Len(t, res.Value, 3)
	assert.False(t, s.Loading())
}

func TestFetchUsers_FailureDegrades(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	_, m := metrics.NewRegistry()
	s := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			reply(w, 503, `{"error":"maintenance"}`)
			return
		}
		reply(w, 200, usersJSON)
	}), m)
	ctx := context.Background()

	res := s.FetchUsers(ctx)
	assert.Equal(t, cache.SourceFallback, res.Source)
	assert.NotNil(t, res.Value)
	assert.Empty(t, res.Value)
	require.Error(t, res.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheFallbacks.WithLabelValues("users", "fallback")))

	fail.Store(false)
	require.Equal(t, cache.SourceFresh, s.FetchUsers(ctx).Source)

	fail.Store(true)
	res = s.FetchUsers(ctx)
	assert.Equal(t, cache.SourceStale, res.Source)
	assert.True(t, res.IsDegraded())
	assert.Len(t, res.Value, 3)
	assert.Equal(t, "maintenance", res.Err.Error())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheFallbacks.WithLabelValues("users", "stale")))
}

func TestFetchUsers_InFlightReturnsCache(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		reply(w, 200, usersJSON)
	}), nil)

	done := make(chan cache.Result[[]domain.User])
	go func() { done <- s.FetchUsers(context.Background()) }()

	require.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)
	second := s.FetchUsers(context.Background())
	assert.Equal(t, cache.SourceStale, second.Source)
	assert.NoError(t, second.Err)
	assert.Empty(t, second.Value)

	close(release)
	first := <-done
	assert.Equal(t, cache.SourceFresh, first.Source)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUserCRUD(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, usersJSON)
	})
	mux.HandleFunc("GET /users/2", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"id":2,"name":"Grace","title":"Rear Admiral"}`)
	})
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 201, `{"id":4,"name":"Ken"}`)
	})
	mux.HandleFunc("PUT /users/3", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"id":3,"name":"Linus T","department":10}`)
	})
	mux.HandleFunc("DELETE /users/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /users/9", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 404, `{"error":"User not found"}`)
	})
	s := newStore(t, mux, nil)
	ctx := context.Background()
	s.FetchUsers(ctx)

	u, err := s.GetUser(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Rear Admiral", u.Profile["title"])

	created, err := s.CreateUser(ctx, domain.UserInput{Name: ptr("Ken")})
	require.NoError(t, err)
	assert.Equal(t, domain.ID("4"), created.ID)
	users := s.Users()
	assert.Equal(t, domain.ID("4"), users[len(users)-1].ID, "created users are appended")

	_, err = s.UpdateUser(ctx, "3", domain.UserInput{Name: ptr("Linus T")})
	require.NoError(t, err)
	got, ok := s.UserByID("3")
	require.True(t, ok)
	assert.Equal(t, "Linus T", got.Name)
	assert.Equal(t, domain.ID("10"), got.Department)

	require.NoError(t, s.DeleteUser(ctx, "1"))
	_, ok = s.UserByID("1")
	assert.False(t, ok)
	assert.Len(t, s.Users(), 3)

	err = s.DeleteUser(ctx, "9")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Len(t, s.Users(), 3)
}

func TestDepartmentCRUD(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, usersJSON)
	})
	mux.HandleFunc("GET /departments", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `[{"id":10,"name":"Engineering"},{"id":20,"name":"Research"}]`)
	})
	mux.HandleFunc("GET /departments/20", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"id":20,"name":"Research"}`)
	})
	mux.HandleFunc("POST /departments", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 201, `{"id":30,"name":"Sales"}`)
	})
	mux.HandleFunc("PUT /departments/20", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"id":20,"name":"R&D"}`)
	})
	mux.HandleFunc("DELETE /departments/10", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s := newStore(t, mux, nil)
	ctx := context.Background()
	s.FetchUsers(ctx)

	depts, err := s.FetchDepartments(ctx)
	require.NoError(t, err)
	assert.Len(t, depts, 2)

	d, err := s.GetDepartment(ctx, "20")
	require.NoError(t, err)
	assert.Equal(t, "Research", d.Name)

	_, err = s.CreateDepartment(ctx, domain.DepartmentInput{Name: ptr("Sales")})
	require.NoError(t, err)
	assert.Len(t, s.Departments(), 3)

	_, err = s.UpdateDepartment(ctx, "20", domain.DepartmentInput{Name: ptr("R&D")})
	require.NoError(t, err)
	got, ok := s.DepartmentByID("20")
	require.True(t, ok)
	assert.Equal(t, "R&D", got.Name)

	require.NoError(t, s.DeleteDepartment(ctx, "10"))
	_, ok = s.DepartmentByID("10")
	assert.False(t, ok)
	ada, _ := s.UserByID("1")
	assert.True(t, ada.Department.IsZero(), "members of a deleted department are unassigned")
	grace, _ := s.UserByID("2")
	assert.Equal(t, domain.ID("20"), grace.Department)
}

func TestFetchDepartments_Propagates(t *testing.T) {
	s := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, 500, `{}`)
	}), nil)
	_, err := s.FetchDepartments(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Server error (status 500) - please try again later", err.Error())
}

func TestFetchTeams(t *testing.T) {
	t.Run("fresh", func(t *testing.T) {
		s := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reply(w, 200, `[{"id":1,"name":"Platform","department_id":10}]`)
		}), nil)
		res := s.FetchTeams(context.Background())
		assert.Equal(t, cache.SourceFresh, res.Source)
		assert.Equal(t, []domain.Team{{ID: "1", Name: "Platform", DepartmentID: "10"}}, res.Value)
	})

	t.Run("falls back to departments", func(t *testing.T) {
		_, m := metrics.NewRegistry()
		mux := http.NewServeMux()
		mux.HandleFunc("GET /teams", func(w http.ResponseWriter, r *http.Request) {
			reply(w, 404, `{"error":"Not found"}`)
		})
		mux.HandleFunc("GET /departments", func(w http.ResponseWriter, r *http.Request) {
			reply(w, 200, `[{"id":10,"name":"Engineering"}]`)
		})
		s := newStore(t, mux, m)
		res := s.FetchTeams(context.Background())
		assert.Equal(t, cache.SourceFallback, res.Source)
		assert.Equal(t, []domain.Team{{ID: "10", Name: "Engineering", DepartmentID: "10"}}, res.Value)
		assert.True(t, api.IsNotFound(res.Err))
		assert.Len(t, s.Departments(), 1)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheFallbacks.WithLabelValues("teams", "fallback")))
	})

	t.Run("both fail", func(t *testing.T) {
		s := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reply(w, 500, `{"error":"down"}`)
		}), nil)
		res := s.FetchTeams(context.Background())
		assert.Equal(t, cache.SourceFallback, res.Source)
		assert.Empty(t, res.Value)
		assert.Error(t, res.Err)
	})
}

func TestByDepartment(t *testing.T) {
	s := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, usersJSON)
	}), nil)
	s.FetchUsers(context.Background())

	grouped := s.ByDepartment()
	assert.Len(t, grouped, 3)
	assert.Equal(t, "Ada", grouped["10"][0].Name)
	assert.Equal(t, "Grace", grouped["20"][0].Name)
	require.Len(t, grouped[Unassigned], 1)
	assert.Equal(t, "Linus", grouped[Unassigned][0].Name)
}
