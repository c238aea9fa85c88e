// Package people caches the organization's users, departments and teams.
package people

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/cache"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
)

// Unassigned is the ByDepartment key for users without a department.
const Unassigned = "unassigned"

// Store holds users and departments.
type Store struct {
	client  *api.Client
	logger  *log.Logger
	metrics *metrics.Metrics

	users       *cache.List[domain.User]
	departments *cache.List[domain.Department]

	mu      sync.Mutex
	loading bool
}

// New creates a people store.
func New(client *api.Client, logger *log.Logger, m *metrics.Metrics) *Store {
	return &Store{
		client:      client,
		logger:      log.OrDefault(logger).WithComponent("people"),
		metrics:     m,
		users:       cache.NewList[domain.User]("users", m),
		departments: cache.NewList[domain.Department]("departments", m),
	}
}

// Users returns the cached users.
func (s *Store) Users() []domain.User {
	return s.users.Items()
}

// Departments returns the cached departments.
func (s *Store) Departments() []domain.Department {
	return s.departments.Items()
}

// Loading reports whether FetchUsers is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// FetchUsers refreshes the user list. It never fails: when the request does,
// the cached list (Stale) or an empty one (Fallback) is returned with the error.
// A call made while another is in flight returns the cache without a request.
func (s *Store) FetchUsers(ctx context.Context) cache.Result[[]domain.User] {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return cache.Degraded(s.users.Items(), cache.SourceStale, nil)
	}
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	var users []domain.User
	if err := s.client.Get(ctx, "/users", nil, &users); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching users")
		if s.users.Len() > 0 {
			s.metrics.ObserveFallback("users", cache.SourceStale.String())
			return cache.Degraded(s.users.Items(), cache.SourceStale, err)
		}
		s.metrics.ObserveFallback("users", cache.SourceFallback.String())
		return cache.Degraded([]domain.User{}, cache.SourceFallback, err)
	}
	s.users.Set(users)
	return cache.Fresh(s.users.Items())
}

func userPath(id domain.ID) string {
	return "/users/" + api.PathEscape(id.String())
}

func departmentPath(id domain.ID) string {
	return "/departments/" + api.PathEscape(id.String())
}

// GetUser loads one user. The cache is not touched.
func (s *Store) GetUser(ctx context.Context, id domain.ID) (domain.User, error) {
	var u domain.User
	if err := s.client.Get(ctx, userPath(id), nil, &u); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching user", "id", id.String())
		return domain.User{}, err
	}
	return u, nil
}

// CreateUser posts a user and appends the server's copy.
func (s *Store) CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	var u domain.User
	if err := s.client.Post(ctx, "/users", in, &u); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error creating user")
		return domain.User{}, err
	}
	s.users.Append(u)
	return u, nil
}

// UpdateUser replaces a user in place.
func (s *Store) UpdateUser(ctx context.Context, id domain.ID, in domain.UserInput) (domain.User, error) {
	var u domain.User
	if err := s.client.Put(ctx, userPath(id), in, &u); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error updating user", "id", id.String())
		return domain.User{}, err
	}
	if u.ID.IsZero() {
		u.ID = id
	}
	s.users.Replace(u)
	return u, nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, id domain.ID) error {
	if err := s.client.Delete(ctx, userPath(id), nil); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error deleting user", "id", id.String())
		return err
	}
	s.users.Remove(id)
	return nil
}

// FetchDepartments refreshes the department list.
func (s *Store) FetchDepartments(ctx context.Context) ([]domain.Department, error) {
	var depts []domain.Department
	if err := s.client.Get(ctx, "/departments", nil, &depts); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching departments")
		return nil, err
	}
	s.departments.Set(depts)
	return s.departments.Items(), nil
}

// GetDepartment loads one department.
func (s *Store) GetDepartment(ctx context.Context, id domain.ID) (domain.Department, error) {
	var d domain.Department
	if err := s.client.Get(ctx, departmentPath(id), nil, &d); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching department", "id", id.String())
		return domain.Department{}, err
	}
	return d, nil
}

// CreateDepartment posts a department and appends the server's copy.
func (s *Store) CreateDepartment(ctx context.Context, in domain.DepartmentInput) (domain.Department, error) {
	var d domain.Department
	if err := s.client.Post(ctx, "/departments", in, &d); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error creating department")
		return domain.Department{}, err
	}
	s.departments.Append(d)
	return d, nil
}

// UpdateDepartment replaces a department in place.
func (s *Store) UpdateDepartment(ctx context.Context, id domain.ID, in domain.DepartmentInput) (domain.Department, error) {
	var d domain.Department
	if err := s.client.Put(ctx, departmentPath(id), in, &d); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error updating department", "id", id.String())
		return domain.Department{}, err
	}
	if d.ID.IsZero() {
		d.ID = id
	}
	s.departments.Replace(d)
	return d, nil
}

// DeleteDepartment removes a department and unassigns its cached users.
func (s *Store) DeleteDepartment(ctx context.Context, id domain.ID) error {
	if err := s.client.Delete(ctx, departmentPath(id), nil); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error deleting department", "id", id.String())
		return err
	}
	s.departments.Remove(id)
	s.users.Mutate(func(u *domain.User) {
		if u.Department == id {
			u.Department = ""
		}
	})
	return nil
}

// FetchTeams loads GET /teams. Servers without it are served from /departments,
// tagged Fallback. When both fail the result is an empty Fallback list.
func (s *Store) FetchTeams(ctx context.Context) cache.Result[[]domain.Team] {
	var teams []domain.Team
	err := s.client.Get(ctx, "/teams", nil, &teams)
	if err == nil {
		return cache.Fresh(teams)
	}
	s.logger.WithError(err).DebugContext(ctx, "teams endpoint unavailable, falling back to departments")
	s.metrics.ObserveFallback("teams", cache.SourceFallback.String())

	depts, derr := s.FetchDepartments(ctx)
	if derr != nil {
		return cache.Degraded([]domain.Team{}, cache.SourceFallback, derr)
	}
	teams = make([]domain.Team, 0, len(depts))
	for _, d := range depts {
		teams = append(teams, domain.TeamFromDepartment(d))
	}
	return cache.Degraded(teams, cache.SourceFallback, err)
}

// UserByID looks up a cached user.
func (s *Store) UserByID(id domain.ID) (domain.User, bool) {
	return s.users.Find(id)
}

// DepartmentByID looks up a cached department.
func (s *Store) DepartmentByID(id domain.ID) (domain.Department, bool) {
	return s.departments.Find(id)
}

// ByDepartment groups the cached users by department id.
func (s *Store) ByDepartment() map[string][]domain.User {
	grouped := make(map[string][]domain.User)
	for _, u := range s.users.Items() {
		key := Unassigned
		if !u.Department.IsZero() {
			key = u.Department.String()
		}
		grouped[key] = append(grouped[key], u)
	}
	return grouped
}
