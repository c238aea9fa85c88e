// Package objectives caches and mutates the organization's objectives.
package objectives

import (
	"context"
	stderrors "errors"
	"net/url"
	"sync"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/cache"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
)

// ErrNotFound is returned when the server has no objective with the requested id.
var ErrNotFound = stderrors.New("objective not found")

// Filter names accepted by SetFilter.
const (
	FilterStatus     = "status"
	FilterTag        = "tag"
	FilterSearch     = "search"
	FilterOwner      = "owner_id"
	FilterDepartment = "department_id"
)

// Filters narrows the objective list. Empty fields are inactive.
type Filters struct {
	Status       domain.Status
	Tag          string
	Search       string
	OwnerID      domain.ID
	DepartmentID domain.ID
}

// Query returns the server-side query parameters for the active filters.
func (f Filters) Query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set(FilterStatus, string(f.Status))
	}
	if f.Tag != "" {
		q.Set(FilterTag, f.Tag)
	}
	if f.Search != "" {
		q.Set(FilterSearch, f.Search)
	}
	if f.OwnerID != "" {
		q.Set(FilterOwner, f.OwnerID.String())
	}
	if f.DepartmentID != "" {
		q.Set(FilterDepartment, f.DepartmentID.String())
	}
	return q
}

// clientSide reports whether any filter applied locally is active.
// Search is never applied locally.
func (f Filters) clientSide() bool {
	return f.Status != "" || f.Tag != "" || f.OwnerID != "" || f.DepartmentID != ""
}

func (f Filters) matches(o domain.Objective) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Tag != "" && !o.HasTag(f.Tag) {
		return false
	}
	if f.OwnerID != "" && o.OwnerID != f.OwnerID {
		return false
	}
	if f.DepartmentID != "" && o.DepartmentID != f.DepartmentID {
		return false
	}
	return true
}

// Store is the objectives store
type Store struct {
	client *api.Client
	logger *log.Logger
	list   *cache.List[domain.Objective]

	mu      sync.RWMutex
	current *domain.Objective
	tags    []domain.Tag
	stats   domain.Stats
	filters Filters
	loading bool
}

// New creates an objectives store.
func New(client *api.Client, logger *log.Logger, m *metrics.Metrics) *Store {
	return &Store{
		client: client,
		logger: log.OrDefault(logger).WithComponent("objectives"),
		list:   cache.NewList[domain.Objective]("objectives", m),
	}
}

// Objectives returns the cached list as last fetched and locally mutated.
func (s *Store) Objectives() []domain.Objective {
	return s.list.Items()
}

// Current returns the objective last loaded by Get.
func (s *Store) Current() (domain.Objective, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Objective{}, false
	}
	return *s.current, true
}

// Tags returns the tags from the last FetchTags.
func (s *Store) Tags() []domain.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// Stats returns the dashboard stats from the last FetchStats.
func (s *Store) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Loading reports whether a list or detail fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Filters returns the active filters.
func (s *Store) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SetFilter sets one filter by name. An empty value clears it.
func (s *Store) SetFilter(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case FilterStatus:
		s.filters.Status = domain.NormalizeStatus(value)
	case FilterTag:
		s.filters.Tag = value
	case FilterSearch:
		s.filters.Search = value
	case FilterOwner:
		s.filters.OwnerID = domain.ID(value)
	case FilterDepartment:
		s.filters.DepartmentID = domain.ID(value)
	default:
		return &UnknownFilterError{Name: name}
	}
	return nil
}

// SetFilters replaces all filters.
func (s *Store) SetFilters(f Filters) {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
}

// ClearFilters resets every filter.
func (s *Store) ClearFilters() {
	s.mu.Lock()
	s.filters = Filters{}
	s.mu.Unlock()
}

// UnknownFilterError reports a filter name SetFilter does not know.
type UnknownFilterError struct {
	Name string
}

func (e *UnknownFilterError) Error() string {
	return "unknown objective filter: " + e.Name
}

// Fetch replaces the cache with the server's list for the active filters.
func (s *Store) Fetch(ctx context.Context) ([]domain.Objective, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var items []domain.Objective
	if err := s.client.Get(ctx, "/objectives", s.Filters().Query(), &items); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching objectives")
		return nil, err
	}
	s.list.Set(items)
	return s.list.Items(), nil
}

// Get loads one objective and makes it current.
func (s *Store) Get(ctx context.Context, id domain.ID) (domain.Objective, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	var o domain.Objective
	if err := s.client.Get(ctx, "/objectives/"+api.PathEscape(id.String()), nil, &o); err != nil {
		if api.IsNotFound(err) {
			return domain.Objective{}, &NotFoundError{ID: id, Cause: err}
		}
		s.logger.WithError(err).ErrorContext(ctx, "error fetching objective", "id", id.String())
		return domain.Objective{}, err
	}

	s.mu.Lock()
	s.current = &o
	s.mu.Unlock()
	return o, nil
}

// NotFoundError wraps a 404 for an objective. It matches ErrNotFound.
type NotFoundError struct {
	ID    domain.ID
	Cause error
}

func (e *NotFoundError) Error() string {
	return "objective not found: " + e.ID.String()
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// Create posts a new objective and inserts the server's copy at the head of the cache.
func (s *Store) Create(ctx context.Context, in domain.ObjectiveInput) (domain.Objective, error) {
	var o domain.Objective
	if err := s.client.Post(ctx, "/objectives", in, &o); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error creating objective")
		return domain.Objective{}, err
	}
	s.list.Prepend(o)
	return o, nil
}

// Update replaces an objective and its cached copies.
func (s *Store) Update(ctx context.Context, id domain.ID, in domain.ObjectiveInput) (domain.Objective, error) {
	var o domain.Objective
	if err := s.client.Put(ctx, "/objectives/"+api.PathEscape(id.String()), in, &o); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error updating objective", "id", id.String())
		return domain.Objective{}, err
	}
	s.replace(id, o)
	return o, nil
}

// UpdateProgress records a new current value.
func (s *Store) UpdateProgress(ctx context.Context, id domain.ID, currentValue float64, notes string) (domain.Objective, error) {
	var o domain.Objective
	body := domain.ProgressUpdate{CurrentValue: currentValue, Notes: notes}
	if err := s.client.Patch(ctx, "/objectives/"+api.PathEscape(id.String())+"/progress", body, &o); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error updating progress", "id", id.String())
		return domain.Objective{}, err
	}
	s.replace(id, o)
	return o, nil
}

// replace updates the cached list entry and current objective for id.
func (s *Store) replace(id domain.ID, o domain.Objective) {
	if o.ID.IsZero() {
		o.ID = id
	}
	s.list.Replace(o)

	s.mu.Lock()
	if s.current != nil && s.current.ID == id {
		cp := o
		s.current = &cp
	}
	s.mu.Unlock()
}

// Delete removes an objective on the server and from the cache.
func (s *Store) Delete(ctx context.Context, id domain.ID) error {
	if err := s.client.Delete(ctx, "/objectives/"+api.PathEscape(id.String()), nil); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error deleting objective", "id", id.String())
		return err
	}
	s.list.Remove(id)

	s.mu.Lock()
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.mu.Unlock()
	return nil
}

// FetchTags loads the organization's tags.
func (s *Store) FetchTags(ctx context.Context) ([]domain.Tag, error) {
	var tags []domain.Tag
	if err := s.client.Get(ctx, "/tags", nil, &tags); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching tags")
		return nil, err
	}
	s.mu.Lock()
	s.tags = tags
	s.mu.Unlock()
	return s.Tags(), nil
}

// TagStats loads statistics for one tag. The result is not cached.
func (s *Store) TagStats(ctx context.Context, tag string) (domain.Stats, error) {
	var stats domain.Stats
	if err := s.client.Get(ctx, "/tags/"+api.PathEscape(tag)+"/stats", nil, &stats); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching tag stats", "tag", tag)
		return nil, err
	}
	return stats, nil
}

// FetchStats loads the dashboard statistics.
func (s *Store) FetchStats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	if err := s.client.Get(ctx, "/dashboard/stats", nil, &stats); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching stats")
		return nil, err
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	return stats, nil
}

// Filtered applies the status, tag, owner and department filters to the cache.
// With none active it returns the cached list unchanged.
func (s *Store) Filtered() []domain.Objective {
	f := s.Filters()
	if !f.clientSide() {
		return s.list.Items()
	}
	return s.list.Filter(f.matches)
}

// ByTag groups the cached objectives by tag. An objective appears once per tag.
func (s *Store) ByTag() map[string][]domain.Objective {
	grouped := make(map[string][]domain.Objective)
	for _, o := range s.list.Items() {
		for _, tag := range o.Tags {
			grouped[tag] = append(grouped[tag], o)
		}
	}
	return grouped
}
