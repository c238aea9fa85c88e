// Package notifications tracks the signed-in user's in-app notifications.
package notifications

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/cache"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
)

// DefaultLimit is the page size used by Refresh.
const DefaultLimit = 50

// Store holds the notification list and unread count for one user.
type Store struct {
	client *api.Client
	logger *log.Logger
	list   *cache.List[domain.Notification]

	mu          sync.RWMutex
	userID      domain.ID
	unreadCount int
	loading     bool
}

// New creates a notifications store.
func New(client *api.Client, logger *log.Logger, m *metrics.Metrics) *Store {
	return &Store{
		client: client,
		logger: log.OrDefault(logger).WithComponent("notifications"),
		list:   cache.NewList[domain.Notification]("notifications", m),
	}
}

// SetCurrentUser selects whose notifications are fetched.
func (s *Store) SetCurrentUser(id domain.ID) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

func (s *Store) currentUser() domain.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Notifications returns the cached list.
func (s *Store) Notifications() []domain.Notification {
	return s.list.Items()
}

// UnreadCount returns the last known unread count.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadCount
}

// Loading reports whether Fetch is in flight.
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

// Unread returns the cached notifications not yet read.
func (s *Store) Unread() []domain.Notification {
	return s.list.Filter(func(n domain.Notification) bool { return !n.Read })
}

// HasUnread reports whether the unread count is positive.
func (s *Store) HasUnread() bool {
	return s.UnreadCount() > 0
}

// Fetch replaces the list. Without a current user it does nothing.
// A limit of zero or less uses DefaultLimit.
func (s *Store) Fetch(ctx context.Context, limit int, unreadOnly bool) error {
	userID := s.currentUser()
	if userID.IsZero() {
		s.logger.WarnContext(ctx, "cannot fetch notifications: user_id not set")
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.setLoading(true)
	defer s.setLoading(false)

	q := url.Values{}
	q.Set("user_id", userID.String())
	q.Set("limit", strconv.Itoa(limit))
	if unreadOnly {
		q.Set("unread_only", "true")
	}

	var items []domain.Notification
	if err := s.client.Get(ctx, "/notifications", q, &items); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching notifications")
		return err
	}
	s.list.Set(items)
	return nil
}

// FetchUnreadCount refreshes the unread count. Failures are logged and leave the count as is.
func (s *Store) FetchUnreadCount(ctx context.Context) {
	userID := s.currentUser()
	if userID.IsZero() {
		return
	}

	var resp struct {
		Count int `json:"count"`
	}
	q := url.Values{"user_id": {userID.String()}}
	if err := s.client.Get(ctx, "/notifications/unread-count", q, &resp); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error fetching unread count")
		return
	}

	s.mu.Lock()
	s.unreadCount = resp.Count
	s.mu.Unlock()
}

func (s *Store) decrementUnread() {
	s.mu.Lock()
	if s.unreadCount > 0 {
		s.unreadCount--
	}
	s.mu.Unlock()
}

// MarkAsRead marks one notification read on the server and in the cache.
func (s *Store) MarkAsRead(ctx context.Context, id domain.ID) error {
	if err := s.client.Patch(ctx, "/notifications/"+api.PathEscape(id.String())+"/read", nil, nil); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error marking notification as read", "id", id.String())
		return err
	}
	if n, ok := s.list.Find(id); ok {
		n.Read = true
		s.list.Replace(n)
		s.decrementUnread()
	}
	return nil
}

// MarkAllAsRead marks every notification of the current user read.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	userID := s.currentUser()
	if userID.IsZero() {
		return nil
	}

	body := map[string]domain.ID{"user_id": userID}
	if err := s.client.Patch(ctx, "/notifications/mark-all-read", body, nil); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error marking all notifications as read")
		return err
	}
	s.list.Mutate(func(n *domain.Notification) { n.Read = true })

	s.mu.Lock()
	s.unreadCount = 0
	s.mu.Unlock()
	return nil
}

// Delete removes a notification. Deleting an unread one decrements the count.
func (s *Store) Delete(ctx context.Context, id domain.ID) error {
	if err := s.client.Delete(ctx, "/notifications/"+api.PathEscape(id.String()), nil); err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "error deleting notification", "id", id.String())
		return err
	}
	if n, ok := s.list.Remove(id); ok && !n.Read {
		s.decrementUnread()
	}
	return nil
}

// Refresh fetches the list and the unread count concurrently.
// Only the list fetch can fail; the count fetch swallows its errors.
func (s *Store) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		return s.Fetch(ctx, DefaultLimit, false)
	})
	g.Go(func() error {
		s.FetchUnreadCount(ctx)
		return nil
	})
	return g.Wait()
}

// Poll calls Refresh every interval until ctx is done. onRefresh, if set, runs
// after each round with its error. Refresh errors do not stop polling.
func (s *Store) Poll(ctx context.Context, interval time.Duration, onRefresh func(error)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := s.Refresh(ctx)
		if ctx.Err() != nil {
			return
		}
		if onRefresh != nil {
			onRefresh(err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
