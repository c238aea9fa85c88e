// Package session holds the signed-in identity of the client.
//
// A session is authenticated only while both a token and a user profile are
// held. Both are mirrored into persistent storage and are always written
// together. A session rehydrated from storage starts out tentative and is
// confirmed or rejected by a single background validation round-trip.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
	"github.com/felixgeelhaar/okr/internal/storage"
)

// Phase is the verification state of the held session.
type Phase string

const (
	// PhaseAnonymous means no session is held.
	PhaseAnonymous Phase = "anonymous"
	// PhaseTentative means a session was loaded from storage and is being validated.
	PhaseTentative Phase = "tentative"
	// PhaseConfirmed means the server accepted the session.
	PhaseConfirmed Phase = "confirmed"
	// PhaseRejected means the server refused the session and it was torn down.
	PhaseRejected Phase = "rejected"
)

// DefaultCallbackURL is where the OAuth provider returns the browser.
const DefaultCallbackURL = "http://127.0.0.1:8765/auth/google/callback"

// OAuthRedirectTTL bounds how long a pending Google sign-in remembers its destination.
const OAuthRedirectTTL = 10 * time.Minute

// Navigator performs the full-page redirect of an OAuth sign-in.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

// Outcome is the uniform result of a session operation. Operations never return errors.
type Outcome struct {
	Success bool
	Error   string

	// Registration metadata
	Message       string
	UserID        domain.ID
	EmailVerified bool

	// OAuth sign-in started; completion happens in ExchangeGoogleCode
	Pending bool
	AuthURL string
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Phase         Phase
	Authenticated bool
	HasToken      bool
	User          *domain.User
	Loading       bool
	LastError     string
}

// Store is the session store
type Store struct {
	client      *api.Client
	persist     storage.Store
	scoped      storage.Store
	navigator   Navigator
	callbackURL string
	logger      *log.Logger
	metrics     *metrics.Metrics

	mu         sync.RWMutex
	token      string
	user       *domain.User
	loading    bool
	lastError  string
	phase      Phase
	generation uint64
	validating chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithNavigator sets the OAuth redirect handler.
func WithNavigator(n Navigator) Option {
	return func(s *Store) {
		s.navigator = n
	}
}

// WithScopedStorage sets the short-lived storage used for the OAuth destination.
func WithScopedStorage(st storage.Store) Option {
	return func(s *Store) {
		s.scoped = st
	}
}

// WithCallbackURL sets the OAuth callback URL sent to the server.
func WithCallbackURL(u string) Option {
	return func(s *Store) {
		s.callbackURL = u
	}
}

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMetrics records phase transitions into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a session store. It registers itself for 401 notifications on client.
func New(client *api.Client, persist storage.Store, opts ...Option) *Store {
	s := &Store{
		client:      client,
		persist:     persist,
		callbackURL: DefaultCallbackURL,
		logger:      log.Discard(),
		phase:       PhaseAnonymous,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scoped == nil {
		s.scoped = storage.NewScoped(persist, OAuthRedirectTTL)
	}
	s.logger = s.logger.WithComponent("session")

	client.OnUnauthorized(s.handleUnauthorized)
	return s
}

// IsAuthenticated reports whether both a token and a user are held.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticatedLocked()
}

func (s *Store) authenticatedLocked() bool {
	return s.token != "" && s.user != nil
}

// Token returns the held token, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the held user.
func (s *Store) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// UserID returns the held user's id, or "".
func (s *Store) UserID() domain.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// OrganizationID returns the held user's organization, or "".
func (s *Store) OrganizationID() domain.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.OrganizationID
}

// Phase returns the verification phase.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Loading reports whether an auth operation is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the message of the last failed operation.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Snapshot returns the whole state under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Phase:         s.phase,
		Authenticated: s.authenticatedLocked(),
		HasToken:      s.token != "",
		Loading:       s.loading,
		LastError:     s.lastError,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// establishLocked stores a new session in storage and memory. Caller must hold s.mu.
func (s *Store) establishLocked(token string, user domain.User) error {
	if err := s.persist.Set(storage.KeyAuthToken, token); err != nil {
		return err
	}
	if err := storage.SetJSON(s.persist, storage.KeyCurrentUser, user); err != nil {
		_ = s.persist.Remove(storage.KeyAuthToken)
		return err
	}
	s.generation++
	s.token = token
	s.user = &user
	s.setPhaseLocked(PhaseConfirmed)
	return nil
}

// setUserLocked replaces the cached profile. Caller must hold s.mu.
func (s *Store) setUserLocked(user domain.User) {
	if err := storage.SetJSON(s.persist, storage.KeyCurrentUser, user); err != nil {
		s.logger.WithError(err).Warn("failed to persist current user")
	}
	s.user = &user
}

// clearLocked drops the session from memory and storage. Caller must hold s.mu.
func (s *Store) clearLocked(phase Phase) {
	s.generation++
	s.token = ""
	s.user = nil
	s.lastError = ""
	if err := s.persist.Remove(storage.KeyAuthToken, storage.KeyCurrentUser); err != nil {
		s.logger.WithError(err).Warn("failed to clear persisted session")
	}
	s.setPhaseLocked(phase)
}

func (s *Store) setPhaseLocked(phase Phase) {
	if s.phase == phase {
		return
	}
	s.logger.Debug("session phase", "from", string(s.phase), "to", string(phase))
	s.phase = phase
	s.metrics.ObserveSessionPhase(string(phase))
}

type generationKey struct{}

// withGeneration tags requests made on behalf of the session started at gen.
func withGeneration(ctx context.Context, gen uint64) context.Context {
	return context.WithValue(ctx, generationKey{}, gen)
}

// handleUnauthorized runs after the API client saw a 401 and cleared storage.
// A rejection of an older session restores the current one instead.
func (s *Store) handleUnauthorized(ctx context.Context, route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen, ok := ctx.Value(generationKey{}).(uint64); ok && gen != s.generation {
		s.restorePersistedLocked()
		return
	}
	if s.token == "" && s.user == nil {
		return
	}
	s.logger.InfoContext(ctx, "session rejected by server", "route", route)
	s.clearLocked(PhaseRejected)
}
