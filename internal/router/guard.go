package router

import (
	"context"

	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/log"
	"github.com/felixgeelhaar/okr/internal/metrics"
	"github.com/felixgeelhaar/okr/internal/storage"
)

// Session is the view of the session store the guard needs.
type Session interface {
	IsAuthenticated() bool
	Token() string
	LoadFromStorage(ctx context.Context)
	FetchCurrentUser(ctx context.Context) (domain.User, error)
	Logout(ctx context.Context)
}

// Action is what the guard decided for a navigation.
type Action int

const (
	// Allow lets the navigation proceed.
	Allow Action = iota
	// Redirect sends the navigation to Decision.To.
	Redirect
)

// String returns the action name
func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "allow"
}

// Decision is the outcome of one guarded navigation.
type Decision struct {
	Action Action
	To     string

	// Match is the resolved target; Matched is false for unknown paths.
	Match   Match
	Matched bool

	// Reason explains a redirect for logs and CLI notices.
	Reason string
}

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool {
	return d.Action == Allow
}

// Guard enforces route tags against the session on every navigation.
// It keeps no state between navigations.
type Guard struct {
	router  *Router
	session Session
	persist storage.Store
	logger  *log.Logger
	metrics *metrics.Metrics
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardLogger sets the guard logger.
func WithGuardLogger(l *log.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = l
	}
}

// WithGuardMetrics records decisions into m.
func WithGuardMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// NewGuard creates a guard. persist is consulted for a token the session has not loaded yet.
func NewGuard(r *Router, session Session, persist storage.Store, opts ...GuardOption) *Guard {
	g := &Guard{
		router:  r,
		session: session,
		persist: persist,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.WithComponent("guard")
	return g
}

// Router returns the route table the guard resolves against.
func (g *Guard) Router() *Router {
	return g.router
}

// Navigate decides whether path may be entered.
//
//  1. With no token in memory but one in storage, the session is rehydrated first.
//  2. An auth route with a token but no verified session re-validates the token;
//     failure logs out and redirects to login carrying path.
//  3. An auth route with no token redirects to login carrying path.
//  4. A guest route while authenticated redirects to the landing route.
//  5. Anything else is allowed.
func (g *Guard) Navigate(ctx context.Context, path string) Decision {
	match, ok := g.router.Match(path)
	d := g.decide(ctx, path, match, ok)
	d.Match = match
	d.Matched = ok

	label := "unknown"
	if ok {
		label = match.Route.Path
	}
	g.metrics.ObserveGuard(label, d.Action.String())
	if d.Action == Redirect {
		g.logger.DebugContext(ctx, "navigation redirected", "path", path, "to", d.To, "reason", d.Reason)
	}
	return d
}

func (g *Guard) decide(ctx context.Context, path string, match Match, ok bool) Decision {
	if g.session.Token() == "" && g.hasPersistedToken() {
		g.session.LoadFromStorage(ctx)
	}

	if !ok {
		return Decision{Action: Allow}
	}

	switch match.Route.Tag {
	case TagRequiresAuth:
		if g.session.IsAuthenticated() {
			return Decision{Action: Allow}
		}
		if g.session.Token() == "" {
			return Decision{Action: Redirect, To: LoginRedirect(path), Reason: "sign-in required"}
		}
		if _, err := g.session.FetchCurrentUser(ctx); err != nil || !g.session.IsAuthenticated() {
			g.logger.WithError(err).DebugContext(ctx, "token validation failed")
			g.session.Logout(ctx)
			return Decision{Action: Redirect, To: LoginRedirect(path), Reason: "session could not be verified"}
		}
		return Decision{Action: Allow}

	case TagRequiresGuest:
		if g.session.IsAuthenticated() {
			return Decision{Action: Redirect, To: LandingPath, Reason: "already signed in"}
		}
	}
	return Decision{Action: Allow}
}

func (g *Guard) hasPersistedToken() bool {
	if g.persist == nil {
		return false
	}
	_, ok, err := g.persist.Get(storage.KeyAuthToken)
	if err != nil {
		g.logger.WithError(err).Warn("failed to read stored token")
		return false
	}
	return ok
}
