// Package router holds the client route table and the navigation guard.
package router

import (
	"net/url"
	"strings"
)

// Tag is the access requirement of a route.
type Tag int

const (
	// TagNone marks a public route.
	TagNone Tag = iota
	// TagRequiresAuth marks a route that needs an authenticated session.
	TagRequiresAuth
	// TagRequiresGuest marks a route only shown to signed-out users.
	TagRequiresGuest
)

// String returns the tag name
func (t Tag) String() string {
	switch t {
	case TagRequiresAuth:
		return "requires-auth"
	case TagRequiresGuest:
		return "requires-guest"
	default:
		return "public"
	}
}

// Route describes one navigable client route.
type Route struct {
	Path string
	Name string
	View string
	Tag  Tag
}

// Well-known routes
const (
	LoginPath   = "/login"
	LandingPath = "/"
)

var routes = []Route{
	{Path: "/login", Name: "Login", View: "Login", Tag: TagRequiresGuest},
	{Path: "/register", Name: "Register", View: "Register", Tag: TagRequiresGuest},
	{Path: "/verify-email", Name: "VerifyEmail", View: "VerifyEmail", Tag: TagNone},
	{Path: "/forgot-password", Name: "ForgotPassword", View: "ForgotPassword", Tag: TagRequiresGuest},
	{Path: "/reset-password", Name: "ResetPassword", View: "ResetPassword", Tag: TagRequiresGuest},
	{Path: "/auth/google/callback", Name: "GoogleCallback", View: "GoogleCallback", Tag: TagNone},

	{Path: "/", Name: "Dashboard", View: "Dashboard", Tag: TagRequiresAuth},
	{Path: "/objectives", Name: "ObjectivesList", View: "ObjectivesList", Tag: TagRequiresAuth},
	{Path: "/objectives/:id", Name: "ObjectiveDetail", View: "ObjectiveDetail", Tag: TagRequiresAuth},
	{Path: "/reports", Name: "Reports", View: "Reports", Tag: TagRequiresAuth},
	{Path: "/people", Name: "People", View: "People", Tag: TagRequiresAuth},
	{Path: "/people/:id", Name: "PersonDetail", View: "PersonDetail", Tag: TagRequiresAuth},
	{Path: "/departments", Name: "Departments", View: "Departments", Tag: TagRequiresAuth},
	{Path: "/structure", Name: "Structure", View: "Structure", Tag: TagRequiresAuth},
	{Path: "/integrations", Name: "Integrations", View: "Integrations", Tag: TagRequiresAuth},
	{Path: "/onboarding", Name: "Onboarding", View: "Onboarding", Tag: TagRequiresAuth},
	{Path: "/notifications", Name: "Notifications", View: "Notifications", Tag: TagRequiresAuth},
	{Path: "/settings/company", Name: "CompanySettings", View: "CompanySettings", Tag: TagRequiresAuth},
}

// Routes returns a copy of the static route table.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// Match is a resolved navigation target.
type Match struct {
	Route  Route
	Params map[string]string
	Query  url.Values
}

// Router resolves paths against a route table.
type Router struct {
	routes []Route
}

// New creates a router over the default route table.
func New() *Router {
	return &Router{routes: Routes()}
}

// NewWithRoutes creates a router over a custom table.
func NewWithRoutes(rs []Route) *Router {
	out := make([]Route, len(rs))
	copy(out, rs)
	return &Router{routes: out}
}

// Match resolves path, which may carry a query string. When several patterns
// match, the one with more literal segments wins.
func (r *Router) Match(path string) (Match, bool) {
	clean, query := splitPath(path)
	segs := segments(clean)

	var (
		best      Match
		bestScore = -1
	)
	for _, route := range r.routes {
		params, score, ok := matchSegments(segments(route.Path), segs)
		if !ok || score <= bestScore {
			continue
		}
		best = Match{Route: route, Params: params, Query: query}
		bestScore = score
	}
	return best, bestScore >= 0
}

// Lookup returns the route named name.
func (r *Router) Lookup(name string) (Route, bool) {
	for _, route := range r.routes {
		if route.Name == name {
			return route, true
		}
	}
	return Route{}, false
}

func splitPath(path string) (string, url.Values) {
	var query url.Values
	if i := strings.IndexByte(path, '#'); i >= 0 {
		path = path[:i]
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		query, _ = url.ParseQuery(path[i+1:])
		path = path[:i]
	}
	if path == "" {
		path = "/"
	}
	return path, query
}

func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// matchSegments reports whether pattern matches segs. score counts literal segments.
func matchSegments(pattern, segs []string) (map[string]string, int, bool) {
	if len(pattern) != len(segs) {
		return nil, 0, false
	}
	var params map[string]string
	score := 0
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if segs[i] == "" {
				return nil, 0, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			v, err := url.PathUnescape(segs[i])
			if err != nil {
				v = segs[i]
			}
			params[p[1:]] = v
			continue
		}
		if p != segs[i] {
			return nil, 0, false
		}
		score++
	}
	return params, score, true
}

// LoginRedirect returns the login route carrying target as its return path.
func LoginRedirect(target string) string {
	if target == "" || target == LoginPath {
		return LoginPath
	}
	return LoginPath + "?redirect=" + escapeRedirect(target)
}

// escapeRedirect query-escapes target but keeps slashes readable.
func escapeRedirect(target string) string {
	return strings.ReplaceAll(url.QueryEscape(target), "%2F", "/")
}

// RedirectTarget extracts the return path from a login URL, defaulting to the landing route.
// Only local paths are accepted.
func RedirectTarget(loginURL string) string {
	_, query := splitPath(loginURL)
	target := query.Get("redirect")
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return LandingPath
	}
	return target
}
