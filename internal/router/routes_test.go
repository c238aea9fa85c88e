package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutesTable(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range Routes() {
		assert.False(t, seen[r.Path], "duplicate route %s", r.Path)
		seen[r.Path] = true
		assert.NotEmpty(t, r.Name)
	}

	r := New()
	tags := map[string]Tag{
		"/login":                TagRequiresGuest,
		"/register":             TagRequiresGuest,
		"/forgot-password":      TagRequiresGuest,
		"/reset-password":       TagRequiresGuest,
		"/verify-email":         TagNone,
		"/auth/google/callback": TagNone,
		"/":                     TagRequiresAuth,
		"/objectives":           TagRequiresAuth,
		"/objectives/42":        TagRequiresAuth,
		"/people/7":             TagRequiresAuth,
		"/settings/company":     TagRequiresAuth,
	}
	for path, want := range tags {
		m, ok := r.Match(path)
		require.True(t, ok, path)
		assert.Equal(t, want, m.Route.Tag, path)
	}
}

func TestRoutesReturnsCopy(t *testing.T) {
	rs := Routes()
	rs[0].Tag = TagNone
	m, ok := New().Match("/login")
	require.True(t, ok)
	assert.Equal(t, TagRequiresGuest, m.Route.Tag)
}

func TestMatch(t *testing.T) {
	r := New()

	m, ok := r.Match("/objectives/42?tab=history")
	require.True(t, ok)
	assert.Equal(t, "ObjectiveDetail", m.Route.Name)
	assert.Equal(t, "42", m.Params["id"])
	assert.Equal(t, "history", m.Query.Get("tab"))

	m, ok = r.Match("/objectives/")
	require.True(t, ok)
	assert.Equal(t, "ObjectivesList", m.Route.Name)

	m, ok = r.Match("")
	require.True(t, ok)
	assert.Equal(t, "Dashboard", m.Route.Name)

	m, ok = r.Match("/people/a%20b")
	require.True(t, ok)
	assert.Equal(t, "a b", m.Params["id"])

	_, ok = r.Match("/objectives/42/edit")
	assert.False(t, ok)
	_, ok = r.Match("/nowhere")
	assert.False(t, ok)
}

func TestMatchPrefersLiteralSegments(t *testing.T) {
	r := NewWithRoutes([]Route{
		{Path: "/objectives/:id", Name: "Detail"},
		{Path: "/objectives/new", Name: "New"},
	})
	m, ok := r.Match("/objectives/new")
	require.True(t, ok)
	assert.Equal(t, "New", m.Route.Name)

	m, ok = r.Match("/objectives/9")
	require.True(t, ok)
	assert.Equal(t, "Detail", m.Route.Name)
}

func TestLookup(t *testing.T) {
	r := New()
	route, ok := r.Lookup("CompanySettings")
	require.True(t, ok)
	assert.Equal(t, "/settings/company", route.Path)
	_, ok = r.Lookup("Missing")
	assert.False(t, ok)
}

func TestLoginRedirect(t *testing.T) {
	assert.Equal(t, "/login?redirect=/objectives/42", LoginRedirect("/objectives/42"))
	assert.Equal(t, "/login?redirect=/objectives%3Fstatus%3Dopen", LoginRedirect("/objectives?status=open"))
	assert.Equal(t, "/login", LoginRedirect(""))
	assert.Equal(t, "/login", LoginRedirect("/login"))
}

func TestRedirectTarget(t *testing.T) {
	assert.Equal(t, "/objectives/42", RedirectTarget("/login?redirect=/objectives/42"))
	assert.Equal(t, "/objectives?status=open", RedirectTarget(LoginRedirect("/objectives?status=open")))
	assert.Equal(t, "/", RedirectTarget("/login"))
	assert.Equal(t, "/", RedirectTarget("/login?redirect=https://evil.example"))
	assert.Equal(t, "/", RedirectTarget("/login?redirect=//evil.example"))
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "requires-auth", TagRequiresAuth.String())
	assert.Equal(t, "requires-guest", TagRequiresGuest.String())
	assert.Equal(t, "public", TagNone.String())
}
