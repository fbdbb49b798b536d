package flows

import (
	"errors"
	"testing"
)

func TestCleanPath(t *testing.T) {
	cases := map[string]string{
		"":                 "/",
		"/":                "/",
		"/health":          "/health",
		"/health/":         "/health",
		"//auth//login":    "/auth/login",
		"/docs/./a":        "/docs/a",
		"/a/../auth/login": "/auth/login",
		"auth/login":       "/auth/login",
		"/../../etc":       "/etc",
	}
	for in, want := range cases {
		if got := CleanPath(in); got != want {
			t.Fatalf("CleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRouteSetMatch(t *testing.T) {
	rs, err := NewRouteSet([]string{"/health", "/docs", "/docs/*", "/swagger/*", "/auth/*/callback", " "})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	match := []string{"/health", "/docs", "/docs/index.html", "/docs/a/b", "/swagger/ui", "/auth/google/callback"}
	for _, p := range match {
		if !rs.Match(p) {
			t.Fatalf("expected %q to match", p)
		}
	}

	miss := []string{"/healthz", "/swagger", "/auth/login", "/auth/google/callback/x", "/", "/api/docs"}
	for _, p := range miss {
		if rs.Match(p) {
			t.Fatalf("expected %q not to match", p)
		}
	}
}

func TestRouteSetWildcardAndNil(t *testing.T) {
	rs, err := NewRouteSet([]string{"*"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !rs.MatchAll() || !rs.Match("/anything/at/all") {
		t.Fatal("wildcard set must match everything")
	}

	var none *RouteSet
	if none.Match("/health") || none.MatchAll() {
		t.Fatal("nil set must match nothing")
	}
}

func TestRouteSetRejectsBadGlob(t *testing.T) {
	_, err := NewRouteSet([]string{"/auth/["})
	var pe *PatternError
	if !errors.As(err, &pe) || pe.Pattern != "/auth/[" {
		t.Fatalf("expected PatternError, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	good := map[string]string{
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"BEARER  abc  ":  "abc",
		"Bearer a.b.c-d": "a.b.c-d",
	}
	for in, want := range good {
		got, ok := BearerToken(in)
		if !ok || got != want {
			t.Fatalf("BearerToken(%q) = %q,%v want %q", in, got, ok, want)
		}
	}

	for _, in := range []string{"", "Bearer", "Bearer ", "Bearer    ", "Basic abc", "Token abc", "Bearer a b", "abc"} {
		if _, ok := BearerToken(in); ok {
			t.Fatalf("BearerToken(%q) should fail", in)
		}
	}
}
