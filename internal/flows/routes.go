package flows

import (
	"path"
	"strings"
)

// CleanPath normalizes a request path. Paths that are already clean are
// returned without allocating.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return path.Clean("/" + p)
	}

	n := len(p)
	for i := 1; i < n; i++ {
		if p[i] == '/' {
			if p[i-1] == '/' {
				return path.Clean(p)
			}
		} else if p[i] == '.' {
			if p[i-1] == '/' {
				return path.Clean(p)
			}
		}
	}

	if n > 1 && p[n-1] == '/' {
		return path.Clean(p)
	}

	return p
}

// RouteSet matches cleaned paths against a fixed list of patterns.
//
// A pattern is an exact path ("/health"), a subtree ("/docs/*", which matches
// "/docs/a/b" but not "/docs"), or a path.Match glob ("/auth/*/callback").
// The single pattern "*" matches every path.
type RouteSet struct {
	all      bool
	exact    map[string]struct{}
	prefixes []string
	globs    []string
}

// NewRouteSet compiles patterns. Blank entries are ignored and invalid globs
// are returned as an error.
func NewRouteSet(patterns []string) (*RouteSet, error) {
	rs := &RouteSet{exact: make(map[string]struct{}, len(patterns))}

	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		switch {
		case p == "":
			continue
		case p == "*":
			rs.all = true
		case strings.HasSuffix(p, "/*") && !strings.ContainsAny(p[:len(p)-2], "*?["):
			rs.prefixes = append(rs.prefixes, CleanPath(p[:len(p)-2])+"/")
		case strings.ContainsAny(p, "*?["):
			if _, err := path.Match(p, "/"); err != nil {
				return nil, &PatternError{Pattern: p, Err: err}
			}
			rs.globs = append(rs.globs, p)
		default:
			rs.exact[CleanPath(p)] = struct{}{}
		}
	}

	return rs, nil
}

// MatchAll reports whether the set was built with the "*" pattern.
func (rs *RouteSet) MatchAll() bool {
	return rs != nil && rs.all
}

// Match expects a path already passed through CleanPath.
func (rs *RouteSet) Match(p string) bool {
	if rs == nil {
		return false
	}
	if rs.all {
		return true
	}
	if _, ok := rs.exact[p]; ok {
		return true
	}
	for _, prefix := range rs.prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for _, g := range rs.globs {
		if ok, _ := path.Match(g, p); ok {
			return true
		}
	}
	return false
}

// PatternError reports a route pattern that path.Match cannot parse.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "invalid route pattern " + `"` + e.Pattern + `": ` + e.Err.Error()
}

func (e *PatternError) Unwrap() error { return e.Err }
