// Package guard holds the pure route-gating policy: which paths need an
// authenticated session and where a request goes when it is not allowed.
package guard

import (
	"strings"

	"github.com/senpy/sen-dashboard/internal/domain/auth"
)

// State is the authentication state of a browsing context.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// StateOf derives the guard state from a session. Token presence is the only
// criterion; expiry and signatures are not inspected.
func StateOf(s auth.Session) State {
	if s.Authenticated() {
		return Authenticated
	}
	return Unauthenticated
}

// RouteKind classifies a navigation target.
type RouteKind int

const (
	Unknown RouteKind = iota
	Public
	Protected
)

const (
	// LoginPath is the only public page.
	LoginPath = "/login"
	// HomePath is the landing page of the protected area.
	HomePath = "/home"
)

// CanAccess reports whether a context in state may view a route of the given kind.
// Unknown routes are never viewable; they always redirect.
func CanAccess(state State, kind RouteKind) bool {
	switch kind {
	case Public:
		return true
	case Protected:
		return state == Authenticated
	default:
		return false
	}
}

// Decision is the outcome of evaluating a navigation.
type Decision struct {
	Allow    bool
	Redirect string
}

// Policy maps paths to route kinds.
type Policy struct {
	exact  map[string]bool
	params []string
}

// NewPolicy returns a policy where /login is public and /home plus the given
// routes are protected. Routes match exactly, except that a route ending in
// "/" matches one further non-empty path segment (as in /details/{section}).
// Any other path is Unknown, including paths below a registered route.
func NewPolicy(protectedRoutes ...string) Policy {
	p := Policy{exact: map[string]bool{HomePath: true}}
	for _, route := range protectedRoutes {
		route = strings.TrimSpace(route)
		if !strings.HasPrefix(route, "/") {
			route = "/" + route
		}
		switch {
		case route == "/":
		case strings.HasSuffix(route, "/"):
			p.params = append(p.params, route)
		default:
			p.exact[route] = true
		}
	}
	return p
}

// Classify returns the route kind for a request path.
func (p Policy) Classify(path string) RouteKind {
	if path == LoginPath || path == LoginPath+"/" {
		return Public
	}
	if p.exact[path] {
		return Protected
	}
	for _, prefix := range p.params {
		rest, ok := strings.CutPrefix(path, prefix)
		if ok && rest != "" && !strings.Contains(rest, "/") {
			return Protected
		}
	}
	return Unknown
}

// Decide evaluates a navigation to path. It never fails: anything that cannot
// be shown resolves to a redirect.
func (p Policy) Decide(state State, path string) Decision {
	kind := p.Classify(path)
	switch kind {
	case Public:
		if state == Authenticated {
			return Decision{Redirect: HomePath}
		}
		return Decision{Allow: true}
	case Protected:
		if CanAccess(state, kind) {
			return Decision{Allow: true}
		}
		return Decision{Redirect: LoginPath}
	default:
		return Decision{Redirect: Fallback(state)}
	}
}

// Fallback is the destination for unmatched routes.
func Fallback(state State) string {
	if state == Authenticated {
		return HomePath
	}
	return LoginPath
}
