package guard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownRoute = errors.New("unknown route")
	ErrRedirectLoop = errors.New("too many redirects")
)

// maxHops bounds redirect chains; the table below needs at most two.
const maxHops = 4

// Router is a static route table.
type Router struct {
	routes map[string]Target
	order  []string
}

func NewRouter(targets ...Target) *Router {
	r := &Router{routes: make(map[string]Target, len(targets))}
	for _, t := range targets {
		if _, ok := r.routes[t.Path]; !ok {
			r.order = append(r.order, t.Path)
		}
		r.routes[t.Path] = t
	}
	return r
}

// DefaultRouter returns the marketplace route table.
func DefaultRouter() *Router {
	return NewRouter(
		Target{Path: PathHome, Title: "Home"},
		Target{Path: "/marketplace", Title: "Marketplace"},
		Target{Path: PathLogin, Title: "Login", GuestOnly: true},
		Target{Path: "/register", Title: "Register", GuestOnly: true},
		Target{Path: PathDashboard, Title: "Dashboard", RequiresAuth: true, RequiresFarmer: true},
	)
}

// Lookup finds a route, ignoring a trailing slash.
func (r *Router) Lookup(path string) (Target, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	t, ok := r.routes[path]
	return t, ok
}

// Targets lists the routes in registration order.
func (r *Router) Targets() []Target {
	out := make([]Target, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.routes[p])
	}
	return out
}

// Resolve follows redirects from path until a route is allowed.
func (r *Router) Resolve(path string, s SessionView) (Target, error) {
	for hop := 0; hop <= maxHops; hop++ {
		t, ok := r.Lookup(path)
		if !ok {
			return Target{}, fmt.Errorf("%w: %s", ErrUnknownRoute, path)
		}
		d := Decide(t, s)
		if d.Allow {
			return t, nil
		}
		path = d.RedirectTo
	}
	return Target{}, fmt.Errorf("%w: %s", ErrRedirectLoop, path)
}
