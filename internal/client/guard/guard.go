// Package guard decides whether the current session may open a route.
package guard

// Target describes a route and its access requirements.
type Target struct {
	Path           string
	Title          string
	RequiresAuth   bool
	RequiresFarmer bool
	GuestOnly      bool
}

// SessionView is the part of the session manager the guard reads.
type SessionView interface {
	IsAuthenticated() bool
	IsFarmer() bool
}

// Decision is either Allow or a redirect to RedirectTo.
type Decision struct {
	Allow      bool
	RedirectTo string
}

const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
)

// Decide applies the rules in order; the first one that matches wins.
func Decide(t Target, s SessionView) Decision {
	auth := s.IsAuthenticated()

	switch {
	case t.RequiresAuth && !auth:
		return Decision{RedirectTo: PathLogin}
	case t.RequiresFarmer && !s.IsFarmer():
		return Decision{RedirectTo: PathHome}
	case t.GuestOnly && auth:
		return Decision{RedirectTo: PathDashboard}
	}
	return Decision{Allow: true}
}
