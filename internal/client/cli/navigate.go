package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/farmmarket/internal/client/guard"
	"github.com/dmitrijs2005/farmmarket/internal/common"
)

var errFarmerOnly = errors.New("only farmers can manage listings")

// requireDashboard checks the access every listing-management command needs.
func (a *App) requireDashboard() error {
	t, _ := a.router.Lookup(guard.PathDashboard)
	d := guard.Decide(t, a.session)
	switch {
	case d.Allow:
		return nil
	case d.RedirectTo == guard.PathLogin:
		return common.ErrUnauthenticated
	default:
		return errFarmerOnly
	}
}

// Open navigates to path, following guard redirects, and renders the page.
func (a *App) Open(ctx context.Context, path string) error {
	t, err := a.router.Resolve(path, a.session)
	if err != nil {
		return err
	}
	if asked, ok := a.router.Lookup(path); ok && asked.Path != t.Path {
		a.println("Redirected to", t.Path)
	}

	a.println("==", t.Title, "==")
	switch t.Path {
	case guard.PathLogin:
		return a.Login(ctx)
	case "/register":
		return a.Register(ctx)
	case "/marketplace":
		return a.Products(ctx, "")
	case guard.PathDashboard:
		return a.Mine(ctx)
	default:
		a.println("Fresh produce straight from the farm. Try 'open /marketplace'.")
		return nil
	}
}
