package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/client/services"
	"github.com/dmitrijs2005/farmmarket/internal/common"
	"github.com/dmitrijs2005/farmmarket/internal/logging"
)

// signInWait bounds how long a command waits for the SIGNED_IN notification.
var signInWait = 5 * time.Second

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

// awaitSignedIn blocks until the session belongs to userID.
func (a *App) awaitSignedIn(ctx context.Context, userID string) bool {
	ctx, cancel := context.WithTimeout(ctx, signInWait)
	defer cancel()

	_, err := a.session.Await(ctx, func(s services.State) bool {
		auth, ok := s.(services.Authenticated)
		return ok && auth.Session.User.ID == userID
	})
	return err == nil
}

func (a *App) readCredentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

func (a *App) readProfile() (models.ProfileInput, error) {
	var in models.ProfileInput
	var err error

	if in.Username, err = getSimpleText(a.reader, "Enter username", a.out); err != nil {
		return in, err
	}
	role, err := getSimpleText(a.reader, "Enter role (farmer or buyer)", a.out)
	if err != nil {
		return in, err
	}
	in.Role = models.Role(role)
	if in.Phone, err = getSimpleText(a.reader, "Enter phone (optional)", a.out); err != nil {
		return in, err
	}
	if in.Location, err = getSimpleText(a.reader, "Enter location (optional)", a.out); err != nil {
		return in, err
	}
	return in, nil
}

// Login prompts for credentials and signs in. The prompt switches to the
// new user once the session notification has been applied.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.session.Login(ctx, models.Credentials{Email: email, Password: string(password)})
	if err != nil {
		a.logger.Warn(ctx, "login failed", "email", email, logging.Err(err))
		return err
	}

	if !a.awaitSignedIn(ctx, u.ID) {
		a.logger.Warn(ctx, "signed in but no session notification arrived", "user", u.ID)
	}
	a.println("Logged in as", u.Email)
	return nil
}

// Register creates an account and its profile.
func (a *App) Register(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	profile, err := a.readProfile()
	if err != nil {
		return err
	}

	u, err := a.session.Register(ctx, models.RegisterInput{
		Email:        email,
		Password:     string(password),
		ProfileInput: profile,
	})
	if errors.Is(err, common.ErrPartialWrite) {
		a.println("Account created but the profile was not saved. Run 'profile' to retry.")
		return err
	}
	if err != nil {
		return err
	}

	if a.awaitSignedIn(ctx, u.ID) {
		a.println("Registered and logged in as", u.Email)
	} else {
		a.println("Registered", u.Email+". Confirm the address, then log in.")
	}
	return nil
}

// CompleteProfile writes the profile of a signed-in user that has none.
func (a *App) CompleteProfile(ctx context.Context) error {
	if !a.isLoggedIn() {
		return common.ErrUnauthenticated
	}
	in, err := a.readProfile()
	if err != nil {
		return err
	}
	p, err := a.session.CompleteProfile(ctx, in)
	if err != nil {
		return err
	}
	a.println("Profile saved for", p.Username)
	return nil
}

// Logout always ends the local session; a remote failure is reported after.
func (a *App) Logout(ctx context.Context) error {
	err := a.session.Logout(ctx)
	a.products.ClearFilters()
	a.println("Logged out")
	return err
}

func (a *App) Whoami(ctx context.Context) error {
	u := a.session.User()
	if u == nil {
		a.println("Not logged in")
		return nil
	}

	p := a.session.Profile()
	if p == nil {
		a.println(u.Email, "(no profile, run 'profile')")
		return nil
	}
	a.println(fmt.Sprintf("%s <%s> role=%s", p.Username, u.Email, p.Role))
	return nil
}
