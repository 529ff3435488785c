package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/logging"
	"github.com/dmitrijs2005/farmmarket/internal/netx"
)

const (
	authPrefix = "/auth/v1"

	// refreshLeeway refreshes access tokens slightly before they expire.
	refreshLeeway = 10 * time.Second
)

// TokenSource yields the bearer token for table and storage requests.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Auth is the GoTrue client. It implements gateway.AuthGateway and
// TokenSource.
type Auth struct {
	t      *transport
	store  SessionStore
	logger logging.Logger
	now    func() time.Time

	// mu guards current and loaded, and serializes event publishing.
	mu      sync.Mutex
	current *models.Session
	loaded  bool

	// refreshMu serializes refresh round trips.
	refreshMu sync.Mutex

	events *notifier
}

var _ gateway.AuthGateway = (*Auth)(nil)
var _ TokenSource = (*Auth)(nil)

// NewAuth creates a GoTrue client for baseURL authenticated with apiKey.
// A nil store keeps the session in memory.
func NewAuth(baseURL, apiKey string, hc *http.Client, store SessionStore, logger logging.Logger) *Auth {
	if store == nil {
		store = &MemoryStore{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Auth{
		t:      newTransport(baseURL, apiKey, hc),
		store:  store,
		logger: logger,
		now:    time.Now,
		events: newNotifier(),
	}
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`

	// sign-up without a session answers with the bare user
	ID    string `json:"id"`
	Email string `json:"email"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func (r *tokenResponse) user() *models.User {
	if r.User != nil && r.User.ID != "" {
		return &models.User{ID: r.User.ID, Email: r.User.Email}
	}
	if r.ID != "" {
		return &models.User{ID: r.ID, Email: r.Email}
	}
	return nil
}

// session builds a Session from a token answer, filling expiry and user from
// the access token claims when the answer omits them. It returns nil when the
// answer carries no access token.
func (a *Auth) session(r *tokenResponse) (*models.Session, error) {
	if r.AccessToken == "" {
		return nil, nil
	}

	s := &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = a.now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	if u := r.user(); u != nil {
		s.User = *u
	}

	if s.ExpiresAt.IsZero() || s.User.ID == "" {
		var claims accessClaims
		if _, _, err := jwt.NewParser().ParseUnverified(r.AccessToken, &claims); err != nil {
			if s.User.ID == "" {
				return nil, fmt.Errorf("parse access token: %w", err)
			}
		} else {
			if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
				s.ExpiresAt = claims.ExpiresAt.Time
			}
			if s.User.ID == "" {
				s.User = models.User{ID: claims.Subject, Email: claims.Email}
			}
		}
	}

	if s.User.ID == "" {
		return nil, errors.New("session without user")
	}
	return s, nil
}

// install replaces the current session, persists it and publishes kind.
// A nil s clears the session.
func (a *Auth) install(ctx context.Context, s *models.Session, kind gateway.EventKind) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.current = s
	a.loaded = true

	if s == nil {
		if err := a.store.Clear(ctx); err != nil {
			a.logger.Warn(ctx, "failed to clear stored session", logging.Err(err))
		}
	} else if err := a.store.Save(ctx, s); err != nil {
		a.logger.Warn(ctx, "failed to persist session", logging.Err(err))
	}

	var cp *models.Session
	if s != nil {
		v := *s
		cp = &v
	}
	a.events.publish(gateway.SessionEvent{Kind: kind, Session: cp})
}

func (a *Auth) snapshot(ctx context.Context) *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		s, err := a.store.Load(ctx)
		if err != nil {
			a.logger.Warn(ctx, "failed to load stored session", logging.Err(err))
		}
		a.current = s
		a.loaded = true
	}
	if a.current == nil {
		return nil
	}
	cp := *a.current
	return &cp
}

func (a *Auth) GetSession(ctx context.Context) (*models.Session, error) {
	s := a.snapshot(ctx)
	if s == nil {
		return nil, nil
	}
	if !s.Expired(a.now(), refreshLeeway) {
		return s, nil
	}
	return a.refresh(ctx, s)
}

// refresh exchanges the refresh token of stale for a new session. A rejected
// refresh token signs the user out; a transport failure keeps the stored
// session for a later attempt.
func (a *Auth) refresh(ctx context.Context, stale *models.Session) (*models.Session, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	// another caller may have refreshed already
	if cur := a.snapshot(ctx); cur == nil || cur.AccessToken != stale.AccessToken {
		return cur, nil
	}

	q := url.Values{"grant_type": {"refresh_token"}}
	req, err := a.t.newRequest(ctx, http.MethodPost, authPrefix+"/token", q,
		map[string]string{"refresh_token": stale.RefreshToken})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := a.t.do(req, "refresh session", &tr); err != nil {
		if isRemote(err) {
			a.logger.Info(ctx, "refresh token rejected, signing out", logging.Err(err))
			a.install(ctx, nil, gateway.EventSignedOut)
		}
		return nil, err
	}

	s, err := a.session(&tr)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if s == nil {
		return nil, errors.New("refresh session: empty token response")
	}
	a.install(ctx, s, gateway.EventTokenRefreshed)
	return s, nil
}

func (a *Auth) OnSessionChange(handler func(gateway.SessionEvent)) func() {
	return a.events.subscribe(handler)
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*models.User, error) {
	q := url.Values{"grant_type": {"password"}}
	req, err := a.t.newRequest(ctx, http.MethodPost, authPrefix+"/token", q,
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := a.t.do(req, "sign in", &tr); err != nil {
		return nil, err
	}

	s, err := a.session(&tr)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if s == nil {
		return nil, errors.New("sign in: empty token response")
	}

	a.install(ctx, s, gateway.EventSignedIn)
	u := s.User
	return &u, nil
}

// SignUp creates the identity. When the service issues a session right away
// (no email confirmation) the user is signed in as well.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	req, err := a.t.newRequest(ctx, http.MethodPost, authPrefix+"/signup", nil,
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := a.t.do(req, "sign up", &tr); err != nil {
		return nil, err
	}

	s, err := a.session(&tr)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if s != nil {
		a.install(ctx, s, gateway.EventSignedIn)
		u := s.User
		return &u, nil
	}

	u := tr.user()
	if u == nil {
		return nil, errors.New("sign up: response without user")
	}
	return u, nil
}

// SignOut revokes the session on the service. The local session is dropped
// even when the service call fails; the failure is still returned.
func (a *Auth) SignOut(ctx context.Context) error {
	s := a.snapshot(ctx)

	var err error
	if s != nil {
		var req *http.Request
		req, err = a.t.newRequest(ctx, http.MethodPost, authPrefix+"/logout", nil, nil)
		if err == nil {
			setBearer(req, s.AccessToken)
			err = a.t.do(req, "sign out", nil)
		}
	}

	a.install(ctx, nil, gateway.EventSignedOut)
	return err
}

func (a *Auth) GetCurrentUser(ctx context.Context) (*models.User, error) {
	s, err := a.GetSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}

	req, err := a.t.newRequest(ctx, http.MethodGet, authPrefix+"/user", nil, nil)
	if err != nil {
		return nil, err
	}
	setBearer(req, s.AccessToken)

	var ur userResponse
	if err := a.t.do(req, "get user", &ur); err != nil {
		return nil, err
	}
	return &models.User{ID: ur.ID, Email: ur.Email}, nil
}

// AccessToken returns the current access token, or the anon key when nobody
// is signed in.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	s, err := a.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return a.t.apiKey, nil
	}
	return s.AccessToken, nil
}

// Ping checks that the auth service answers its health endpoint.
func (a *Auth) Ping(ctx context.Context) error {
	h := http.Header{}
	h.Set(apiKeyHeader, a.t.apiKey)
	return netx.Probe(ctx, a.t.http, a.t.baseURL+authPrefix+"/health", h)
}

// Close stops event delivery to all subscribers.
func (a *Auth) Close() {
	a.events.close()
}
