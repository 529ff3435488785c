package rest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
)

const (
	testAnonKey  = "anon-key"
	testEmail    = "farmer@example.com"
	testPassword = "s3cret!"
	testUserID   = "u1"
)

func mintToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   map[string]any
}

// fakeBackend is a minimal GoTrue + PostgREST stand-in.
type fakeBackend struct {
	t *testing.T

	mu             sync.Mutex
	requests       []recorded
	refreshFails   bool
	logoutFails    bool
	signupSession  bool
	tableStatus    int
	tableResponse  any
	refreshedToken string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{t: t, tableStatus: http.StatusOK, tableResponse: []any{}}

	r := chi.NewRouter()
	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/token", b.token)
		r.Post("/signup", b.signup)
		r.Post("/logout", b.logout)
		r.Get("/user", b.user)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(apiKeyHeader) != testAnonKey {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			render.JSON(w, r, map[string]string{"name": "GoTrue"})
		})
	})
	r.HandleFunc("/rest/v1/{table}", b.table)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) record(r *http.Request) map[string]any {
	var body map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		_ = render.DecodeJSON(r.Body, &body)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	return body
}

func (b *fakeBackend) last() recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(b.t, b.requests)
	return b.requests[len(b.requests)-1]
}

func (b *fakeBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (b *fakeBackend) session() map[string]any {
	return map[string]any{
		"access_token":  mintToken(b.t, testUserID, testEmail, time.Now().Add(time.Hour)),
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": "r1",
		"user":          map[string]any{"id": testUserID, "email": testEmail},
	}
}

func (b *fakeBackend) token(w http.ResponseWriter, r *http.Request) {
	body := b.record(r)

	switch r.URL.Query().Get("grant_type") {
	case "password":
		if body["email"] != testEmail || body["password"] != testPassword {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		render.JSON(w, r, b.session())

	case "refresh_token":
		b.mu.Lock()
		fail := b.refreshFails
		b.mu.Unlock()
		if fail || body["refresh_token"] != "r1" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]any{
				"code":       400,
				"error_code": "refresh_token_not_found",
				"msg":        "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		// expiry and user only inside the token
		tok := mintToken(b.t, testUserID, testEmail, time.Now().Add(time.Hour).Truncate(time.Second))
		b.mu.Lock()
		b.refreshedToken = tok
		b.mu.Unlock()
		render.JSON(w, r, map[string]any{
			"access_token":  tok,
			"token_type":    "bearer",
			"refresh_token": "r2",
		})

	default:
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]any{"error": "unsupported_grant_type"})
	}
}

func (b *fakeBackend) signup(w http.ResponseWriter, r *http.Request) {
	body := b.record(r)

	if body["email"] == testEmail {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]any{
			"code":       422,
			"error_code": "user_already_exists",
			"msg":        "User already registered",
		})
		return
	}

	b.mu.Lock()
	withSession := b.signupSession
	b.mu.Unlock()

	if withSession {
		s := b.session()
		s["user"] = map[string]any{"id": "u2", "email": body["email"]}
		render.JSON(w, r, s)
		return
	}
	render.JSON(w, r, map[string]any{"id": "u2", "email": body["email"]})
}

func (b *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	b.mu.Lock()
	fail := b.logoutFails
	b.mu.Unlock()
	if fail {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]any{"code": 500, "msg": "logout failed"})
		return
	}
	render.NoContent(w, r)
}

func (b *fakeBackend) user(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	if r.Header.Get("Authorization") == "" {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]any{"code": 401, "msg": "missing token"})
		return
	}
	render.JSON(w, r, map[string]any{"id": testUserID, "email": testEmail})
}

func (b *fakeBackend) table(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	b.mu.Lock()
	status, resp := b.tableStatus, b.tableResponse
	b.mu.Unlock()

	if status == http.StatusNoContent {
		render.NoContent(w, r)
		return
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func (b *fakeBackend) respond(status int, resp any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tableStatus, b.tableResponse = status, resp
}

func collectEvents(a *Auth) (<-chan gateway.SessionEvent, func()) {
	ch := make(chan gateway.SessionEvent, 16)
	unsub := a.OnSessionChange(func(ev gateway.SessionEvent) { ch <- ev })
	return ch, unsub
}

func nextEvent(t *testing.T, ch <-chan gateway.SessionEvent) gateway.SessionEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no session event delivered")
	}
	return gateway.SessionEvent{}
}

func noEvent(t *testing.T, ch <-chan gateway.SessionEvent) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected session event %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}
