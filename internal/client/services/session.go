package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/common"
	"github.com/dmitrijs2005/farmmarket/internal/logging"
)

// State is the session lifecycle state. It is one of Uninitialized,
// Resolving, Anonymous or Authenticated.
type State interface {
	isState()
	String() string
}

type (
	Uninitialized struct{}
	Resolving     struct{}
	Anonymous     struct{}

	// Authenticated holds a live session. Profile is nil while the users
	// row is missing or could not be read.
	Authenticated struct {
		Session models.Session
		Profile *models.UserProfile
	}
)

func (Uninitialized) isState() {}
func (Resolving) isState()     {}
func (Anonymous) isState()     {}
func (Authenticated) isState() {}

func (Uninitialized) String() string { return "uninitialized" }
func (Resolving) String() string     { return "resolving" }
func (Anonymous) String() string     { return "anonymous" }
func (Authenticated) String() string { return "authenticated" }

// SessionManager owns the session and profile of the current user.
//
// The gateway's session-change feed is the only writer of the authenticated
// state: Login returns once the credentials are accepted and the state
// follows with the SIGNED_IN notification. Logout is the exception and
// drops the state itself, whatever the remote sign-out reports.
type SessionManager struct {
	auth   gateway.AuthGateway
	tables gateway.TableGateway
	logger logging.Logger

	mu    sync.RWMutex
	state State
	// gen counts notifications received; Init drops its snapshot when a
	// notification arrived while it was resolving.
	gen     uint64
	st      status
	changed chan struct{}
	// written holds profiles this client inserted, by user id, for
	// notifications whose own read ran before the insert
	written map[string]*models.UserProfile

	initOnce sync.Once
	subOnce  sync.Once
	unsub    func()
}

func NewSessionManager(auth gateway.AuthGateway, tables gateway.TableGateway, logger logging.Logger) *SessionManager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SessionManager{
		auth:    auth,
		tables:  tables,
		logger:  logger,
		state:   Uninitialized{},
		changed: make(chan struct{}),
		written: map[string]*models.UserProfile{},
	}
}

// setLocked installs s and wakes Await callers. m.mu must be held.
func (m *SessionManager) setLocked(s State) {
	m.state = s
	close(m.changed)
	m.changed = make(chan struct{})
}

// Init resolves the initial session and subscribes to session changes.
// Only the first call does work; later calls wait for it to finish. Errors
// are logged and leave the user anonymous. When a notification arrives
// while resolving, Init returns once that notification is applied.
func (m *SessionManager) Init(ctx context.Context) {
	m.initOnce.Do(func() { m.resolve(ctx) })
}

func (m *SessionManager) resolve(ctx context.Context) {
	m.mu.Lock()
	m.st.pending++
	m.setLocked(Resolving{})
	m.mu.Unlock()

	m.subOnce.Do(func() {
		m.unsub = m.auth.OnSessionChange(m.onSessionChange)
	})

	m.mu.RLock()
	gen := m.gen
	m.mu.RUnlock()

	var next State = Anonymous{}
	s, err := m.auth.GetSession(ctx)
	switch {
	case err != nil:
		m.logger.Warn(ctx, "session initialization failed", logging.Err(err))
	case s != nil:
		next = Authenticated{Session: *s, Profile: m.loadProfile(ctx, s.User.ID)}
	}

	m.mu.Lock()
	m.st.pending--
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Debug(ctx, "session changed during initialization, waiting for notified state")
		if _, err := m.Await(ctx, Resolved); err != nil {
			m.logger.Warn(ctx, "session initialization interrupted", logging.Err(err))
		}
		return
	}
	m.setLocked(next)
	m.mu.Unlock()
	m.logger.Info(ctx, "session resolved", "state", next.String())
}

// loadProfile reads the users row of userID. A missing row or a failed read
// yields nil.
func (m *SessionManager) loadProfile(ctx context.Context, userID string) *models.UserProfile {
	q := gateway.Query{Table: common.TableUsers, Limit: 1}.Where("id", userID)

	rows, err := m.tables.Select(ctx, q)
	if err != nil {
		m.logger.Warn(ctx, "profile fetch failed", "user_id", userID, logging.Err(err))
		return nil
	}
	if len(rows) == 0 {
		m.logger.Info(ctx, "user has no profile", "user_id", userID)
		return nil
	}

	p, err := gateway.DecodeRow[models.UserProfile](rows[0])
	if err != nil {
		m.logger.Warn(ctx, "profile decode failed", "user_id", userID, logging.Err(err))
		return nil
	}
	return p
}

func (m *SessionManager) onSessionChange(ev gateway.SessionEvent) {
	ctx := context.Background()

	m.mu.Lock()
	m.gen++
	prev := m.state
	m.mu.Unlock()

	m.logger.Debug(ctx, "session event", "kind", string(ev.Kind))

	if ev.Session == nil {
		m.mu.Lock()
		m.setLocked(Anonymous{})
		m.mu.Unlock()
		return
	}

	var profile *models.UserProfile
	a, same := prev.(Authenticated)
	same = same && a.Session.User.ID == ev.Session.User.ID
	if ev.Kind == gateway.EventTokenRefreshed && same && a.Profile != nil {
		profile = a.Profile
	} else {
		profile = m.loadProfile(ctx, ev.Session.User.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// a profile written meanwhile (Register, CompleteProfile) survives a
	// read that found nothing
	if profile == nil {
		profile = m.written[ev.Session.User.ID]
	}
	if cur, ok := m.state.(Authenticated); ok && profile == nil &&
		cur.Session.User.ID == ev.Session.User.ID {
		profile = cur.Profile
	}
	m.setLocked(Authenticated{Session: *ev.Session, Profile: profile})
}

// Login checks the credentials with the gateway and returns the user. It
// does not change the session state.
func (m *SessionManager) Login(ctx context.Context, c models.Credentials) (*models.User, error) {
	m.begin()
	defer m.end()

	if err := validateInput(c); err != nil {
		return nil, m.fail(err, "Login failed")
	}

	u, err := m.auth.SignInWithPassword(ctx, c.Email, c.Password)
	if err != nil {
		return nil, m.fail(err, "Login failed")
	}

	m.logger.Info(ctx, "signed in", "user_id", u.ID)
	return u, nil
}

// profileRow is the users table record written at registration.
type profileRow struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	Phone    *string     `json:"phone"`
	Location *string     `json:"location"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (m *SessionManager) insertProfile(ctx context.Context, u *models.User, in models.ProfileInput) (*models.UserProfile, error) {
	row, err := m.tables.Insert(ctx, common.TableUsers, profileRow{
		ID:       u.ID,
		Username: in.Username,
		Email:    u.Email,
		Role:     in.Role,
		Phone:    optional(in.Phone),
		Location: optional(in.Location),
	}, gateway.Returning{})
	if err != nil {
		return nil, err
	}
	return gateway.DecodeRow[models.UserProfile](row)
}

// installProfile records p and attaches it to the authenticated state when
// it belongs to the current user.
func (m *SessionManager) installProfile(p *models.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written[p.ID] = p
	if a, ok := m.state.(Authenticated); ok && a.Session.User.ID == p.ID {
		a.Profile = p
		m.setLocked(a)
	}
}

// Register creates the identity and then its profile row. When the identity
// is created but the profile write fails, the returned error matches
// common.ErrPartialWrite and CompleteProfile can finish the job once the
// user is signed in.
func (m *SessionManager) Register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	m.begin()
	defer m.end()

	if err := validateInput(in); err != nil {
		return nil, m.fail(err, "Registration failed")
	}

	u, err := m.auth.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return nil, m.fail(err, "Registration failed")
	}

	p, err := m.insertProfile(ctx, u, in.ProfileInput)
	if err != nil {
		m.logger.Error(ctx, "profile write failed after sign-up", "user_id", u.ID, logging.Err(err))
		m.fail(err, "Registration failed")
		return u, fmt.Errorf("%w: profile for %s: %w", common.ErrPartialWrite, u.ID, err)
	}

	m.installProfile(p)
	m.logger.Info(ctx, "registered", "user_id", u.ID, "role", string(p.Role))
	return u, nil
}

// CompleteProfile writes the profile row of the signed-in user.
func (m *SessionManager) CompleteProfile(ctx context.Context, in models.ProfileInput) (*models.UserProfile, error) {
	m.begin()
	defer m.end()

	if err := validateInput(in); err != nil {
		return nil, m.fail(err, "Profile update failed")
	}

	u, err := m.auth.GetCurrentUser(ctx)
	if err != nil {
		return nil, m.fail(err, "Profile update failed")
	}
	if u == nil {
		return nil, m.fail(common.ErrUnauthenticated, "")
	}

	p, err := m.insertProfile(ctx, u, in)
	if err != nil {
		return nil, m.fail(err, "Profile update failed")
	}

	m.installProfile(p)
	return p, nil
}

// Logout signs out remotely and always ends anonymous. A failed remote
// sign-out is reported on the error field and returned.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.begin()
	defer m.end()

	err := m.auth.SignOut(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(Anonymous{})
	m.st.err = ""
	if err != nil {
		m.logger.Warn(ctx, "remote sign-out failed", logging.Err(err))
		m.st.record(err, "Logout failed")
	}
	return err
}

// Await blocks until the state satisfies pred or ctx is done.
func (m *SessionManager) Await(ctx context.Context, pred func(State) bool) (State, error) {
	for {
		m.mu.RLock()
		s, ch := m.state, m.changed
		m.mu.RUnlock()

		if pred(s) {
			return s, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

// Resolved reports whether s is past initialization.
func Resolved(s State) bool {
	switch s.(type) {
	case Anonymous, Authenticated:
		return true
	}
	return false
}

func (m *SessionManager) begin() {
	m.mu.Lock()
	m.st.begin()
	m.mu.Unlock()
}

func (m *SessionManager) end() {
	m.mu.Lock()
	m.st.end()
	m.mu.Unlock()
}

func (m *SessionManager) fail(err error, fallback string) error {
	m.mu.Lock()
	m.st.record(err, fallback)
	m.mu.Unlock()
	return err
}

func (m *SessionManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *SessionManager) authenticated() (Authenticated, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.state.(Authenticated)
	return a, ok
}

// Session returns a copy of the current session, or nil.
func (m *SessionManager) Session() *models.Session {
	a, ok := m.authenticated()
	if !ok {
		return nil
	}
	s := a.Session
	return &s
}

// User returns the user of the current session, or nil.
func (m *SessionManager) User() *models.User {
	a, ok := m.authenticated()
	if !ok {
		return nil
	}
	u := a.Session.User
	return &u
}

// Profile returns a copy of the current profile, or nil.
func (m *SessionManager) Profile() *models.UserProfile {
	a, ok := m.authenticated()
	if !ok || a.Profile == nil {
		return nil
	}
	p := *a.Profile
	return &p
}

func (m *SessionManager) IsAuthenticated() bool {
	_, ok := m.authenticated()
	return ok
}

func (m *SessionManager) hasRole(r models.Role) bool {
	a, ok := m.authenticated()
	return ok && a.Profile != nil && a.Profile.Role == r
}

func (m *SessionManager) IsFarmer() bool { return m.hasRole(models.RoleFarmer) }

func (m *SessionManager) IsAdmin() bool { return m.hasRole(models.RoleAdmin) }

// Loading reports whether initialization or an operation is in flight.
func (m *SessionManager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch m.state.(type) {
	case Uninitialized, Resolving:
		return true
	}
	return m.st.pending > 0
}

// Err returns the message of the last failed operation, or "".
func (m *SessionManager) Err() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.err
}

// Close stops listening to session changes.
func (m *SessionManager) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}
