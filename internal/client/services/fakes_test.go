package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/client/models"
)

// ---- fake auth gateway ----

type fakeAuth struct {
	mu sync.Mutex

	session       *models.Session
	getSessionErr error
	// onGetSession runs inside GetSession before it returns
	onGetSession func()

	signInErr    error
	emitOnSignIn bool
	signUpUser   *models.User
	signUpErr    error
	signOutErr   error
	currentUser  *models.User
	currentErr   error

	handlers       []func(gateway.SessionEvent)
	subscribeCalls int

	signInCalls  int
	signUpCalls  int
	signOutCalls int
}

func (f *fakeAuth) GetSession(ctx context.Context) (*models.Session, error) {
	f.mu.Lock()
	s, err, hook := f.session, f.getSessionErr, f.onGetSession
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s, err
}

func (f *fakeAuth) OnSessionChange(h func(gateway.SessionEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls++
	f.handlers = append(f.handlers, h)
	idx := len(f.handlers) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[idx] = nil
	}
}

// emit delivers ev synchronously to every handler.
func (f *fakeAuth) emit(ev gateway.SessionEvent) {
	f.mu.Lock()
	hs := append([]func(gateway.SessionEvent){}, f.handlers...)
	f.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			h(ev)
		}
	}
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	f.signInCalls++
	err, emit := f.signInErr, f.emitOnSignIn
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s := testSession("u1", email)
	if emit {
		f.emit(gateway.SessionEvent{Kind: gateway.EventSignedIn, Session: s})
	}
	return &s.User, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls++
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	if f.signUpUser != nil {
		return f.signUpUser, nil
	}
	return &models.User{ID: "u-new", Email: email}, nil
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	err := f.signOutErr
	f.mu.Unlock()
	return err
}

func (f *fakeAuth) GetCurrentUser(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentUser, f.currentErr
}

func testSession(userID, email string) *models.Session {
	return &models.Session{
		AccessToken:  "at-" + userID,
		RefreshToken: "rt-" + userID,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         models.User{ID: userID, Email: email},
	}
}

// ---- in-memory table gateway ----

type call struct {
	Op    string
	Table string
	ID    string
	Query gateway.Query
}

// memTables is an in-memory TableGateway with PostgREST-like semantics:
// equality filters, ordering, limits and embeds resolved by foreign key.
type memTables struct {
	mu    sync.Mutex
	rows  map[string][]map[string]any
	tick  int
	calls []call
	// fail maps "op table" (e.g. "insert products") to the error to return
	fail map[string]error
	// block, when set, is received from before an insert completes
	block chan struct{}
	// afterSelect, when set, runs once a select has read its rows and
	// before they are returned
	afterSelect func(q gateway.Query)
}

func newMemTables() *memTables {
	return &memTables{rows: map[string][]map[string]any{}, fail: map[string]error{}}
}

var memEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func (m *memTables) seed(table string, rows ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.stamp(r)
		m.rows[table] = append(m.rows[table], r)
	}
}

func (m *memTables) stamp(r map[string]any) {
	m.tick++
	if _, ok := r["id"]; !ok {
		r["id"] = uuid.NewString()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = memEpoch.Add(time.Duration(m.tick) * time.Second).Format(time.RFC3339)
	}
}

func (m *memTables) record(c call) error {
	m.calls = append(m.calls, c)
	if err, ok := m.fail[c.Op+" "+c.Table]; ok {
		return err
	}
	return nil
}

func (m *memTables) callsOf(op string) []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []call
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *memTables) setFail(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, key)
		return
	}
	m.fail[key] = err
}

func toMap(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&out); err != nil {
		panic(err)
	}
	return out
}

func (m *memTables) find(table, id string) int {
	for i, r := range m.rows[table] {
		if fmt.Sprint(r["id"]) == id {
			return i
		}
	}
	return -1
}

func (m *memTables) shape(r map[string]any, embeds []gateway.Embed) gateway.Row {
	out := make(map[string]any, len(r)+len(embeds))
	for k, v := range r {
		out[k] = v
	}
	for _, e := range embeds {
		var rel map[string]any
		if i := m.find(e.Table, fmt.Sprint(r[e.ForeignKey])); i >= 0 {
			src := m.rows[e.Table][i]
			rel = map[string]any{}
			for _, c := range e.Columns {
				rel[c] = src[c]
			}
		}
		out[e.Alias] = rel
	}
	b, err := json.Marshal(out)
	if err != nil {
		panic(err)
	}
	return b
}

func (m *memTables) Select(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	rows, err := m.query(q)

	m.mu.Lock()
	hook := m.afterSelect
	m.mu.Unlock()
	if hook != nil {
		hook(q)
	}
	return rows, err
}

func (m *memTables) query(q gateway.Query) ([]gateway.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(call{Op: "select", Table: q.Table, Query: q}); err != nil {
		return nil, err
	}

	var matched []map[string]any
	for _, r := range m.rows[q.Table] {
		ok := true
		for _, f := range q.Filters {
			if fmt.Sprint(r[f.Column]) != f.Value {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, r)
		}
	}

	for i := len(q.Order) - 1; i >= 0; i-- {
		o := q.Order[i]
		sort.SliceStable(matched, func(a, b int) bool {
			x, y := fmt.Sprint(matched[a][o.Column]), fmt.Sprint(matched[b][o.Column])
			if o.Desc {
				return x > y
			}
			return x < y
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]gateway.Row, 0, len(matched))
	for _, r := range matched {
		out = append(out, m.shape(r, q.Embeds))
	}
	return out, nil
}

func (m *memTables) Insert(ctx context.Context, table string, row any, ret gateway.Returning) (gateway.Row, error) {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(call{Op: "insert", Table: table}); err != nil {
		return nil, err
	}

	r := toMap(row)
	if id, ok := r["id"]; ok && m.find(table, fmt.Sprint(id)) >= 0 {
		return nil, &gateway.RemoteError{Status: 409, Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	m.stamp(r)
	m.rows[table] = append(m.rows[table], r)
	return m.shape(r, ret.Embeds), nil
}

func (m *memTables) Update(ctx context.Context, table, id string, patch any, ret gateway.Returning) (gateway.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(call{Op: "update", Table: table, ID: id}); err != nil {
		return nil, err
	}

	i := m.find(table, id)
	if i < 0 {
		return nil, gateway.NoRows(table, id)
	}
	for k, v := range toMap(patch) {
		m.rows[table][i][k] = v
	}
	return m.shape(m.rows[table][i], ret.Embeds), nil
}

func (m *memTables) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(call{Op: "delete", Table: table, ID: id}); err != nil {
		return err
	}

	if i := m.find(table, id); i >= 0 {
		m.rows[table] = append(m.rows[table][:i], m.rows[table][i+1:]...)
	}
	return nil
}

// ---- fake blob gateway ----

type upload struct {
	Bucket      string
	Path        string
	ContentType string
	Body        string
	Size        int64
}

type fakeBlobs struct {
	uploads   []upload
	removed   map[string][]string
	uploadErr error
	removeErr error
}

func (f *fakeBlobs) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, size int64) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	b, _ := io.ReadAll(body)
	f.uploads = append(f.uploads, upload{Bucket: bucket, Path: path, ContentType: contentType, Body: string(b), Size: size})
	return nil
}

func (f *fakeBlobs) PublicURL(bucket, path string) string {
	return "https://cdn.test/" + bucket + "/" + path
}

func (f *fakeBlobs) Remove(ctx context.Context, bucket string, paths []string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	if f.removed == nil {
		f.removed = map[string][]string{}
	}
	f.removed[bucket] = append(f.removed[bucket], paths...)
	return nil
}
