package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/farmmarket/internal/client/config"
	"github.com/dmitrijs2005/farmmarket/internal/client/guard"
	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/client/services"
	"github.com/dmitrijs2005/farmmarket/internal/logging"
)

type fakeSession struct {
	user    *models.User
	profile *models.UserProfile

	loginErr    error
	registerErr error
	profileErr  error
	logoutErr   error
	// noSession makes Register succeed without signing in
	noSession bool

	lastCreds    models.Credentials
	lastRegister models.RegisterInput
	lastProfile  models.ProfileInput
	inits        int
	logouts      int
}

func (f *fakeSession) Init(ctx context.Context) { f.inits++ }

func (f *fakeSession) Login(ctx context.Context, c models.Credentials) (*models.User, error) {
	f.lastCreds = c
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.user = &models.User{ID: "u1", Email: c.Email}
	return f.user, nil
}

func (f *fakeSession) Register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	f.lastRegister = in
	u := &models.User{ID: "u-new", Email: in.Email}
	if f.registerErr != nil {
		return u, f.registerErr
	}
	if !f.noSession {
		f.user = u
		f.profile = &models.UserProfile{ID: u.ID, Username: in.Username, Role: in.Role}
	}
	return u, nil
}

func (f *fakeSession) CompleteProfile(ctx context.Context, in models.ProfileInput) (*models.UserProfile, error) {
	f.lastProfile = in
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	f.profile = &models.UserProfile{ID: f.user.ID, Username: in.Username, Role: in.Role}
	return f.profile, nil
}

func (f *fakeSession) Logout(ctx context.Context) error {
	f.logouts++
	f.user, f.profile = nil, nil
	return f.logoutErr
}

// Await evaluates pred once; a false result behaves like a timeout.
func (f *fakeSession) Await(ctx context.Context, pred func(services.State) bool) (services.State, error) {
	var s services.State = services.Anonymous{}
	if f.user != nil {
		s = services.Authenticated{Session: models.Session{User: *f.user}, Profile: f.profile}
	}
	if pred(s) {
		return s, nil
	}
	return s, context.DeadlineExceeded
}

func (f *fakeSession) User() *models.User           { return f.user }
func (f *fakeSession) Profile() *models.UserProfile { return f.profile }
func (f *fakeSession) IsAuthenticated() bool        { return f.user != nil }
func (f *fakeSession) IsFarmer() bool               { return f.hasRole(models.RoleFarmer) }
func (f *fakeSession) IsAdmin() bool                { return f.hasRole(models.RoleAdmin) }
func (f *fakeSession) Err() string                  { return "" }
func (f *fakeSession) hasRole(r models.Role) bool   { return f.profile != nil && f.profile.Role == r }

type fakeProducts struct {
	products []models.Product
	current  *models.Product
	filter   models.Filter
	err      string
	mine     map[string][]models.Product

	fetches   []models.FetchParams
	fetchedID []string
	created   []models.ProductDraft
	createErr error
	patches   map[string][]models.ProductPatch
	updateErr error
	deleted   []string
	deleteErr error
}

func (f *fakeProducts) FetchAll(ctx context.Context, p models.FetchParams) {
	f.fetches = append(f.fetches, p)
}

func (f *fakeProducts) FetchOne(ctx context.Context, id string) {
	f.fetchedID = append(f.fetchedID, id)
	for i := range f.products {
		if f.products[i].ID == id {
			p := f.products[i]
			f.current = &p
		}
	}
}

func (f *fakeProducts) FetchMine(ctx context.Context, ownerID string) []models.Product {
	return f.mine[ownerID]
}

func (f *fakeProducts) Create(ctx context.Context, d models.ProductDraft) (*models.Product, error) {
	f.created = append(f.created, d)
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := models.Product{ID: "new-1", Name: d.Name, Category: d.Category, PricePerKg: d.PricePerKg, QuantityAvailable: d.QuantityAvailable}
	f.products = append([]models.Product{p}, f.products...)
	return &p, nil
}

func (f *fakeProducts) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	if f.patches == nil {
		f.patches = map[string][]models.ProductPatch{}
	}
	f.patches[id] = append(f.patches[id], patch)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &models.Product{ID: id}, nil
}

func (f *fakeProducts) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeProducts) SetFilters(patch models.FilterPatch) {
	if patch.Category != nil {
		f.filter.Category = *patch.Category
	}
}

func (f *fakeProducts) ClearFilters() { f.filter = models.Filter{} }

func (f *fakeProducts) FilteredProducts() []models.Product {
	var out []models.Product
	for _, p := range f.products {
		if f.filter.Category == "" || p.Category == f.filter.Category {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeProducts) Current() *models.Product { return f.current }
func (f *fakeProducts) Filter() models.Filter    { return f.filter }
func (f *fakeProducts) Err() string              { return f.err }

type fakePrices struct {
	prices   []models.MarketPrice
	err      error
	gotCrop  string
	gotLimit int
}

func (f *fakePrices) Latest(ctx context.Context, crop string, limit int) ([]models.MarketPrice, error) {
	f.gotCrop, f.gotLimit = crop, limit
	return f.prices, f.err
}

type storedFile struct {
	Owner, Name, ContentType, Body string
	Size                           int64
}

type fakeStorage struct {
	products []storedFile
	avatars  []storedFile
	err      error
}

func (f *fakeStorage) store(up models.Upload, owner string) storedFile {
	b, _ := io.ReadAll(up.Body)
	return storedFile{Owner: owner, Name: up.Name, ContentType: up.ContentType, Body: string(b), Size: up.Size}
}

func (f *fakeStorage) UploadProductImage(ctx context.Context, up models.Upload, productID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.products = append(f.products, f.store(up, productID))
	return "https://cdn.test/product-images/" + productID + "/" + up.Name, nil
}

func (f *fakeStorage) UploadUserAvatar(ctx context.Context, up models.Upload, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.avatars = append(f.avatars, f.store(up, userID))
	return "https://cdn.test/avatars/" + userID + "/" + up.Name, nil
}

func (f *fakeStorage) DeleteFile(ctx context.Context, bucket, path string) error { return f.err }

type fakePinger struct {
	err   atomic.Value
	calls atomic.Int32
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if err, ok := f.err.Load().(error); ok {
		return err
	}
	return nil
}

type testApp struct {
	*App
	buf      *bytes.Buffer
	session  *fakeSession
	products *fakeProducts
	prices   *fakePrices
	storage  *fakeStorage
	pinger   *fakePinger
}

// newTestApp builds an App whose prompts read input.
func newTestApp(input string) *testApp {
	ta := &testApp{
		buf:      &bytes.Buffer{},
		session:  &fakeSession{},
		products: &fakeProducts{},
		prices:   &fakePrices{},
		storage:  &fakeStorage{},
		pinger:   &fakePinger{},
	}
	ta.App = &App{
		config:   &config.Config{},
		logger:   logging.Discard(),
		session:  ta.session,
		products: ta.products,
		prices:   ta.prices,
		storage:  ta.storage,
		pinger:   ta.pinger,
		router:   guard.DefaultRouter(),
		reader:   bufio.NewReader(strings.NewReader(input)),
		out:      ta.buf,
	}
	return ta
}

func (ta *testApp) asFarmer() *testApp {
	ta.session.user = &models.User{ID: "u1", Email: "farmer@example.org"}
	ta.session.profile = &models.UserProfile{ID: "u1", Username: "wanjiku", Role: models.RoleFarmer}
	return ta
}

func (ta *testApp) asBuyer() *testApp {
	ta.session.user = &models.User{ID: "u2", Email: "buyer@example.org"}
	ta.session.profile = &models.UserProfile{ID: "u2", Username: "otieno", Role: models.RoleBuyer}
	return ta
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}
