package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/farmmarket/internal/client/config"
	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/client/gateway/pgtable"
	"github.com/dmitrijs2005/farmmarket/internal/client/gateway/rest"
	"github.com/dmitrijs2005/farmmarket/internal/client/gateway/s3blob"
	"github.com/dmitrijs2005/farmmarket/internal/client/guard"
	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/client/repositories"
	"github.com/dmitrijs2005/farmmarket/internal/client/repositories/session"
	"github.com/dmitrijs2005/farmmarket/internal/client/services"
	"github.com/dmitrijs2005/farmmarket/internal/common"
	"github.com/dmitrijs2005/farmmarket/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// sessionService is the part of services.SessionManager the CLI drives.
type sessionService interface {
	Init(ctx context.Context)
	Login(ctx context.Context, c models.Credentials) (*models.User, error)
	Register(ctx context.Context, in models.RegisterInput) (*models.User, error)
	CompleteProfile(ctx context.Context, in models.ProfileInput) (*models.UserProfile, error)
	Logout(ctx context.Context) error
	Await(ctx context.Context, pred func(services.State) bool) (services.State, error)
	User() *models.User
	Profile() *models.UserProfile
	IsAuthenticated() bool
	IsFarmer() bool
	IsAdmin() bool
	Err() string
}

// productService is the part of services.ProductStore the CLI drives.
type productService interface {
	FetchAll(ctx context.Context, p models.FetchParams)
	FetchOne(ctx context.Context, id string)
	FetchMine(ctx context.Context, ownerID string) []models.Product
	Create(ctx context.Context, d models.ProductDraft) (*models.Product, error)
	Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	SetFilters(patch models.FilterPatch)
	ClearFilters()
	FilteredProducts() []models.Product
	Current() *models.Product
	Filter() models.Filter
	Err() string
}

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	session  sessionService
	products productService
	prices   services.MarketPriceService
	// storage is nil when no S3 endpoint is configured
	storage services.StorageService
	pinger  pinger
	router  *guard.Router

	reader *bufio.Reader
	out    io.Writer

	modeMu sync.RWMutex
	Mode   Mode

	closers []func()
}

// NewApp wires the gateways and services described by c.
//
// Tables go through the REST gateway unless a database DSN is configured.
// Without a device secret the session lives in memory only.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	a := &App{
		config: c,
		logger: logger,
		router: guard.DefaultRouter(),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	hc := &http.Client{Timeout: c.RequestTimeout}

	var store rest.SessionStore = &rest.MemoryStore{}
	if c.DeviceSecret != "" {
		db, err := repositories.InitDatabase(ctx, c.StatePath)
		if err != nil {
			logger.Error(ctx, "error initializing database", "path", c.StatePath, logging.Err(err))
			return nil, err
		}
		vault := session.NewVault(db, c.DeviceSecret)
		store = vault
		a.closers = append(a.closers, vault.Close, func() { _ = db.Close() })
	} else {
		logger.Warn(ctx, "no device secret configured, session will not be persisted")
	}

	auth := rest.NewAuth(c.GatewayURL, c.GatewayAnonKey, hc, store, logger)
	a.closers = append(a.closers, auth.Close)
	a.pinger = auth

	var tables gateway.TableGateway = rest.NewTables(c.GatewayURL, c.GatewayAnonKey, hc, auth)
	if c.DatabaseDSN != "" {
		db, err := pgtable.Open(ctx, c.DatabaseDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		tables = pgtable.New(db)
		a.closers = append(a.closers, func() { _ = db.Close() })
	}

	blobs, err := s3blob.New(ctx, s3blob.Options{
		Endpoint:  c.S3Endpoint,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		PublicURL: c.StoragePublicURL,
	})
	switch {
	case err == nil:
		a.storage = services.NewStorageService(blobs)
	case errors.Is(err, common.ErrNotConfigured):
		logger.Info(ctx, "file storage disabled", "reason", err)
	default:
		a.Close()
		return nil, err
	}

	sm := services.NewSessionManager(auth, tables, logger)
	a.closers = append(a.closers, sm.Close)
	a.session = sm
	a.products = services.NewProductStore(auth, tables, logger)
	a.prices = services.NewMarketPriceService(tables)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		a.logger.Info(ctx, "connectivity changed", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.modeMu.RLock()
	defer a.modeMu.RUnlock()
	return a.Mode
}

// Run restores the session, then serves the REPL until the user exits or
// stdin closes. No command is accepted before the session is resolved.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	a.session.Init(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	a.println("Welcome to farmmarket (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// StartOnlineStatusWatcher probes the gateway every interval and flips Mode.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.pinger.Ping(pctx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}
