package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/common"
	"github.com/dmitrijs2005/farmmarket/internal/logging"
)

// farmerEmbed attaches the owning farmer's contact to each product.
var farmerEmbed = gateway.Embed{
	Alias:      "farmer",
	Table:      common.TableUsers,
	ForeignKey: "farmer_id",
	Columns:    []string{"username", "phone", "location"},
}

var newestFirst = []gateway.Order{{Column: "created_at", Desc: true}}

// ProductStore caches the product collection, the product being viewed and
// the client-side filter.
//
// Every remote operation clears the error, runs, and on failure records a
// readable message. Reads swallow the error after recording it; writes also
// return it. The cache only changes after the backend confirms a write.
type ProductStore struct {
	auth   gateway.AuthGateway
	tables gateway.TableGateway
	logger logging.Logger
	newID  func() string

	mu       sync.RWMutex
	products []models.Product
	current  *models.Product
	filter   models.Filter
	st       status
	// ids of creates in flight
	creating map[string]struct{}
}

func NewProductStore(auth gateway.AuthGateway, tables gateway.TableGateway, logger logging.Logger) *ProductStore {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ProductStore{
		auth:     auth,
		tables:   tables,
		logger:   logger,
		newID:    uuid.NewString,
		creating: make(map[string]struct{}),
	}
}

func (s *ProductStore) begin() {
	s.mu.Lock()
	s.st.begin()
	s.mu.Unlock()
}

func (s *ProductStore) end() {
	s.mu.Lock()
	s.st.end()
	s.mu.Unlock()
}

func (s *ProductStore) fail(ctx context.Context, err error, fallback string) error {
	s.logger.Warn(ctx, fallback, logging.Err(err))
	s.mu.Lock()
	s.st.record(err, fallback)
	s.mu.Unlock()
	return err
}

func productQuery(p models.FetchParams) gateway.Query {
	q := gateway.Query{
		Table:  common.TableProducts,
		Embeds: []gateway.Embed{farmerEmbed},
		Order:  newestFirst,
	}
	if p.Category != "" {
		q = q.Where("category", p.Category)
	}
	if p.FarmerID != "" {
		q = q.Where("farmer_id", p.FarmerID)
	}
	return q
}

// FetchAll replaces the collection with the products matching p, newest
// first. On failure the collection is left as it was.
func (s *ProductStore) FetchAll(ctx context.Context, p models.FetchParams) {
	s.begin()
	defer s.end()

	rows, err := s.tables.Select(ctx, productQuery(p))
	if err != nil {
		s.fail(ctx, err, "Failed to fetch products")
		return
	}
	products, err := gateway.DecodeRows[models.Product](rows)
	if err != nil {
		s.fail(ctx, err, "Failed to fetch products")
		return
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
}

// FetchOne loads a single product into the current slot. When two calls
// overlap, the one answered last wins.
func (s *ProductStore) FetchOne(ctx context.Context, id string) {
	s.begin()
	defer s.end()

	q := productQuery(models.FetchParams{}).Where("id", id)
	q.Order, q.Limit = nil, 1

	rows, err := s.tables.Select(ctx, q)
	if err != nil {
		s.fail(ctx, err, "Failed to fetch product")
		return
	}
	if len(rows) == 0 {
		s.fail(ctx, gateway.NoRows(common.TableProducts, id), "Failed to fetch product")
		return
	}
	p, err := gateway.DecodeRow[models.Product](rows[0])
	if err != nil {
		s.fail(ctx, err, "Failed to fetch product")
		return
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
}

// FetchMine returns the products of ownerID. The shared collection is not
// touched; on failure the result is empty.
func (s *ProductStore) FetchMine(ctx context.Context, ownerID string) []models.Product {
	s.begin()
	defer s.end()

	q := gateway.Query{Table: common.TableProducts, Order: newestFirst}.Where("farmer_id", ownerID)

	rows, err := s.tables.Select(ctx, q)
	if err != nil {
		s.fail(ctx, err, "Failed to fetch your products")
		return []models.Product{}
	}
	products, err := gateway.DecodeRows[models.Product](rows)
	if err != nil {
		s.fail(ctx, err, "Failed to fetch your products")
		return []models.Product{}
	}
	return products
}

// productRow is a draft stamped with its owner.
type productRow struct {
	models.ProductDraft
	FarmerID string `json:"farmer_id"`
}

// Create inserts d owned by the current user and prepends the stored record.
// d.ID is the idempotency key of the call: it is generated when empty, and a
// second create with the same key while the first is in flight fails with
// common.ErrDuplicateCreate.
func (s *ProductStore) Create(ctx context.Context, d models.ProductDraft) (*models.Product, error) {
	s.begin()
	defer s.end()

	u, err := s.auth.GetCurrentUser(ctx)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to create product")
	}
	if u == nil {
		return nil, s.fail(ctx, common.ErrUnauthenticated, "Failed to create product")
	}

	if d.ID == "" {
		d.ID = s.newID()
	}
	if err := validateInput(d); err != nil {
		return nil, s.fail(ctx, err, "Failed to create product")
	}

	if !s.claim(d.ID) {
		err := fmt.Errorf("%w: %s", common.ErrDuplicateCreate, d.ID)
		return nil, s.fail(ctx, err, "Failed to create product")
	}
	defer s.release(d.ID)

	row, err := s.tables.Insert(ctx, common.TableProducts,
		productRow{ProductDraft: d, FarmerID: u.ID},
		gateway.Returning{Embeds: []gateway.Embed{farmerEmbed}})
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to create product")
	}
	p, err := gateway.DecodeRow[models.Product](row)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to create product")
	}

	s.mu.Lock()
	s.products = slices.Insert(s.products, 0, *p)
	s.mu.Unlock()

	s.logger.Info(ctx, "product created", "product_id", p.ID, "farmer_id", u.ID)
	return p, nil
}

func (s *ProductStore) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.creating[id]; busy {
		return false
	}
	s.creating[id] = struct{}{}
	return true
}

func (s *ProductStore) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creating, id)
}

// Update applies patch to product id and replaces the cached copies. A
// product missing from the cache is not added.
func (s *ProductStore) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	s.begin()
	defer s.end()

	if patch.Empty() {
		err := fmt.Errorf("%w: nothing to update", common.ErrValidation)
		return nil, s.fail(ctx, err, "Failed to update product")
	}
	if err := validateInput(patch); err != nil {
		return nil, s.fail(ctx, err, "Failed to update product")
	}

	row, err := s.tables.Update(ctx, common.TableProducts, id, patch,
		gateway.Returning{Embeds: []gateway.Embed{farmerEmbed}})
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to update product")
	}
	p, err := gateway.DecodeRow[models.Product](row)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to update product")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.products, func(x models.Product) bool { return x.ID == id }); i >= 0 {
		if p.Farmer == nil {
			p.Farmer = s.products[i].Farmer
		}
		s.products[i] = *p
	}
	if s.current != nil && s.current.ID == id {
		if p.Farmer == nil {
			p.Farmer = s.current.Farmer
		}
		cp := *p
		s.current = &cp
	}
	return p, nil
}

// Delete removes product id remotely, then from the cache.
func (s *ProductStore) Delete(ctx context.Context, id string) error {
	s.begin()
	defer s.end()

	if err := s.tables.Delete(ctx, common.TableProducts, id); err != nil {
		return s.fail(ctx, err, "Failed to delete product")
	}

	s.mu.Lock()
	s.products = slices.DeleteFunc(s.products, func(x models.Product) bool { return x.ID == id })
	s.mu.Unlock()
	return nil
}

// SetFilters merges patch into the filter.
func (s *ProductStore) SetFilters(patch models.FilterPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.Category != nil {
		s.filter.Category = *patch.Category
	}
}

func (s *ProductStore) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = models.Filter{}
}

// FilteredProducts is the collection restricted by the filter, in
// collection order.
func (s *ProductStore) FilteredProducts() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterProducts(s.products, s.filter)
}

func filterProducts(products []models.Product, f models.Filter) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if f.Category == "" || p.Category == f.Category {
			out = append(out, p)
		}
	}
	return out
}

func (s *ProductStore) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products)
}

// Current returns a copy of the product in the current slot, or nil.
func (s *ProductStore) Current() *models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

func (s *ProductStore) Filter() models.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *ProductStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.pending > 0
}

func (s *ProductStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.err
}
