// Package memory implements the checkout repositories in process memory.
// It backs local development and tests; contents are lost on restart.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/storage/seed"
)

var (
	_ product.Repository     = (*Store)(nil)
	_ promotion.Repository   = (*Store)(nil)
	_ promotion.UsageCounter = (*Store)(nil)
	_ pincode.Repository     = (*Store)(nil)
	_ pincode.Lister         = (*Store)(nil)
	_ order.Repository       = (*Store)(nil)
	_ auth.Repository        = (*Store)(nil)
)

type usageKey struct {
	userID      string
	promotionID string
}

// Store holds every checkout table behind a single RWMutex.
type Store struct {
	mu         sync.RWMutex
	products   map[string]product.Product
	promotions map[string]promotion.Promotion // by code
	pincodes   map[string]pincode.ServiceablePincode
	orders     map[string]order.Order
	usage      map[usageKey]int
	clients    map[string]auth.Client // by key hash
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		products:   make(map[string]product.Product),
		promotions: make(map[string]promotion.Promotion),
		pincodes:   make(map[string]pincode.ServiceablePincode),
		orders:     make(map[string]order.Order),
		usage:      make(map[usageKey]int),
		clients:    make(map[string]auth.Client),
	}
}

// Load adds every record of a seed file, replacing existing ones.
func (s *Store) Load(data *seed.Data) {
	s.PutProducts(data.Products...)
	s.PutPromotions(data.Promotions...)
	s.PutPincodes(data.Pincodes...)
}

// PutProducts inserts or replaces products by ID.
func (s *Store) PutProducts(products ...product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
}

// PutPromotions inserts or replaces promotions by code.
func (s *Store) PutPromotions(promos ...promotion.Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range promos {
		s.promotions[p.Code] = p
	}
}

// PutPincodes inserts or replaces pincode records.
func (s *Store) PutPincodes(records ...pincode.ServiceablePincode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range records {
		s.pincodes[p.Pincode] = p
	}
}

// PutClient registers an API client under its key hash.
func (s *Store) PutClient(c auth.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.KeyHash] = c
}

// GetByIDs returns products matching any of the given IDs.
func (s *Store) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindByCode returns the promotion with exactly this code.
func (s *Store) FindByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.promotions[code]
	if !ok {
		return nil, promotion.ErrNotFound
	}
	p.ApplicableProducts = slices.Clone(p.ApplicableProducts)
	p.ApplicableCategories = slices.Clone(p.ApplicableCategories)
	return &p, nil
}

// CountUserUsage returns how many orders of userID redeemed promotionID.
func (s *Store) CountUserUsage(_ context.Context, userID, promotionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[usageKey{userID: userID, promotionID: promotionID}], nil
}

// FindByPincode returns the record for the exact pincode.
func (s *Store) FindByPincode(_ context.Context, code string) (*pincode.ServiceablePincode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pincodes[code]
	if !ok {
		return nil, pincode.ErrNotFound
	}
	return &p, nil
}

// ListPincodes returns every stored pincode.
func (s *Store) ListPincodes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.pincodes))
	for code := range s.pincodes {
		codes = append(codes, code)
	}
	return codes, nil
}

// Create stores the order and counts the redemption against the user. The
// limit check and the increment happen under one lock.
func (s *Store) Create(_ context.Context, o *order.Order, red *order.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var key usageKey
	tracked := red != nil && red.UserID != ""
	if tracked {
		key = usageKey{userID: red.UserID, promotionID: red.PromotionID}
		if red.PerUserLimit > 0 && s.usage[key] >= red.PerUserLimit {
			return order.ErrUsageLimitReached
		}
	}

	stored := *o
	stored.Items = slices.Clone(o.Items)
	s.orders[o.ID] = stored
	if tracked {
		s.usage[key]++
	}
	return nil
}

// Order returns a stored order by ID.
func (s *Store) Order(id string) (order.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// FindByHash returns the client registered under the key hash.
func (s *Store) FindByHash(_ context.Context, hash string) (*auth.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return &c, nil
}
