package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/storage/seed"
)

func TestStore_Lookups(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Load(&seed.Data{
		Products: []product.Product{
			{ID: "p1", Price: money.FromMajor(10), CategoryID: "c1"},
			{ID: "p2", Price: money.FromMajor(20)},
		},
		Promotions: []promotion.Promotion{
			{ID: "promo-1", Code: "SAVE10", ApplicableProducts: []string{"p1"}, IsActive: true},
		},
		Pincodes: []pincode.ServiceablePincode{
			{Pincode: "560034", City: "Bengaluru", IsActive: true},
		},
	})

	products, err := s.GetByIDs(ctx, []string{"p2", "missing", "p1"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p2", products[0].ID)

	p, err := s.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "promo-1", p.ID)
	p.ApplicableProducts[0] = "mutated"

	again, err := s.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "p1", again.ApplicableProducts[0], "callers get a copy")

	_, err = s.FindByCode(ctx, "save10")
	require.ErrorIs(t, err, promotion.ErrNotFound, "codes are case-sensitive")

	pc, err := s.FindByPincode(ctx, "560034")
	require.NoError(t, err)
	assert.Equal(t, "Bengaluru", pc.City)

	_, err = s.FindByPincode(ctx, "000000")
	require.ErrorIs(t, err, pincode.ErrNotFound)

	codes, err := s.ListPincodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"560034"}, codes)
}

func TestStore_CreateCountsRedemptions(t *testing.T) {
	ctx := context.Background()
	s := New()
	red := &order.Redemption{PromotionID: "promo-1", UserID: "u1", PerUserLimit: 2}

	require.NoError(t, s.Create(ctx, &order.Order{ID: "o1"}, red))
	require.NoError(t, s.Create(ctx, &order.Order{ID: "o2"}, red))

	n, err := s.CountUserUsage(ctx, "u1", "promo-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = s.Create(ctx, &order.Order{ID: "o3"}, red)
	require.ErrorIs(t, err, order.ErrUsageLimitReached)
	_, ok := s.Order("o3")
	assert.False(t, ok, "rejected order is not stored")

	// Guests are not tracked.
	require.NoError(t, s.Create(ctx, &order.Order{ID: "o4"}, &order.Redemption{PromotionID: "promo-1", PerUserLimit: 1}))
	n, err = s.CountUserUsage(ctx, "", "promo-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_ConcurrentRedemptionsHonorLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	red := &order.Redemption{PromotionID: "promo-1", UserID: "u1", PerUserLimit: 1}

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Create(ctx, &order.Order{ID: string(rune('a' + i))}, red)
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.True(t, errors.Is(err, order.ErrUsageLimitReached))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}

func TestStore_FindByHash(t *testing.T) {
	s := New()
	s.PutClient(auth.Client{ID: "web", KeyHash: "abc"})

	c, err := s.FindByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "web", c.ID)

	_, err = s.FindByHash(context.Background(), "nope")
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}
