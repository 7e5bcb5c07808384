package rediscache

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository caches promotion lookups by code.
type PromotionRepository struct {
	next  promotion.Repository
	cache *Cache
}

// Promotions wraps next with the cache.
func (c *Cache) Promotions(next promotion.Repository) *PromotionRepository {
	return &PromotionRepository{next: next, cache: c}
}

func promotionKey(code string) string { return "promo:" + code }

// FindByCode serves the promotion from Redis, falling back to next.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	key := promotionKey(code)
	if payload, hit, miss := r.cache.lookup(ctx, key); hit {
		if miss {
			return nil, promotion.ErrNotFound
		}
		p, err := decodePromotion(payload)
		if err == nil {
			return p, nil
		}
		zctx.From(ctx).Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
	}

	p, err := r.next.FindByCode(ctx, code)
	switch {
	case errors.Is(err, promotion.ErrNotFound):
		r.cache.storeMiss(ctx, key)
		return nil, err
	case err != nil:
		return nil, err
	}
	r.cache.store(ctx, key, encodePromotion(p))
	return p, nil
}

// InvalidatePromotions drops cached records and misses for the given codes.
// Writers call it after changing promotions in storage.
func (c *Cache) InvalidatePromotions(ctx context.Context, codes ...string) error {
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = promotionKey(code)
	}
	return c.drop(ctx, keys...)
}
