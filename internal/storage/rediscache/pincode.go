package rediscache

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/pincode"
)

var _ pincode.Repository = (*PincodeRepository)(nil)

// warmConcurrency bounds parallel storage lookups during Warm.
const warmConcurrency = 8

// PincodeRepository caches pincode lookups.
type PincodeRepository struct {
	next  pincode.Repository
	cache *Cache
}

// Pincodes wraps next with the cache.
func (c *Cache) Pincodes(next pincode.Repository) *PincodeRepository {
	return &PincodeRepository{next: next, cache: c}
}

func pincodeKey(code string) string { return "pincode:" + code }

// FindByPincode serves the record from Redis, falling back to next.
func (r *PincodeRepository) FindByPincode(ctx context.Context, code string) (*pincode.ServiceablePincode, error) {
	key := pincodeKey(code)
	if payload, hit, miss := r.cache.lookup(ctx, key); hit {
		if miss {
			return nil, pincode.ErrNotFound
		}
		p, err := decodePincode(payload)
		if err == nil {
			return p, nil
		}
		zctx.From(ctx).Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
	}

	p, err := r.next.FindByPincode(ctx, code)
	switch {
	case errors.Is(err, pincode.ErrNotFound):
		r.cache.storeMiss(ctx, key)
		return nil, err
	case err != nil:
		return nil, err
	}
	r.cache.store(ctx, key, encodePincode(p))
	return p, nil
}

// Warm loads the given pincodes from storage into the cache.
func (r *PincodeRepository) Warm(ctx context.Context, codes []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, code := range codes {
		g.Go(func() error {
			p, err := r.next.FindByPincode(ctx, code)
			if err != nil {
				if errors.Is(err, pincode.ErrNotFound) {
					return nil
				}
				return errors.Wrapf(err, "load pincode %q", code)
			}
			r.cache.store(ctx, pincodeKey(code), encodePincode(p))
			return nil
		})
	}
	return g.Wait()
}

// InvalidatePincodes drops cached records and misses for the given pincodes.
func (c *Cache) InvalidatePincodes(ctx context.Context, codes ...string) error {
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = pincodeKey(code)
	}
	return c.drop(ctx, keys...)
}
