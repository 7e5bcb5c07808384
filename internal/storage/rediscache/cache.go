// Package rediscache puts a Redis read-through cache in front of promotion
// and pincode lookups.
//
// Misses are cached too, under a shorter TTL, so repeated guesses of unknown
// codes do not reach storage. Redemption counts are never cached. Redis
// failures degrade to a direct lookup.
package rediscache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// missMarker is stored for lookups that found nothing.
const missMarker = "-"

// Options tune cache behaviour.
type Options struct {
	// Prefix namespaces every key. Defaults to "checkout:".
	Prefix string
	// TTL of cached records. Defaults to five minutes.
	TTL time.Duration
	// NegativeTTL of cached misses. Defaults to one minute.
	NegativeTTL time.Duration
}

func (o *Options) setDefaults() {
	if o.Prefix == "" {
		o.Prefix = "checkout:"
	}
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.NegativeTTL <= 0 {
		o.NegativeTTL = time.Minute
	}
}

// Cache holds the Redis client and TTL policy shared by the cached
// repositories.
type Cache struct {
	client redis.Cmdable
	opts   Options
}

// New returns a Cache over client.
func New(client redis.Cmdable, opts Options) *Cache {
	opts.setDefaults()
	return &Cache{client: client, opts: opts}
}

// lookup returns the cached payload for key. hit is false when the key is
// absent or Redis failed; miss is true when a cached miss was found.
func (c *Cache) lookup(ctx context.Context, key string) (payload []byte, hit, miss bool) {
	b, err := c.client.Get(ctx, c.opts.Prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, false
	case err != nil:
		zctx.From(ctx).Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false, false
	case string(b) == missMarker:
		return nil, true, true
	default:
		return b, true, false
	}
}

func (c *Cache) store(ctx context.Context, key string, payload []byte) {
	c.set(ctx, key, payload, c.opts.TTL)
}

func (c *Cache) storeMiss(ctx context.Context, key string) {
	c.set(ctx, key, []byte(missMarker), c.opts.NegativeTTL)
}

func (c *Cache) set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, c.opts.Prefix+key, payload, ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) drop(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.opts.Prefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, "delete cache keys")
	}
	return nil
}
