package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
	"github.com/xenking/storefront-checkout/internal/storage/rediscache"
	"github.com/xenking/storefront-checkout/internal/storage/seed"
)

func main() {
	var (
		databaseURL   string
		seedFile      string
		apiKey        string
		apiKeyPepper  string
		redisAddr     string
		redisPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/seed.yaml", "path to YAML seed file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.StringVar(&redisAddr, "redis-addr", "", "Redis lookup cache to invalidate (or STORE_REDIS_ADDR env)")
	flag.StringVar(&redisPassword, "redis-password", "", "Redis password (or STORE_REDIS_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}
	if redisAddr == "" {
		redisAddr = os.Getenv("STORE_REDIS_ADDR")
	}
	if redisPassword == "" {
		redisPassword = os.Getenv("STORE_REDIS_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var cache *rediscache.Cache
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: redisPassword})
		defer func() { _ = client.Close() }()
		cache = rediscache.New(client, rediscache.Options{})
	}

	if err := run(ctx, databaseURL, seedFile, apiKey, apiKeyPepper, cache); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedFile, apiKey, pepper string, cache *rediscache.Cache) error {
	slog.Info("reading seed file", slog.String("path", seedFile))

	data, err := seed.LoadFile(seedFile)
	if err != nil {
		return errors.Wrap(err, "load seed file")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := postgres.NewProductRepository(pool).Upsert(ctx, data.Products...); err != nil {
		return errors.Wrap(err, "seed products")
	}
	slog.Info("upserted products", slog.Int("count", len(data.Products)))

	if err := postgres.NewPromotionRepository(pool).Upsert(ctx, data.Promotions...); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	for _, p := range data.Promotions {
		slog.Info("upserted promotion", slog.String("code", p.Code), slog.Bool("active", p.IsActive))
	}

	if err := postgres.NewPincodeRepository(pool).Upsert(ctx, data.Pincodes...); err != nil {
		return errors.Wrap(err, "seed pincodes")
	}
	slog.Info("upserted pincodes", slog.Int("count", len(data.Pincodes)))

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if cache != nil {
		if err := invalidateCache(ctx, cache, data); err != nil {
			slog.Warn("cache invalidation failed", slog.String("error", err.Error()))
		}
	}

	return nil
}

// invalidateCache drops cached promotions and pincodes the seed just wrote,
// so a running API server stops serving stale records and misses.
func invalidateCache(ctx context.Context, cache *rediscache.Cache, data *seed.Data) error {
	codes := make([]string, len(data.Promotions))
	for i, p := range data.Promotions {
		codes[i] = p.Code
	}
	if err := cache.InvalidatePromotions(ctx, codes...); err != nil {
		return errors.Wrap(err, "promotions")
	}

	pincodes := make([]string, len(data.Pincodes))
	for i, p := range data.Pincodes {
		pincodes[i] = p.Pincode
	}
	if err := cache.InvalidatePincodes(ctx, pincodes...); err != nil {
		return errors.Wrap(err, "pincodes")
	}

	slog.Info("invalidated lookup cache",
		slog.Int("promotions", len(codes)),
		slog.Int("pincodes", len(pincodes)),
	)
	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	client := auth.Client{
		ID:      "default",
		KeyHash: auth.HashKey(apiKey, []byte(pepper)),
		Name:    "Default storefront key",
		Scopes:  []string{auth.ScopeCreateOrder},
	}
	if err := repo.Upsert(ctx, client); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", client.ID), slog.String("name", client.Name))
	return nil
}
