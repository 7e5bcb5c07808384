package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront-checkout/internal/domain/pincode"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
	"github.com/xenking/storefront-checkout/internal/storage/rediscache"
)

const upsertChunk = 1000

type options struct {
	pattern       string
	databaseURL   string
	redisAddr     string
	redisPassword string
	minCouriers   int
	dryRun        bool
}

type pincodeWriter interface {
	Upsert(ctx context.Context, records ...pincode.ServiceablePincode) error
}

// cacheInvalidator drops cached lookups, including cached misses, so the API
// serves freshly ingested pincodes without waiting for the negative TTL.
type cacheInvalidator interface {
	InvalidatePincodes(ctx context.Context, codes ...string) error
}

func main() {
	var opts options

	flag.StringVar(&opts.pattern, "files", "data/*.csv.gz", "glob of gzipped courier coverage CSV files")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "Redis lookup cache to invalidate (or STORE_REDIS_ADDR env)")
	flag.StringVar(&opts.redisPassword, "redis-password", "", "Redis password (or STORE_REDIS_PASSWORD env)")
	flag.IntVar(&opts.minCouriers, "min-couriers", 1, "courier files that must cover a pincode")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "merge and report without writing")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.redisAddr == "" {
		opts.redisAddr = os.Getenv("STORE_REDIS_ADDR")
	}
	if opts.redisPassword == "" {
		opts.redisPassword = os.Getenv("STORE_REDIS_PASSWORD")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("pincode ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("pincode ingest completed successfully")
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(opts.pattern)
	if err != nil {
		return errors.Wrap(err, "glob files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %q", opts.pattern)
	}
	sort.Strings(files)

	records, err := mergeCoverage(ctx, files, max(opts.minCouriers, 1))
	if err != nil {
		return errors.Wrap(err, "merge coverage")
	}

	slog.Info("serviceable pincodes found", slog.Int("count", len(records)))

	if len(records) == 0 || opts.dryRun {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	var cache cacheInvalidator
	if opts.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.redisAddr, Password: opts.redisPassword})
		defer func() { _ = client.Close() }()
		cache = rediscache.New(client, rediscache.Options{})
		slog.Info("invalidating lookup cache", slog.String("redis", opts.redisAddr))
	}

	if err := writePincodes(ctx, postgres.NewPincodeRepository(pool), cache, records); err != nil {
		return errors.Wrap(err, "write pincodes to database")
	}

	return nil
}

// writePincodes upserts records in chunks. When cache is set, each written
// chunk is dropped from it; a failed invalidation is logged and the cached
// entries expire on their own.
func writePincodes(ctx context.Context, repo pincodeWriter, cache cacheInvalidator, records []pincode.ServiceablePincode) error {
	slog.Info("writing pincodes to database", slog.Int("count", len(records)))

	for start := 0; start < len(records); start += upsertChunk {
		end := min(start+upsertChunk, len(records))
		chunk := records[start:end]
		if err := repo.Upsert(ctx, chunk...); err != nil {
			return errors.Wrapf(err, "upsert pincodes %d-%d", start, end)
		}
		if cache != nil {
			codes := make([]string, len(chunk))
			for i, r := range chunk {
				codes[i] = r.Pincode
			}
			if err := cache.InvalidatePincodes(ctx, codes...); err != nil {
				slog.Warn("cache invalidation failed", slog.String("error", err.Error()))
			}
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(records)))
	}

	return nil
}
