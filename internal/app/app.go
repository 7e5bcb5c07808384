package app

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/db"
	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/handler"
	"github.com/xenking/storefront-checkout/internal/storage/memory"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
	"github.com/xenking/storefront-checkout/internal/storage/rediscache"
	"github.com/xenking/storefront-checkout/internal/storage/seed"
	"github.com/xenking/storefront-checkout/pkg/health"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

const serviceName = "storefront-checkout"

// backend is the set of repositories behind the domain services.
type backend struct {
	products product.Repository
	promos   promotion.Repository
	usage    promotion.UsageCounter
	pincodes pincode.Repository
	lister   pincode.Lister
	orders   order.Repository
	keys     auth.Repository
	close    func()
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage))

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second), health.FailureThreshold(3))

	b, err := openBackend(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer b.close()

	promos := b.promos
	pincodes := b.pincodes

	// Redis lookup cache.
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}, health.FailureThreshold(2))

		cache := rediscache.New(client, rediscache.Options{
			TTL:         cfg.Redis.TTL,
			NegativeTTL: cfg.Redis.NegativeTTL,
		})
		promos = cache.Promotions(promos)
		cached := cache.Pincodes(pincodes)
		if cfg.Redis.Warm {
			if err := warmPincodes(ctx, b.lister, cached); err != nil {
				lg.Warn("Pincode cache warmup failed", zap.Error(err))
			}
		}
		pincodes = cached
		lg.Info("Lookup cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	// Bloom filter in front of pincode lookups.
	if cfg.PincodeFilter.Enabled {
		filtered := pincode.NewFilteredRepository(pincodes, b.lister, cfg.PincodeFilter.FPR)
		if err := filtered.Refresh(ctx); err != nil {
			return errors.Wrap(err, "build pincode filter")
		}
		go filtered.Run(ctx, cfg.PincodeFilter.RefreshInterval)
		pincodes = filtered
	}

	// Domain services.
	engine := promotion.NewEngine(promos, b.usage, b.products)
	checker := pincode.NewChecker(pincodes)
	orderService := order.NewService(b.products, engine, checker, b.orders)
	authenticator := auth.NewAuthenticator(b.keys, []byte(cfg.APIKeyPepper))

	h, err := handler.New(
		handler.Config{UserHeader: cfg.UserHeader},
		checker,
		engine,
		orderService,
		authenticator,
		m.MeterProvider().Meter(serviceName),
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Rate limiters: one per client IP for everything, a tighter one per API
	// key and IP for promotion validation.
	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})
	validateLimiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.ValidateMax,
		Window: cfg.RateLimit.Window,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get(handler.APIKeyHeader) + "|" + httpmiddleware.ClientIP(r)
		},
		Match: httpmiddleware.PathPrefix("/api/promotions/validate"),
	})
	go limiter.Run(ctx)
	go validateLimiter.Run(ctx)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, cfg.UserHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			limiter.Middleware(),
			validateLimiter.Middleware(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config, healthSvc *health.Health) (*backend, error) {
	switch cfg.Storage {
	case StorageMemory:
		return openMemory(lg, cfg)
	default:
		return openPostgres(ctx, cfg, healthSvc)
	}
}

func openPostgres(ctx context.Context, cfg *Config, healthSvc *health.Health) (*backend, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	promos := postgres.NewPromotionRepository(pool)
	pincodes := postgres.NewPincodeRepository(pool)
	return &backend{
		products: postgres.NewProductRepository(pool),
		promos:   promos,
		usage:    promos,
		pincodes: pincodes,
		lister:   pincodes,
		orders:   postgres.NewOrderRepository(pool),
		keys:     postgres.NewAPIKeyRepository(pool),
		close:    pool.Close,
	}, nil
}

func openMemory(lg *zap.Logger, cfg *Config) (*backend, error) {
	var (
		data   *seed.Data
		source = cfg.SeedFile
		err    error
	)
	if source != "" {
		data, err = seed.LoadFile(source)
	} else {
		source = "bundled"
		data, err = seed.Load(bytes.NewReader(db.Seed))
	}
	if err != nil {
		return nil, errors.Wrap(err, "load seed")
	}

	store := memory.New()
	store.Load(data)
	lg.Info("Loaded seed data",
		zap.String("source", source),
		zap.Int("products", len(data.Products)),
		zap.Int("promotions", len(data.Promotions)),
		zap.Int("pincodes", len(data.Pincodes)),
	)
	if cfg.BootstrapAPIKey != "" {
		store.PutClient(auth.Client{
			ID:      "bootstrap",
			KeyHash: auth.HashKey(cfg.BootstrapAPIKey, []byte(cfg.APIKeyPepper)),
			Name:    "Bootstrap key",
			Scopes:  []string{auth.ScopeCreateOrder},
		})
	}
	return &backend{
		products: store,
		promos:   store,
		usage:    store,
		pincodes: store,
		lister:   store,
		orders:   store,
		keys:     store,
		close:    func() {},
	}, nil
}

func warmPincodes(ctx context.Context, lister pincode.Lister, cache *rediscache.PincodeRepository) error {
	codes, err := lister.ListPincodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list pincodes")
	}
	if err := cache.Warm(ctx, codes); err != nil {
		return errors.Wrap(err, "warm")
	}
	zctx.From(ctx).Info("Pincode cache warmed", zap.Int("count", len(codes)))
	return nil
}
