// Package handler serves the checkout HTTP API.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// DefaultUserHeader carries the shopper ID asserted by the storefront client.
const DefaultUserHeader = "X-User-ID"

// APIKeyHeader carries the client API key.
const APIKeyHeader = "api_key"

const defaultMaxBodyBytes = 64 << 10

// EligibilityChecker answers pincode serviceability.
type EligibilityChecker interface {
	Check(ctx context.Context, code string) (pincode.Result, error)
}

// PromotionPricer validates promotion codes against carts.
type PromotionPricer interface {
	ValidateAndPrice(ctx context.Context, code string, cart promotion.Cart, user *promotion.User) (*promotion.Pricing, error)
}

// Orders prices carts and places orders.
type Orders interface {
	Quote(ctx context.Context, items []order.OrderItem) (*order.Quote, error)
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

// Authenticator resolves API keys to clients.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.Client, error)
}

// Config holds non-dependency handler settings.
type Config struct {
	// UserHeader names the header with the shopper ID. Defaults to
	// DefaultUserHeader.
	UserHeader string
	// MaxBodyBytes limits request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64
}

// Handler implements the /api routes.
type Handler struct {
	pincodes EligibilityChecker
	promos   PromotionPricer
	orders   Orders
	auth     Authenticator
	metrics  *metrics

	userHeader   string
	maxBodyBytes int64
}

// New constructs a Handler. Counters are registered on meter.
func New(
	cfg Config,
	pincodes EligibilityChecker,
	promos PromotionPricer,
	orders Orders,
	authenticator Authenticator,
	meter metric.Meter,
) (*Handler, error) {
	m, err := newMetrics(meter)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}
	if cfg.UserHeader == "" {
		cfg.UserHeader = DefaultUserHeader
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		pincodes:     pincodes,
		promos:       promos,
		orders:       orders,
		auth:         authenticator,
		metrics:      m,
		userHeader:   cfg.UserHeader,
		maxBodyBytes: cfg.MaxBodyBytes,
	}, nil
}

// Routes mounts the API under /api. Every route requires an API key.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(httpmiddleware.NameSpan(), h.authenticated)

		r.Get("/pincodes/check", h.CheckPincode)
		r.Post("/promotions/validate", h.ValidatePromotion)
		r.With(requireScope(auth.ScopeCreateOrder)).Post("/orders", h.PlaceOrder)
	})
}
