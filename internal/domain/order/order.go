package order

import (
	"context"
	"time"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// PaymentMethod selects how the shopper pays.
type PaymentMethod string

const (
	PaymentPrepaid PaymentMethod = "prepaid"
	// PaymentCOD is cash on delivery; it requires COD support at the pincode.
	PaymentCOD PaymentMethod = "cod"
)

// Order represents a placed order with pricing, discount and delivery details.
type Order struct {
	ID             string
	UserID         string
	Items          []OrderItem
	Subtotal       money.Amount
	Discounts      money.Amount
	DeliveryCharge money.Amount
	Total          money.Amount
	CouponCode     string
	PromotionID    string
	Pincode        string
	PaymentMethod  PaymentMethod
	CreatedAt      time.Time
}

// OrderItem represents a single line item in an order. UnitPrice is filled
// from the catalog when the order is priced.
type OrderItem struct {
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice money.Amount `json:"unit_price"`
}

// Redemption records a promotion redeemed by an order. Repositories persist
// it atomically with the order and enforce PerUserLimit at that moment.
type Redemption struct {
	PromotionID  string
	UserID       string
	PerUserLimit int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order and, when redemption is non-nil, its
	// redemption record. It returns ErrUsageLimitReached without persisting
	// anything when the user already reached the promotion's limit.
	Create(ctx context.Context, order *Order, redemption *Redemption) error
}
