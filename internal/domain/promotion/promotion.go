// Package promotion validates promotion codes against a cart and prices the
// resulting discount.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// ErrNotFound is returned by a Repository when no promotion has the code.
var ErrNotFound = errors.New("promotion not found")

// Type tags the kind of promotion. Pricing is driven by IsPercentage; the
// type is carried through to callers for display.
type Type string

const (
	TypeFlat       Type = "flat"
	TypePercentage Type = "percentage"
	TypeBuyXGetY   Type = "buy_x_get_y"
)

// Scope is the applicability mode resolved for a promotion. Exactly one is
// active per evaluation.
type Scope string

const (
	// ScopeCart applies the discount against the whole cart subtotal.
	ScopeCart Scope = "cart"
	// ScopeProducts applies only to line items whose product is listed.
	ScopeProducts Scope = "products"
	// ScopeCategories applies only to line items in a listed category.
	ScopeCategories Scope = "categories"
)

// Promotion is a named discount rule redeemed by code.
type Promotion struct {
	ID          string
	Code        string
	Name        string
	Description string
	Type        Type

	// IsPercentage selects Percent (0-100) over the flat Amount.
	IsPercentage bool
	Percent      decimal.Decimal
	Amount       money.Amount

	MinOrderValue money.Amount
	// MaxDiscount caps the computed discount. Zero means uncapped.
	MaxDiscount money.Amount

	ApplicableProducts   []string
	ApplicableCategories []string

	// StartDate and EndDate bound the validity window inclusively.
	// A nil bound is open.
	StartDate *time.Time
	EndDate   *time.Time

	// PerUserLimit is the maximum redemptions per user. Zero means unlimited.
	PerUserLimit int
	IsActive     bool
}

// Scope returns the applicability mode. Products win over categories, and
// categories over the whole cart; modes are never combined.
func (p *Promotion) Scope() Scope {
	switch {
	case len(p.ApplicableProducts) > 0:
		return ScopeProducts
	case len(p.ApplicableCategories) > 0:
		return ScopeCategories
	default:
		return ScopeCart
	}
}

// ActiveAt reports whether t lies within [StartDate, EndDate].
func (p *Promotion) ActiveAt(t time.Time) bool {
	if p.StartDate != nil && t.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && t.After(*p.EndDate) {
		return false
	}
	return true
}

// LineItem is one cart line as seen by the engine.
type LineItem struct {
	ProductID string
	// CategoryID may be empty; the engine resolves it through the product
	// catalog when a category-scoped promotion needs it.
	CategoryID string
	UnitPrice  money.Amount
	Quantity   int
}

// Total returns UnitPrice * Quantity.
func (i LineItem) Total() money.Amount {
	return i.UnitPrice.Mul(i.Quantity)
}

// Cart is a snapshot of the cart being priced.
type Cart struct {
	Subtotal money.Amount
	Items    []LineItem
}

// User identifies the authenticated shopper for per-user limits.
type User struct {
	ID string
}

// Pricing is the outcome of a successful validation.
type Pricing struct {
	PromotionID string
	Code        string
	Name        string
	Type        Type
	Scope       Scope
	Discount    money.Amount
	// ApplicableSubtotal is the amount the discount was computed against.
	ApplicableSubtotal money.Amount
	// MatchedItemIDs lists the product IDs the promotion applied to, in cart
	// order without duplicates.
	MatchedItemIDs []string
	PerUserLimit   int
}

// Repository looks up promotions by code. Codes are case-sensitive as stored.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Promotion, error)
}

// UsageCounter reports how many times a user has redeemed a promotion. The
// counter is owned by order placement; the engine only reads it.
type UsageCounter interface {
	CountUserUsage(ctx context.Context, userID, promotionID string) (int, error)
}
