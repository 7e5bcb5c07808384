package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/product"
)

// Engine validates promotion codes against carts. It keeps no state of its
// own: every call reads the collaborators it was built with and nothing else,
// so concurrent calls for different carts never interact.
type Engine struct {
	promos   Repository
	usage    UsageCounter
	products product.Repository
	now      func() time.Time
}

// NewEngine creates an Engine. products is used to resolve category IDs for
// category-scoped promotions when line items arrive without them; it may be
// nil if callers always supply categories.
func NewEngine(promos Repository, usage UsageCounter, products product.Repository) *Engine {
	return &Engine{
		promos:   promos,
		usage:    usage,
		products: products,
		now:      time.Now,
	}
}

// ValidateAndPrice runs the validation sequence for code against cart and,
// when every check passes, computes the discount. The sequence stops at the
// first failure, which is returned as a *Rejection. Any other error is an
// infrastructure failure from a collaborator. user may be nil for guests.
func (e *Engine) ValidateAndPrice(ctx context.Context, code string, cart Cart, user *User) (*Pricing, error) {
	if code == "" {
		return nil, &Rejection{Reason: ReasonCodeRequired}
	}

	promo, err := e.promos.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &Rejection{Reason: ReasonInvalidCode, Code: code}
		}
		return nil, errors.Wrap(err, "lookup promotion")
	}
	if !promo.IsActive {
		return nil, &Rejection{Reason: ReasonInvalidCode, Code: code}
	}

	if !promo.ActiveAt(e.now()) {
		return nil, &Rejection{Reason: ReasonExpired, Code: code}
	}

	if cart.Subtotal >= 0 && cart.Subtotal < promo.MinOrderValue {
		return nil, &Rejection{
			Reason:        ReasonBelowMinimum,
			Code:          code,
			MinOrderValue: promo.MinOrderValue,
			Shortfall:     promo.MinOrderValue - cart.Subtotal,
		}
	}

	if user != nil && user.ID != "" && promo.PerUserLimit > 0 {
		used, err := e.usage.CountUserUsage(ctx, user.ID, promo.ID)
		if err != nil {
			return nil, errors.Wrap(err, "count promotion usage")
		}
		if used >= promo.PerUserLimit {
			return nil, &Rejection{Reason: ReasonUsageLimitReached, Code: code, Limit: promo.PerUserLimit}
		}
	}

	// Line items are only inspected once the code itself is known to be usable.
	if detail := validateCart(cart); detail != "" {
		return nil, &Rejection{Reason: ReasonInvalidCart, Code: code, Detail: detail}
	}

	if promo.Scope() == ScopeCategories {
		items, err := e.resolveCategories(ctx, cart.Items)
		if err != nil {
			return nil, err
		}
		cart.Items = items
	}

	return Apply(promo, cart)
}

// resolveCategories fills missing category IDs from the product catalog. The
// input slice is not modified.
func (e *Engine) resolveCategories(ctx context.Context, items []LineItem) ([]LineItem, error) {
	var missing []string
	for _, it := range items {
		if it.CategoryID == "" {
			missing = append(missing, it.ProductID)
		}
	}
	if len(missing) == 0 || e.products == nil {
		return items, nil
	}

	found, err := e.products.GetByIDs(ctx, missing)
	if err != nil {
		return nil, errors.Wrap(err, "resolve product categories")
	}
	categories := make(map[string]string, len(found))
	for _, p := range found {
		categories[p.ID] = p.CategoryID
	}

	out := make([]LineItem, len(items))
	for i, it := range items {
		if it.CategoryID == "" {
			it.CategoryID = categories[it.ProductID]
		}
		out[i] = it
	}
	return out, nil
}

// validateCart returns a description of the first malformed input, or "".
func validateCart(cart Cart) string {
	if len(cart.Items) == 0 {
		return "cart is empty"
	}
	if cart.Subtotal < 0 {
		return "subtotal must not be negative"
	}
	for _, it := range cart.Items {
		if it.ProductID == "" {
			return "product id is required"
		}
		if it.Quantity <= 0 {
			return fmt.Sprintf("quantity must be greater than 0 for product %s", it.ProductID)
		}
		if it.UnitPrice < 0 {
			return fmt.Sprintf("price must not be negative for product %s", it.ProductID)
		}
	}
	return ""
}
