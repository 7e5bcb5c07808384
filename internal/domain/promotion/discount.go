package promotion

import (
	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// Apply resolves the promotion's scope against the cart and computes the
// discount. It performs no eligibility checks beyond scope matching and
// returns a ReasonNotApplicable Rejection when no line item matches.
func Apply(p *Promotion, cart Cart) (*Pricing, error) {
	scope := p.Scope()

	matched, applicable := matchItems(p, scope, cart)
	if len(matched) == 0 {
		return nil, &Rejection{Reason: ReasonNotApplicable, Code: p.Code}
	}

	return &Pricing{
		PromotionID:        p.ID,
		Code:               p.Code,
		Name:               p.Name,
		Type:               p.Type,
		Scope:              scope,
		Discount:           calcDiscount(p, applicable),
		ApplicableSubtotal: applicable,
		MatchedItemIDs:     matched,
		PerUserLimit:       p.PerUserLimit,
	}, nil
}

// matchItems returns the matched product IDs and the subtotal the discount
// is computed against.
func matchItems(p *Promotion, scope Scope, cart Cart) ([]string, money.Amount) {
	var keep func(LineItem) bool
	switch scope {
	case ScopeProducts:
		set := toSet(p.ApplicableProducts)
		keep = func(it LineItem) bool { return set[it.ProductID] }
	case ScopeCategories:
		set := toSet(p.ApplicableCategories)
		keep = func(it LineItem) bool { return it.CategoryID != "" && set[it.CategoryID] }
	default:
		keep = func(LineItem) bool { return true }
	}

	var (
		ids      []string
		seen     = make(map[string]bool, len(cart.Items))
		subtotal money.Amount
	)
	for _, it := range cart.Items {
		if !keep(it) {
			continue
		}
		subtotal += it.Total()
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	if scope == ScopeCart {
		subtotal = cart.Subtotal
	}
	return ids, subtotal
}

// calcDiscount applies the percentage or flat value, then the cap. Flat
// discounts are a single deduction regardless of how many items matched.
func calcDiscount(p *Promotion, applicable money.Amount) money.Amount {
	var discount money.Amount
	if p.IsPercentage {
		discount = money.Percent(applicable, p.Percent)
	} else {
		discount = p.Amount
	}

	if p.MaxDiscount > 0 && discount > p.MaxDiscount {
		discount = p.MaxDiscount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
