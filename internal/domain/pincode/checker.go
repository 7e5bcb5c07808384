package pincode

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// Messages returned with negative results.
const (
	MessageNotServiceable = "delivery is not available for this pincode"
	MessageInactive       = "not currently serviceable"
)

// Result is the outcome of an eligibility check. Delivery fields are only
// populated when Serviceable is true.
type Result struct {
	Serviceable    bool
	Message        string
	Pincode        string
	City           string
	State          string
	DeliveryDays   int
	DeliveryTime   string
	CODAvailable   bool
	DeliveryCharge money.Amount
}

// Checker determines delivery eligibility for a pincode. It holds no state
// besides its repository, so concurrent calls never interact.
type Checker struct {
	repo Repository
}

// NewChecker creates a Checker backed by the given Repository.
func NewChecker(repo Repository) *Checker {
	return &Checker{repo: repo}
}

// Check looks up the pincode by exact match. A missing or inactive record is
// a normal negative result; only repository failures are returned as errors.
// Format validation is left to the caller: malformed input simply won't match.
func (c *Checker) Check(ctx context.Context, code string) (Result, error) {
	if code == "" {
		return Result{Message: MessageNotServiceable}, nil
	}

	p, err := c.repo.FindByPincode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Pincode: code, Message: MessageNotServiceable}, nil
		}
		return Result{}, errors.Wrap(err, "lookup pincode")
	}

	if !p.IsActive {
		return Result{Pincode: code, Message: MessageInactive}, nil
	}

	return Result{
		Serviceable:    true,
		Pincode:        p.Pincode,
		City:           p.City,
		State:          p.State,
		DeliveryDays:   p.DeliveryDays,
		DeliveryTime:   p.DeliveryTime,
		CODAvailable:   p.CODAvailable,
		DeliveryCharge: p.DeliveryCharge,
	}, nil
}
