package promotion

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// Reason tags why a promotion was rejected.
type Reason string

const (
	ReasonCodeRequired      Reason = "CODE_REQUIRED"
	ReasonInvalidCart       Reason = "INVALID_CART"
	ReasonInvalidCode       Reason = "INVALID_CODE"
	ReasonExpired           Reason = "EXPIRED_OR_NOT_STARTED"
	ReasonBelowMinimum      Reason = "BELOW_MINIMUM"
	ReasonUsageLimitReached Reason = "USAGE_LIMIT_REACHED"
	ReasonNotApplicable     Reason = "NOT_APPLICABLE_TO_CART"
)

// Rejection is an expected negative outcome of validation. It is returned as
// an error so callers can branch with errors.As, and always carries enough
// detail to explain itself to a shopper.
type Rejection struct {
	Reason Reason
	Code   string

	// MinOrderValue and Shortfall are set for ReasonBelowMinimum.
	MinOrderValue money.Amount
	Shortfall     money.Amount
	// Limit is set for ReasonUsageLimitReached.
	Limit int
	// Detail describes the offending input for ReasonInvalidCart.
	Detail string
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonCodeRequired:
		return "promotion code is required"
	case ReasonInvalidCart:
		return "invalid cart: " + r.Detail
	case ReasonInvalidCode:
		return "invalid promotion code"
	case ReasonExpired:
		return "promotion code has expired or is not active yet"
	case ReasonBelowMinimum:
		return fmt.Sprintf("minimum order value of %s required, add %s more", r.MinOrderValue, r.Shortfall)
	case ReasonUsageLimitReached:
		return fmt.Sprintf("promotion code can be used at most %d times per customer", r.Limit)
	case ReasonNotApplicable:
		return "promotion code does not apply to any item in the cart"
	default:
		return "promotion rejected: " + string(r.Reason)
	}
}

// AsRejection unwraps err into a Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsReason reports whether err is a Rejection with the given reason.
func IsReason(err error, reason Reason) bool {
	r, ok := AsRejection(err)
	return ok && r.Reason == reason
}
