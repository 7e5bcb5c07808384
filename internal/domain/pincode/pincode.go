// Package pincode answers whether the store delivers to a postal code.
package pincode

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// ErrNotFound is returned by a Repository when no record exists for a pincode.
var ErrNotFound = errors.New("pincode not found")

// ServiceablePincode is a postal code the store has delivery data for. It
// carries the union of both delivery schemas: day counts with a COD flag, and
// a free-form delivery time with a delivery charge. Storage fills whatever
// its schema has and leaves the rest zero.
type ServiceablePincode struct {
	Pincode        string
	City           string
	State          string
	IsActive       bool
	CODAvailable   bool
	DeliveryDays   int
	DeliveryTime   string
	DeliveryCharge money.Amount
}

// Repository looks up serviceable pincode records by exact code.
type Repository interface {
	FindByPincode(ctx context.Context, pincode string) (*ServiceablePincode, error)
}

// Lister enumerates every stored pincode, active or not.
type Lister interface {
	ListPincodes(ctx context.Context) ([]string, error)
}
