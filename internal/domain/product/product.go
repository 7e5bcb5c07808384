package product

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/money"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is the slice of a catalog item that checkout needs: its price and
// the category promotions may be scoped to.
type Product struct {
	ID         string
	Name       string
	Price      money.Amount
	CategoryID string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	// GetByIDs returns products matching any of the given IDs. Unknown IDs
	// are skipped; callers detect them by comparing against the input.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
