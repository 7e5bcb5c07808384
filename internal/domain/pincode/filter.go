package pincode

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// FilteredRepository short-circuits lookups for pincodes that are definitely
// not stored. It keeps a bloom filter of every known pincode and only
// consults the wrapped Repository when the filter reports a possible match.
//
// Pincodes added after the last Refresh are reported as not found until the
// next refresh. Before the first Refresh every lookup goes to the Repository.
type FilteredRepository struct {
	repo   Repository
	lister Lister
	fpr    float64
	filter atomic.Pointer[bloom.BloomFilter]
}

var _ Repository = (*FilteredRepository)(nil)

// NewFilteredRepository wraps repo with a bloom filter built from lister.
// fpr is the target false-positive rate.
func NewFilteredRepository(repo Repository, lister Lister, fpr float64) *FilteredRepository {
	return &FilteredRepository{
		repo:   repo,
		lister: lister,
		fpr:    fpr,
	}
}

// FindByPincode implements Repository.
func (r *FilteredRepository) FindByPincode(ctx context.Context, code string) (*ServiceablePincode, error) {
	if f := r.filter.Load(); f != nil && !f.TestString(code) {
		return nil, ErrNotFound
	}
	return r.repo.FindByPincode(ctx, code)
}

// Refresh rebuilds the filter from the full pincode list and swaps it in.
func (r *FilteredRepository) Refresh(ctx context.Context) error {
	codes, err := r.lister.ListPincodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list pincodes")
	}

	n := uint(len(codes))
	if n == 0 {
		n = 1
	}
	f := bloom.NewWithEstimates(n, r.fpr)
	for _, code := range codes {
		f.AddString(code)
	}
	r.filter.Store(f)
	return nil
}

// Run refreshes the filter every interval until ctx is cancelled. Failed
// refreshes are logged and the previous filter stays in place.
func (r *FilteredRepository) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				zctx.From(ctx).Warn("Pincode filter refresh failed", zap.Error(err))
			}
		}
	}
}
