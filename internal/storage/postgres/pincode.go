package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
)

const (
	findPincodeSQL = `SELECT pincode, city, state, is_active, cod_available,
		delivery_days, delivery_time, delivery_charge
		FROM serviceable_pincodes WHERE pincode = $1`

	listPincodesSQL = `SELECT pincode FROM serviceable_pincodes`

	upsertPincodeSQL = `INSERT INTO serviceable_pincodes
		(pincode, city, state, is_active, cod_available, delivery_days, delivery_time, delivery_charge)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (pincode) DO UPDATE SET
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			is_active = EXCLUDED.is_active,
			cod_available = EXCLUDED.cod_available,
			delivery_days = EXCLUDED.delivery_days,
			delivery_time = EXCLUDED.delivery_time,
			delivery_charge = EXCLUDED.delivery_charge`
)

var (
	_ pincode.Repository = (*PincodeRepository)(nil)
	_ pincode.Lister     = (*PincodeRepository)(nil)
)

// PincodeRepository implements pincode.Repository backed by PostgreSQL.
type PincodeRepository struct {
	pool *pgxpool.Pool
}

// NewPincodeRepository returns a PincodeRepository that uses the given pool.
func NewPincodeRepository(pool *pgxpool.Pool) *PincodeRepository {
	return &PincodeRepository{pool: pool}
}

// FindByPincode looks up a pincode by exact match, active or not.
func (r *PincodeRepository) FindByPincode(ctx context.Context, code string) (*pincode.ServiceablePincode, error) {
	var (
		p      pincode.ServiceablePincode
		days   int32
		charge decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, findPincodeSQL, code).Scan(
		&p.Pincode, &p.City, &p.State, &p.IsActive, &p.CODAvailable,
		&days, &p.DeliveryTime, &charge,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pincode.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find pincode %q", code)
	}
	p.DeliveryDays = int(days)
	p.DeliveryCharge = money.FromDecimal(charge)
	return &p, nil
}

// ListPincodes returns every stored pincode.
func (r *PincodeRepository) ListPincodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listPincodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list pincodes")
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan pincodes")
	}
	return codes, nil
}

// Upsert inserts or replaces pincode records in a single batch.
func (r *PincodeRepository) Upsert(ctx context.Context, records ...pincode.ServiceablePincode) error {
	batch := &pgx.Batch{}
	for _, p := range records {
		batch.Queue(upsertPincodeSQL,
			p.Pincode, p.City, p.State, p.IsActive, p.CODAvailable,
			int32(p.DeliveryDays), p.DeliveryTime, p.DeliveryCharge.Decimal(),
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert pincodes")
	}
	return nil
}
