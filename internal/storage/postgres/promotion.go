package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

const (
	findPromotionByCodeSQL = `SELECT id, code, name, description, type, is_percentage, value,
		min_order_value, max_discount, applicable_products, applicable_categories,
		start_date, end_date, per_user_limit, is_active
		FROM promotions WHERE code = $1`

	countUserUsageSQL = `SELECT COUNT(*) FROM promotion_redemptions
		WHERE user_id = $1 AND promotion_id = $2`

	upsertPromotionSQL = `INSERT INTO promotions
		(id, code, name, description, type, is_percentage, value, min_order_value, max_discount,
		 applicable_products, applicable_categories, start_date, end_date, per_user_limit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			is_percentage = EXCLUDED.is_percentage,
			value = EXCLUDED.value,
			min_order_value = EXCLUDED.min_order_value,
			max_discount = EXCLUDED.max_discount,
			applicable_products = EXCLUDED.applicable_products,
			applicable_categories = EXCLUDED.applicable_categories,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			per_user_limit = EXCLUDED.per_user_limit,
			is_active = EXCLUDED.is_active`
)

var (
	_ promotion.Repository   = (*PromotionRepository)(nil)
	_ promotion.UsageCounter = (*PromotionRepository)(nil)
)

// PromotionRepository implements promotion.Repository and
// promotion.UsageCounter backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindByCode looks up a promotion by its exact, case-sensitive code. Inactive
// promotions are returned as well; the engine decides what to do with them.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, findPromotionByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find promotion %q", code)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find promotion %q", code)
	}
	return &p, nil
}

// CountUserUsage returns how many orders of userID redeemed promotionID.
func (r *PromotionRepository) CountUserUsage(ctx context.Context, userID, promotionID string) (int, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countUserUsageSQL, userID, promotionID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count redemptions")
	}
	return int(n), nil
}

// Upsert inserts or replaces promotions by ID.
func (r *PromotionRepository) Upsert(ctx context.Context, promos ...promotion.Promotion) error {
	batch := &pgx.Batch{}
	for _, p := range promos {
		value := p.Amount.Decimal()
		if p.IsPercentage {
			value = p.Percent
		}
		var maxDiscount decimal.NullDecimal
		if p.MaxDiscount > 0 {
			maxDiscount = decimal.NewNullDecimal(p.MaxDiscount.Decimal())
		}
		batch.Queue(upsertPromotionSQL,
			p.ID, p.Code, p.Name, p.Description, string(p.Type), p.IsPercentage, value,
			p.MinOrderValue.Decimal(), maxDiscount,
			nonNil(p.ApplicableProducts), nonNil(p.ApplicableCategories),
			p.StartDate, p.EndDate, int32(p.PerUserLimit), p.IsActive,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert promotions")
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p           promotion.Promotion
		typ         string
		value       decimal.Decimal
		minOrder    decimal.Decimal
		maxDiscount decimal.NullDecimal
		start, end  *time.Time
		limit       int32
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &typ, &p.IsPercentage, &value,
		&minOrder, &maxDiscount, &p.ApplicableProducts, &p.ApplicableCategories,
		&start, &end, &limit, &p.IsActive,
	)
	p.Type = promotion.Type(typ)
	if p.IsPercentage {
		p.Percent = value
	} else {
		p.Amount = money.FromDecimal(value)
	}
	p.MinOrderValue = money.FromDecimal(minOrder)
	p.MaxDiscount = toNullAmount(maxDiscount)
	p.StartDate = start
	p.EndDate = end
	p.PerUserLimit = int(limit)
	return p, err
}

// nonNil keeps TEXT[] NOT NULL columns happy.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
