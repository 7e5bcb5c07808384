package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, user_id, items, subtotal, discounts, delivery_charge, total,
		 coupon_code, pincode, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	// Serializes concurrent redemptions of one promotion by one user.
	lockRedemptionSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	createRedemptionSQL = `INSERT INTO promotion_redemptions (promotion_id, user_id, order_id, redeemed_at)
		VALUES ($1, $2, $3, $4)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and its redemption in one transaction. The
// order items are serialized to JSON for storage in the JSONB column.
//
// Redemptions by a known user are guarded by an advisory lock on
// (user, promotion) and the per-user limit is re-counted under it, so two
// concurrent checkouts cannot both take the last allowed use.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, red *order.Redemption) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tracked := red != nil && red.UserID != ""
		if tracked && red.PerUserLimit > 0 {
			if _, err := tx.Exec(ctx, lockRedemptionSQL, red.UserID+"/"+red.PromotionID); err != nil {
				return errors.Wrap(err, "lock redemption")
			}
			var used int64
			if err := tx.QueryRow(ctx, countUserUsageSQL, red.UserID, red.PromotionID).Scan(&used); err != nil {
				return errors.Wrap(err, "count redemptions")
			}
			if int(used) >= red.PerUserLimit {
				return order.ErrUsageLimitReached
			}
		}

		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.UserID, itemsJSON,
			o.Subtotal.Decimal(), o.Discounts.Decimal(), o.DeliveryCharge.Decimal(), o.Total.Decimal(),
			o.CouponCode, o.Pincode, string(o.PaymentMethod), o.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "insert order %q", o.ID)
		}

		if tracked {
			if _, err := tx.Exec(ctx, createRedemptionSQL, red.PromotionID, red.UserID, o.ID, o.CreatedAt); err != nil {
				return errors.Wrap(err, "insert redemption")
			}
		}
		return nil
	})
}
