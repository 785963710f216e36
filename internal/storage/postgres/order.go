package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-combos/internal/domain/order"
)

const createOrderSQL = `INSERT INTO orders
		(id, items, subtotal, combo_discount, coupon_discount, discounts, total, coupon_code, combo_ids)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts o with its items as JSONB and sets o.CreatedAt.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	comboIDs := o.ComboIDs
	if comboIDs == nil {
		comboIDs = []string{}
	}

	err = r.pool.QueryRow(ctx, createOrderSQL,
		o.ID, itemsJSON, o.Subtotal, o.ComboDiscount, o.CouponDiscount, o.Discounts, o.Total,
		o.CouponCode, comboIDs,
	).Scan(&o.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}

	return nil
}
