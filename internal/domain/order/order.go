package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a placed order with the discounts that were granted on it.
//
// ComboDiscount and CouponDiscount record which side of the stacking rule
// contributed: when a non-stackable combo competes with the coupon, only
// the winner is non-zero. Discounts is the combined amount actually taken
// off, which is additionally capped at the subtotal.
type Order struct {
	ID    string
	Items []OrderItem

	Subtotal       decimal.Decimal
	ComboDiscount  decimal.Decimal
	CouponDiscount decimal.Decimal
	Discounts      decimal.Decimal
	Total          decimal.Decimal

	CouponCode string
	ComboIDs   []string
	CreatedAt  time.Time
}

// OrderItem is one requested line. It is stored as JSON.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant,omitempty"`
	Quantity  int    `json:"quantity"`
}

type Repository interface {
	// Create stores o and sets o.CreatedAt.
	Create(ctx context.Context, o *Order) error
}
