// Package coupon resolves customer coupon codes and prices them against a
// cart. Coupon discounts are computed on the whole cart subtotal and are
// combined with combo discounts by the combo engine.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType selects how Apply turns a cart into a discount amount.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"  // Value percent of the subtotal
	DiscountFixed      DiscountType = "fixed"       // Value off the subtotal
	DiscountFreeLowest DiscountType = "free_lowest" // one unit of the cheapest line free
)

// Rejection reasons. The handler turns them into customer-facing messages.
var (
	ErrInvalidCoupon           = errors.New("invalid coupon code")
	ErrCouponExpired           = errors.New("coupon expired")
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	ErrMinOrderAmount          = errors.New("order amount below coupon minimum")
)

// Rule is a stored coupon definition together with its usage counter.
//
// A zero MinItems, MinOrderAmount, MaxDiscount or MaxUses disables that
// limit. Nil ValidFrom or ValidUntil leaves that side of the window open.
type Rule struct {
	Code        string
	Description string

	DiscountType DiscountType
	Value        decimal.Decimal
	MaxDiscount  decimal.Decimal

	MinItems       int
	MinOrderAmount decimal.Decimal

	ValidFrom  *time.Time
	ValidUntil *time.Time

	MaxUses int
	Uses    int
}

// Check reports whether the coupon can be used at now: ErrCouponExpired
// outside the window, ErrCouponUsageLimitReached once every use is spent.
func (r *Rule) Check(now time.Time) error {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrCouponExpired
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return ErrCouponExpired
	}
	if r.MaxUses > 0 && r.Uses >= r.MaxUses {
		return ErrCouponUsageLimitReached
	}
	return nil
}

// Item is a cart line as seen by coupon pricing.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Discount is the priced result of a coupon.
type Discount struct {
	Amount      decimal.Decimal
	Description string
}

// Repository stores coupon rules. FindByCode returns ErrInvalidCoupon for
// unknown or inactive codes.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}
