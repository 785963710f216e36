package combo

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

// Discount computes the discount for sets of c whose allocated units are
// worth subtotal. The total never exceeds subtotal or a non-zero
// MaxDiscountAmount. perSet is truncated so that perSet*sets <= total.
func Discount(c *offer.Combo, sets int, subtotal decimal.Decimal) (perSet, total decimal.Decimal) {
	if sets <= 0 {
		return zero, zero
	}
	s := decimal.NewFromInt(int64(sets))

	var amount decimal.Decimal
	switch c.PricingMode {
	case offer.PricingFixedPrice:
		amount = subtotal.Sub(c.ComboPrice.Mul(s))
	case offer.PricingFixedDiscount:
		amount = c.DiscountValue.Mul(s)
	case offer.PricingPercentageDiscount:
		amount = subtotal.Mul(c.DiscountValue).Div(hundred)
	default:
		return zero, zero
	}

	// Bounds are rounded down so the rounded amount never exceeds them.
	amount = floorAtZero(amount).Round(2)
	if c.PricingMode != offer.PricingFixedPrice && c.MaxDiscountAmount.IsPositive() {
		amount = decimal.Min(amount, c.MaxDiscountAmount.RoundDown(2))
	}
	amount = decimal.Min(amount, floorAtZero(subtotal).RoundDown(2))

	return amount.Div(s).Truncate(2), amount
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
