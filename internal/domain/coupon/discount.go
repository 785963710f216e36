package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// cartStats is what the discount types need to know about a cart.
type cartStats struct {
	subtotal decimal.Decimal
	units    int
	lowest   decimal.Decimal // cheapest unit price, zero for an empty cart
}

func statsOf(items []Item) cartStats {
	st := cartStats{subtotal: decimal.Zero, lowest: decimal.Zero}
	for i, it := range items {
		st.subtotal = st.subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		st.units += it.Quantity
		if i == 0 || it.Price.LessThan(st.lowest) {
			st.lowest = it.Price
		}
	}
	return st
}

// Subtotal returns the sum of price times quantity over items.
func Subtotal(items []Item) decimal.Decimal {
	return statsOf(items).subtotal
}

// Apply prices rule against items. A cart below MinItems is rejected with
// ErrInvalidCoupon and one below MinOrderAmount with ErrMinOrderAmount.
// The amount is rounded to cents and then capped by MaxDiscount and by the
// subtotal, both taken down to whole cents.
func Apply(rule *Rule, items []Item) (Discount, error) {
	st := statsOf(items)
	if rule.MinItems > 0 && st.units < rule.MinItems {
		return Discount{}, ErrInvalidCoupon
	}
	if rule.MinOrderAmount.IsPositive() && st.subtotal.LessThan(rule.MinOrderAmount) {
		return Discount{}, ErrMinOrderAmount
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = st.subtotal.Mul(rule.Value).Div(hundred)
	case DiscountFixed:
		amount = rule.Value
	case DiscountFreeLowest:
		amount = st.lowest
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	amount = decimal.Max(decimal.Zero, amount).Round(2)
	if rule.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, rule.MaxDiscount.RoundDown(2))
	}
	amount = decimal.Min(amount, decimal.Max(decimal.Zero, st.subtotal).RoundDown(2))

	return Discount{Amount: amount, Description: rule.Description}, nil
}
