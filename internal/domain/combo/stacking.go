package combo

import "github.com/shopspring/decimal"

type stacking struct {
	comboSum      decimal.Decimal
	combined      decimal.Decimal
	canStackAll   bool
	couponApplied bool
}

// resolveStacking combines combo discounts with the coupon discount. When
// every matched combo allows stacking both apply; otherwise the richer of
// the combo sum and the coupon wins, combos on a tie. The result never
// exceeds the cart subtotal.
func resolveStacking(results []MatchResult, couponDiscount, subtotal decimal.Decimal) stacking {
	st := stacking{comboSum: zero, canStackAll: true}
	for _, r := range results {
		st.comboSum = st.comboSum.Add(r.TotalDiscount)
		if !r.AllowStackingWithCoupon {
			st.canStackAll = false
		}
	}

	hasCoupon := couponDiscount.IsPositive()
	switch {
	case st.canStackAll:
		st.combined = st.comboSum.Add(couponDiscount)
		st.couponApplied = hasCoupon
	case couponDiscount.GreaterThan(st.comboSum):
		st.combined = couponDiscount
		st.couponApplied = true
	default:
		st.combined = st.comboSum
	}

	st.combined = decimal.Min(floorAtZero(st.combined), subtotal)
	return st
}
