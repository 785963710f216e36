package combo

import (
	"time"

	"github.com/xenking/kart-combos/internal/domain/coupon"
	"github.com/xenking/kart-combos/internal/domain/offer"
)

// Input is everything Compute needs for one evaluation.
type Input struct {
	Items  []LineItem
	Offers []offer.Combo
	// Coupon is an already resolved coupon rule. Nil means no coupon.
	Coupon *coupon.Rule
	Now    time.Time
}

// Compute matches offers against the cart, allocates quantities, prices
// each match and resolves stacking with the coupon. An empty cart yields an
// empty summary. Problems with individual offers, rows or the coupon are
// reported as warnings and never abort the computation.
func Compute(in Input) Summary {
	pool, warnings := NewPool(in.Items)
	sum := Summary{
		Subtotal:         pool.Subtotal(),
		ComboDiscount:    zero,
		CouponDiscount:   zero,
		CombinedDiscount: zero,
		CanStackAll:      true,
		Warnings:         warnings,
	}
	if pool.Empty() {
		return sum
	}

	results, planWarnings := Plan(in.Offers, pool, in.Now)
	sum.MatchResults = results
	sum.Leftovers = pool.leftovers()
	sum.Warnings = append(sum.Warnings, planWarnings...)

	if in.Coupon != nil {
		d, err := coupon.Apply(in.Coupon, couponItems(in.Items))
		if err != nil {
			sum.Warnings = append(sum.Warnings, Warning{
				Kind:    WarningCouponRejected,
				Subject: in.Coupon.Code,
				Message: err.Error(),
				Err:     err,
			})
		} else {
			sum.CouponDiscount = d.Amount
		}
	}

	st := resolveStacking(results, sum.CouponDiscount, sum.Subtotal)
	sum.ComboDiscount = st.comboSum
	sum.CombinedDiscount = st.combined
	sum.CanStackAll = st.canStackAll
	sum.CouponApplied = st.couponApplied

	for i := range sum.MatchResults {
		if sum.BestCombo == nil || sum.MatchResults[i].TotalDiscount.GreaterThan(sum.BestCombo.TotalDiscount) {
			sum.BestCombo = &sum.MatchResults[i]
		}
	}
	return sum
}

func couponItems(items []LineItem) []coupon.Item {
	out := make([]coupon.Item, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			continue
		}
		out = append(out, coupon.Item{ProductID: it.ProductID, Price: it.UnitPrice, Quantity: it.Quantity})
	}
	return out
}
