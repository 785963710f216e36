package combo

import (
	"cmp"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

type planned struct {
	combo    *offer.Combo
	maxSets  int
	priority decimal.Decimal
}

// Plan matches offers against the pool and allocates its units greedily.
// Candidates are scored by their discount against the full pool, then
// allocated in order of discount descending and combo id ascending, each
// against whatever earlier candidates left behind. The pool is consumed.
func Plan(offers []offer.Combo, pool *Pool, now time.Time) ([]MatchResult, []Warning) {
	var (
		warnings   []Warning
		candidates []planned
	)
	for i := range offers {
		c := &offers[i]
		if c.Exhausted() {
			warnings = append(warnings, Warning{Kind: WarningExhausted, Subject: c.ID, Message: "no remaining uses"})
			continue
		}
		cand, err := Match(c, pool, now)
		if err != nil {
			var defErr *offer.DefinitionError
			if !errors.As(err, &defErr) {
				defErr = &offer.DefinitionError{ComboID: c.ID, Reason: err.Error()}
			}
			warnings = append(warnings, Warning{Kind: WarningInvalidDefinition, Subject: c.ID, Message: defErr.Reason})
			continue
		}
		if cand.MaxSets == 0 {
			continue
		}
		a, sets := allocateMost(c, pool, cand.MaxSets)
		if sets == 0 {
			continue
		}
		_, total := Discount(c, sets, pool.subtotal(a))
		candidates = append(candidates, planned{combo: c, maxSets: sets, priority: total})
	}

	slices.SortStableFunc(candidates, func(x, y planned) int {
		if c := y.priority.Cmp(x.priority); c != 0 {
			return c
		}
		return cmp.Compare(x.combo.ID, y.combo.ID)
	})

	results := make([]MatchResult, 0, len(candidates))
	for _, p := range candidates {
		cand, err := Match(p.combo, pool, now)
		if err != nil {
			continue
		}
		a, sets := allocateMost(p.combo, pool, min(p.maxSets, cand.MaxSets))
		if sets == 0 {
			// Lost the shared stock to a higher-priority combo.
			continue
		}
		pool.commit(a)
		results = append(results, buildResult(p.combo, pool, a, sets))
	}
	return results, warnings
}

func buildResult(c *offer.Combo, pool *Pool, a allocation, sets int) MatchResult {
	subtotal := pool.subtotal(a)
	perSet, total := Discount(c, sets, subtotal)
	lines, products := pool.matchedLines(a)
	return MatchResult{
		ComboID:                 c.ID,
		Title:                   c.Title,
		Badge:                   c.Badge,
		PricingMode:             c.PricingMode,
		ComboPrice:              c.ComboPrice,
		SetsSatisfied:           sets,
		MatchedLineItems:        lines,
		MatchedProducts:         products,
		Subtotal:                subtotal,
		DiscountPerSet:          perSet,
		TotalDiscount:           total,
		AllowStackingWithCoupon: c.AllowStackingWithCoupon,
	}
}
