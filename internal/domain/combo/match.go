package combo

import (
	"cmp"
	"slices"
	"time"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

// Match computes how many sets of c the pool can satisfy. A combo outside its
// validity window matches zero sets. A malformed definition yields an
// *offer.DefinitionError and a zero candidate.
func Match(c *offer.Combo, pool *Pool, now time.Time) (Candidate, error) {
	cand := Candidate{ComboID: c.ID}
	if err := c.Validate(); err != nil {
		return cand, err
	}
	if !c.ActiveAt(now) {
		return cand, nil
	}

	switch c.Type {
	case offer.TypeFixedProducts:
		cand.MaxSets = matchFixed(c, pool)
		cand.PerSetRequirement = make(map[string]int, len(c.RequiredProducts))
		for _, rp := range c.RequiredProducts {
			cand.PerSetRequirement[rp.ProductID] += rp.QuantityPerSet
		}
	case offer.TypeAnyNProducts:
		cand.MaxSets = pool.available(inScope(c.Scope)) / c.MinProducts
	case offer.TypeCategoryCombo:
		cand.MaxSets = matchCategories(c, pool)
	}

	if cand.MaxSets > 0 && len(c.Conditions) > 0 {
		ok, err := evalConditions(c.Conditions, pool.facts)
		if err != nil {
			return Candidate{ComboID: c.ID}, &offer.DefinitionError{ComboID: c.ID, Reason: err.Error()}
		}
		if !ok {
			cand.MaxSets = 0
		}
	}
	return cand, nil
}

func matchFixed(c *offer.Combo, pool *Pool) int {
	sets := -1
	for _, rp := range c.RequiredProducts {
		avail := pool.available(requires(rp))
		if avail == 0 {
			return 0
		}
		n := avail / rp.QuantityPerSet
		if sets < 0 || n < sets {
			sets = n
		}
	}
	return max(sets, 0)
}

func matchCategories(c *offer.Combo, pool *Pool) int {
	sets := -1
	for _, cat := range c.ApplicableCategories {
		n := pool.available(inCategory(cat)) / c.MinItemsFromCategory
		if sets < 0 || n < sets {
			sets = n
		}
	}
	return max(sets, 0)
}

func requires(rp offer.RequiredProduct) func(LineItem) bool {
	return func(it LineItem) bool {
		return it.ProductID == rp.ProductID && (rp.VariantKey == "" || it.VariantKey == rp.VariantKey)
	}
}

func inScope(s offer.Scope) func(LineItem) bool {
	return func(it LineItem) bool {
		if s.TenantID != "" && it.TenantID != s.TenantID {
			return false
		}
		if s.CategoryID != "" && it.CategoryID != s.CategoryID {
			return false
		}
		return true
	}
}

func inCategory(cat string) func(LineItem) bool {
	return func(it LineItem) bool { return it.CategoryID == cat }
}

// allocate binds sets of c to concrete pool rows. It reports false when the
// pool cannot cover every requirement, which happens when requirements of
// the same combo overlap (a variant-specific and an any-variant entry for
// one product).
func allocate(c *offer.Combo, pool *Pool, sets int) (allocation, bool) {
	a := pool.newAllocation()
	switch c.Type {
	case offer.TypeFixedProducts:
		// Variant-specific requirements first, so an any-variant entry does
		// not take units only they could use.
		reqs := slices.Clone(c.RequiredProducts)
		slices.SortStableFunc(reqs, func(x, y offer.RequiredProduct) int {
			return cmp.Compare(boolRank(x.VariantKey == ""), boolRank(y.VariantKey == ""))
		})
		for _, rp := range reqs {
			if pool.take(a, rp.QuantityPerSet*sets, requires(rp)) > 0 {
				return nil, false
			}
		}
	case offer.TypeAnyNProducts:
		if pool.take(a, c.MinProducts*sets, inScope(c.Scope)) > 0 {
			return nil, false
		}
	case offer.TypeCategoryCombo:
		for _, cat := range c.ApplicableCategories {
			if pool.take(a, c.MinItemsFromCategory*sets, inCategory(cat)) > 0 {
				return nil, false
			}
		}
	default:
		return nil, false
	}
	return a, true
}

// allocateMost tries sets, sets-1, ... 1 and returns the first allocation
// that fits.
func allocateMost(c *offer.Combo, pool *Pool, sets int) (allocation, int) {
	for s := sets; s > 0; s-- {
		if a, ok := allocate(c, pool, s); ok {
			return a, s
		}
	}
	return nil, 0
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
