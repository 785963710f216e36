package combo

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type poolRow struct {
	item      LineItem
	remaining int
}

// Pool tracks the quantity of each cart row not yet bound to a combo.
// Rows keep cart order so allocation is deterministic.
type Pool struct {
	rows  []poolRow
	facts cartFacts
}

// cartFacts describe the whole cart and feed combo conditions.
type cartFacts struct {
	CartTotal decimal.Decimal
	ItemCount int
	LineCount int
}

// NewPool builds a pool from cart rows. Rows with a non-positive quantity
// or a negative unit price never enter the pool and are reported as
// warnings.
func NewPool(items []LineItem) (*Pool, []Warning) {
	p := &Pool{rows: make([]poolRow, 0, len(items)), facts: cartFacts{CartTotal: zero}}
	var warnings []Warning
	for _, it := range items {
		if it.Quantity <= 0 {
			warnings = append(warnings, Warning{
				Kind:    WarningInvalidLine,
				Subject: it.ProductID,
				Message: fmt.Sprintf("quantity %d ignored", it.Quantity),
			})
			continue
		}
		if it.UnitPrice.IsNegative() {
			warnings = append(warnings, Warning{
				Kind:    WarningInvalidLine,
				Subject: it.ProductID,
				Message: fmt.Sprintf("negative unit price %s ignored", it.UnitPrice),
			})
			continue
		}
		p.rows = append(p.rows, poolRow{item: it, remaining: it.Quantity})
		p.facts.CartTotal = p.facts.CartTotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		p.facts.ItemCount += it.Quantity
		p.facts.LineCount++
	}
	return p, warnings
}

// Empty reports whether the pool holds no rows.
func (p *Pool) Empty() bool { return len(p.rows) == 0 }

// Subtotal returns the pre-discount value of the whole cart.
func (p *Pool) Subtotal() decimal.Decimal { return p.facts.CartTotal }

// available sums the remaining quantity of rows accepted by match.
func (p *Pool) available(match func(LineItem) bool) int {
	total := 0
	for _, r := range p.rows {
		if r.remaining > 0 && match(r.item) {
			total += r.remaining
		}
	}
	return total
}

// allocation is the quantity taken from each pool row, indexed like rows.
type allocation []int

func (p *Pool) newAllocation() allocation { return make(allocation, len(p.rows)) }

// take moves up to need units from rows accepted by match into a, in cart
// order. It returns the unmet remainder.
func (p *Pool) take(a allocation, need int, match func(LineItem) bool) int {
	for i := range p.rows {
		if need == 0 {
			break
		}
		r := p.rows[i]
		free := r.remaining - a[i]
		if free <= 0 || !match(r.item) {
			continue
		}
		n := min(free, need)
		a[i] += n
		need -= n
	}
	return need
}

// commit subtracts an allocation from the pool.
func (p *Pool) commit(a allocation) {
	for i, n := range a {
		p.rows[i].remaining -= n
	}
}

// subtotal prices an allocation.
func (p *Pool) subtotal(a allocation) decimal.Decimal {
	sum := zero
	for i, n := range a {
		if n > 0 {
			sum = sum.Add(p.rows[i].item.UnitPrice.Mul(decimal.NewFromInt(int64(n))))
		}
	}
	return sum
}

type lineKey struct {
	productID  string
	variantKey string
}

// matchedLines groups an allocation by product+variant in first-appearance order.
func (p *Pool) matchedLines(a allocation) ([]MatchedLineItem, []MatchedProduct) {
	var (
		lines    []MatchedLineItem
		products []MatchedProduct
		lineIdx  = map[lineKey]int{}
		prodIdx  = map[string]int{}
	)
	for i, n := range a {
		if n == 0 {
			continue
		}
		it := p.rows[i].item
		k := lineKey{it.ProductID, it.VariantKey}
		if j, ok := lineIdx[k]; ok {
			lines[j].QuantityAllocated += n
		} else {
			lineIdx[k] = len(lines)
			lines = append(lines, MatchedLineItem{ProductID: it.ProductID, VariantKey: it.VariantKey, QuantityAllocated: n})
		}
		if j, ok := prodIdx[it.ProductID]; ok {
			products[j].Quantity += n
		} else {
			prodIdx[it.ProductID] = len(products)
			products = append(products, MatchedProduct{ProductID: it.ProductID, Quantity: n})
		}
	}
	return lines, products
}

// leftovers reports the remaining quantity per product+variant, zeros
// included, in first-appearance order.
func (p *Pool) leftovers() []Leftover {
	var (
		out []Leftover
		idx = map[lineKey]int{}
	)
	for _, r := range p.rows {
		k := lineKey{r.item.ProductID, r.item.VariantKey}
		if j, ok := idx[k]; ok {
			out[j].QuantityRemaining += r.remaining
			continue
		}
		idx[k] = len(out)
		out = append(out, Leftover{ProductID: k.productID, VariantKey: k.variantKey, QuantityRemaining: r.remaining})
	}
	return out
}
