// Package combo matches combo offers against a cart snapshot, partitions the
// cart's quantities between combo sets and leftover stock, and resolves the
// combined combo and coupon discount.
//
// The package is pure: Compute performs no I/O, holds no state between calls
// and returns identical output for identical input.
package combo

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// LineItem is one cart row as seen by the engine. UnitPrice is already
// resolved for the chosen variant.
type LineItem struct {
	ProductID  string
	VariantKey string
	Quantity   int
	UnitPrice  decimal.Decimal
	CategoryID string
	TenantID   string
}

// Candidate is the outcome of matching one combo against a pool.
type Candidate struct {
	ComboID string
	MaxSets int
	// PerSetRequirement maps product id to units per set. It is only set for
	// fixed-products combos.
	PerSetRequirement map[string]int
}

// MatchedLineItem is the quantity of one product+variant bound to a combo.
type MatchedLineItem struct {
	ProductID         string
	VariantKey        string
	QuantityAllocated int
}

// MatchedProduct aggregates MatchedLineItem quantities per product.
type MatchedProduct struct {
	ProductID string
	Quantity  int
}

// MatchResult is a combo that survived allocation with at least one set.
type MatchResult struct {
	ComboID     string
	Title       string
	Badge       string
	PricingMode offer.PricingMode
	ComboPrice  decimal.Decimal

	SetsSatisfied    int
	MatchedLineItems []MatchedLineItem
	MatchedProducts  []MatchedProduct

	// Subtotal is the pre-discount value of the allocated units.
	Subtotal       decimal.Decimal
	DiscountPerSet decimal.Decimal
	TotalDiscount  decimal.Decimal

	AllowStackingWithCoupon bool
}

// Leftover is the quantity of a product+variant not consumed by any combo.
type Leftover struct {
	ProductID         string
	VariantKey        string
	QuantityRemaining int
}

// WarningKind classifies a non-fatal problem found while computing a summary.
type WarningKind string

const (
	WarningInvalidDefinition WarningKind = "invalid_definition"
	WarningExhausted         WarningKind = "exhausted"
	WarningInvalidLine       WarningKind = "invalid_line"
	WarningCouponRejected    WarningKind = "coupon_rejected"
)

// Warning reports an input the engine skipped. Subject is a combo id,
// product id or coupon code depending on Kind.
type Warning struct {
	Kind    WarningKind
	Subject string
	Message string
	// Err is the underlying error when there is one.
	Err error
}

// Summary is the result of Compute.
type Summary struct {
	MatchResults []MatchResult
	Leftovers    []Leftover

	Subtotal         decimal.Decimal
	ComboDiscount    decimal.Decimal
	CouponDiscount   decimal.Decimal
	CouponApplied    bool
	CombinedDiscount decimal.Decimal
	CanStackAll      bool

	// BestCombo points into MatchResults at the result with the largest
	// discount. Nil when nothing matched.
	BestCombo *MatchResult

	Warnings []Warning
}

// ComboIDs returns the ids of the matched combos in allocation order.
func (s *Summary) ComboIDs() []string {
	ids := make([]string, 0, len(s.MatchResults))
	for _, r := range s.MatchResults {
		ids = append(ids, r.ComboID)
	}
	return ids
}

// Total returns the subtotal minus the combined discount, never negative.
func (s *Summary) Total() decimal.Decimal {
	return decimal.Max(zero, s.Subtotal.Sub(s.CombinedDiscount))
}
