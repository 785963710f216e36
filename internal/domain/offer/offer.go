// Package offer defines promotional combo offers and the read-only catalog
// view the discount engine consumes.
package offer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Type selects how a combo's shape is matched against the cart.
type Type string

const (
	// TypeFixedProducts requires specific products in specific quantities.
	TypeFixedProducts Type = "fixed_products"
	// TypeAnyNProducts requires any N units from a scope.
	TypeAnyNProducts Type = "any_n_products"
	// TypeCategoryCombo requires a minimum number of units from each listed category.
	TypeCategoryCombo Type = "category_combo"
)

// PricingMode selects how a matched combo's discount is computed.
type PricingMode string

const (
	// PricingFixedPrice sells each set for ComboPrice.
	PricingFixedPrice PricingMode = "fixed_price"
	// PricingFixedDiscount takes DiscountValue off each set.
	PricingFixedDiscount PricingMode = "fixed_discount"
	// PricingPercentageDiscount takes DiscountValue percent off each set.
	PricingPercentageDiscount PricingMode = "percentage_discount"
)

// RequiredProduct is one entry of a fixed-products combo.
type RequiredProduct struct {
	ProductID string
	// VariantKey narrows the requirement to one variant (e.g. a size).
	// Empty matches any variant of the product.
	VariantKey     string
	QuantityPerSet int
}

// Scope filters the cart items an any-N combo may draw from. Empty fields
// do not filter.
type Scope struct {
	TenantID   string
	CategoryID string
}

// Combo is a combo offer definition as supplied by the offer store.
type Combo struct {
	ID          string
	Title       string
	Badge       string
	Type        Type
	PricingMode PricingMode

	ComboPrice        decimal.Decimal
	DiscountValue     decimal.Decimal
	MaxDiscountAmount decimal.Decimal

	AllowStackingWithCoupon bool

	// UsageLimit caps the recorded uses of the offer; zero means unlimited.
	// The store stops counting at the limit and reports RemainingUses, and
	// the engine skips offers with none left.
	UsageLimit int
	// PerUserLimit is stored and imported as-is. Orders carry no customer
	// identity, so nothing enforces it.
	PerUserLimit int
	// RemainingUses is an optional hint from the store. Nil means unknown.
	RemainingUses *int

	ValidFrom  *time.Time
	ValidUntil *time.Time

	RequiredProducts []RequiredProduct

	MinProducts int
	Scope       Scope

	ApplicableCategories []string
	MinItemsFromCategory int

	// Conditions is an optional JSON-logic expression evaluated against the
	// cart (cartTotal, itemCount, lineCount). A falsy result disables the combo.
	Conditions json.RawMessage
}

// ActiveAt reports whether now falls inside the combo's validity window.
func (c *Combo) ActiveAt(now time.Time) bool {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	return true
}

// Exhausted reports whether the store hinted that no uses remain.
func (c *Combo) Exhausted() bool {
	return c.RemainingUses != nil && *c.RemainingUses <= 0
}

// Catalog is the read-only view over active combo offers. Implementations
// filter by enabled flag and validity window.
type Catalog interface {
	ListActive(ctx context.Context, now time.Time) ([]Combo, error)
}
