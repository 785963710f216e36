package offer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DefinitionError reports a combo whose shape is invalid for its declared
// type or pricing mode. Only the offending combo is excluded from matching.
type DefinitionError struct {
	ComboID string
	Reason  string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("combo %s: invalid definition: %s", e.ComboID, e.Reason)
}

func definitionErr(c *Combo, format string, args ...any) *DefinitionError {
	return &DefinitionError{ComboID: c.ID, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks that the combo carries every field its type and pricing
// mode need.
func (c *Combo) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return definitionErr(c, "id is required")
	}

	switch c.Type {
	case TypeFixedProducts:
		if err := c.validateFixedProducts(); err != nil {
			return err
		}
	case TypeAnyNProducts:
		if c.MinProducts <= 0 {
			return definitionErr(c, "min_products must be positive")
		}
	case TypeCategoryCombo:
		if err := c.validateCategoryCombo(); err != nil {
			return err
		}
	default:
		return definitionErr(c, "unsupported combo type %q", c.Type)
	}

	switch c.PricingMode {
	case PricingFixedPrice:
		if c.ComboPrice.IsNegative() {
			return definitionErr(c, "combo_price must not be negative")
		}
	case PricingFixedDiscount, PricingPercentageDiscount:
		if !c.DiscountValue.IsPositive() {
			return definitionErr(c, "discount_value must be positive")
		}
		if c.PricingMode == PricingPercentageDiscount && c.DiscountValue.GreaterThan(hundred) {
			return definitionErr(c, "discount_value must not exceed 100 percent")
		}
	default:
		return definitionErr(c, "unsupported pricing mode %q", c.PricingMode)
	}

	if c.MaxDiscountAmount.IsNegative() {
		return definitionErr(c, "max_discount_amount must not be negative")
	}
	return nil
}

func (c *Combo) validateFixedProducts() error {
	if len(c.RequiredProducts) == 0 {
		return definitionErr(c, "required_products is empty")
	}
	seen := make(map[string]struct{}, len(c.RequiredProducts))
	for _, rp := range c.RequiredProducts {
		if rp.ProductID == "" {
			return definitionErr(c, "required product without product_id")
		}
		if rp.QuantityPerSet <= 0 {
			return definitionErr(c, "product %s: quantity_per_set must be positive", rp.ProductID)
		}
		key := rp.ProductID + "\x00" + rp.VariantKey
		if _, dup := seen[key]; dup {
			return definitionErr(c, "product %s listed twice", rp.ProductID)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *Combo) validateCategoryCombo() error {
	if len(c.ApplicableCategories) == 0 {
		return definitionErr(c, "applicable_categories is empty")
	}
	if c.MinItemsFromCategory <= 0 {
		return definitionErr(c, "min_items_from_category must be positive")
	}
	seen := make(map[string]struct{}, len(c.ApplicableCategories))
	for _, cat := range c.ApplicableCategories {
		if cat == "" {
			return definitionErr(c, "empty category id")
		}
		if _, dup := seen[cat]; dup {
			return definitionErr(c, "category %s listed twice", cat)
		}
		seen[cat] = struct{}{}
	}
	return nil
}
