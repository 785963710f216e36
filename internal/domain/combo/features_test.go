package combo_test

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-combos/internal/domain/combo"
	"github.com/xenking/kart-combos/internal/domain/coupon"
	"github.com/xenking/kart-combos/internal/domain/offer"
)

type comboTestContext struct {
	now     time.Time
	items   []combo.LineItem
	offers  []offer.Combo
	coupon  *coupon.Rule
	summary combo.Summary
}

func (c *comboTestContext) reset() {
	c.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.items = nil
	c.offers = nil
	c.coupon = nil
	c.summary = combo.Summary{}
}

func (c *comboTestContext) aCart(table *godog.Table) error {
	for _, row := range table.Rows[1:] {
		qty, err := strconv.Atoi(row.Cells[2].Value)
		if err != nil {
			return err
		}
		price, err := decimal.NewFromString(row.Cells[3].Value)
		if err != nil {
			return err
		}
		c.items = append(c.items, combo.LineItem{
			ProductID:  row.Cells[0].Value,
			VariantKey: row.Cells[1].Value,
			Quantity:   qty,
			UnitPrice:  price,
			CategoryID: row.Cells[4].Value,
		})
	}
	return nil
}

func (c *comboTestContext) aFixedPriceComboRequiring(id string, price int, table *godog.Table) error {
	o := offer.Combo{
		ID:          id,
		Title:       id,
		Type:        offer.TypeFixedProducts,
		PricingMode: offer.PricingFixedPrice,
		ComboPrice:  decimal.NewFromInt(int64(price)),
	}
	for _, row := range table.Rows[1:] {
		qty, err := strconv.Atoi(row.Cells[1].Value)
		if err != nil {
			return err
		}
		o.RequiredProducts = append(o.RequiredProducts, offer.RequiredProduct{ProductID: row.Cells[0].Value, QuantityPerSet: qty})
	}
	c.offers = append(c.offers, o)
	return nil
}

func (c *comboTestContext) anAnyNCombo(n int, id, category string, percent int) error {
	c.offers = append(c.offers, offer.Combo{
		ID:            id,
		Title:         id,
		Type:          offer.TypeAnyNProducts,
		PricingMode:   offer.PricingPercentageDiscount,
		DiscountValue: decimal.NewFromInt(int64(percent)),
		MinProducts:   n,
		Scope:         offer.Scope{CategoryID: category},
	})
	return nil
}

func (c *comboTestContext) aComboTakingOff(id string, amount int, product, stacking string) error {
	c.offers = append(c.offers, offer.Combo{
		ID:                      id,
		Title:                   id,
		Type:                    offer.TypeFixedProducts,
		PricingMode:             offer.PricingFixedDiscount,
		DiscountValue:           decimal.NewFromInt(int64(amount)),
		AllowStackingWithCoupon: stacking == "allows",
		RequiredProducts:        []offer.RequiredProduct{{ProductID: product, QuantityPerSet: 1}},
	})
	return nil
}

func (c *comboTestContext) theComboEnded(id string, minutes int) error {
	for i := range c.offers {
		if c.offers[i].ID == id {
			until := c.now.Add(-time.Duration(minutes) * time.Minute)
			c.offers[i].ValidUntil = &until
			return nil
		}
	}
	return fmt.Errorf("unknown combo %q", id)
}

func (c *comboTestContext) aFixedCoupon(code string, amount int) error {
	c.coupon = &coupon.Rule{Code: code, DiscountType: coupon.DiscountFixed, Value: decimal.NewFromInt(int64(amount))}
	return nil
}

func (c *comboTestContext) iComputeTheDiscountSummary() error {
	c.summary = combo.Compute(combo.Input{Items: c.items, Offers: c.offers, Coupon: c.coupon, Now: c.now})
	return nil
}

func (c *comboTestContext) result(id string) (*combo.MatchResult, error) {
	for i := range c.summary.MatchResults {
		if c.summary.MatchResults[i].ComboID == id {
			return &c.summary.MatchResults[i], nil
		}
	}
	return nil, fmt.Errorf("combo %q did not match", id)
}

func (c *comboTestContext) comboIsSatisfied(id string, sets int) error {
	r, err := c.result(id)
	if err != nil {
		return err
	}
	if r.SetsSatisfied != sets {
		return fmt.Errorf("expected %d sets, got %d", sets, r.SetsSatisfied)
	}
	return nil
}

func (c *comboTestContext) comboAllocates(id string, qty int, product string) error {
	r, err := c.result(id)
	if err != nil {
		return err
	}
	got := 0
	for _, m := range r.MatchedLineItems {
		if m.ProductID == product {
			got += m.QuantityAllocated
		}
	}
	if got != qty {
		return fmt.Errorf("expected %d of %s allocated, got %d", qty, product, got)
	}
	return nil
}

func (c *comboTestContext) comboDiscounts(id, amount string) error {
	r, err := c.result(id)
	if err != nil {
		return err
	}
	return equalAmount("combo discount", r.TotalDiscount, amount)
}

func (c *comboTestContext) unitsAreLeftOver(qty int, product string) error {
	for _, l := range c.summary.Leftovers {
		if l.ProductID == product {
			if l.QuantityRemaining != qty {
				return fmt.Errorf("expected %d of %s left over, got %d", qty, product, l.QuantityRemaining)
			}
			return nil
		}
	}
	return fmt.Errorf("no leftover entry for %s", product)
}

func (c *comboTestContext) theCouponDiscountIs(amount string) error {
	return equalAmount("coupon discount", c.summary.CouponDiscount, amount)
}

func (c *comboTestContext) theCombinedDiscountIs(amount string) error {
	return equalAmount("combined discount", c.summary.CombinedDiscount, amount)
}

func (c *comboTestContext) noComboMatches() error {
	if n := len(c.summary.MatchResults); n != 0 {
		return fmt.Errorf("expected no matches, got %d", n)
	}
	return nil
}

func equalAmount(what string, got decimal.Decimal, want string) error {
	w, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !got.Equal(w) {
		return fmt.Errorf("expected %s %s, got %s", what, w, got)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &comboTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^a cart:$`, tc.aCart)
	ctx.Step(`^a fixed-price combo "([^"]*)" at (\d+) requiring:$`, tc.aFixedPriceComboRequiring)
	ctx.Step(`^an any-(\d+) combo "([^"]*)" over category "([^"]*)" with (\d+)% off$`, tc.anAnyNCombo)
	ctx.Step(`^a combo "([^"]*)" taking (\d+) off each "([^"]*)" that (allows|disallows) coupon stacking$`, tc.aComboTakingOff)
	ctx.Step(`^the combo "([^"]*)" ended (\d+) minutes ago$`, tc.theComboEnded)
	ctx.Step(`^a fixed coupon "([^"]*)" worth (\d+)$`, tc.aFixedCoupon)

	ctx.Step(`^I compute the discount summary$`, tc.iComputeTheDiscountSummary)

	ctx.Step(`^combo "([^"]*)" is satisfied (\d+) times?$`, tc.comboIsSatisfied)
	ctx.Step(`^combo "([^"]*)" allocates (\d+) of "([^"]*)"$`, tc.comboAllocates)
	ctx.Step(`^combo "([^"]*)" discounts (\d+(?:\.\d+)?)$`, tc.comboDiscounts)
	ctx.Step(`^(\d+) units? of "([^"]*)" (?:is|are) left over$`, tc.unitsAreLeftOver)
	ctx.Step(`^the coupon discount is (\d+(?:\.\d+)?)$`, tc.theCouponDiscountIs)
	ctx.Step(`^the combined discount is (\d+(?:\.\d+)?)$`, tc.theCombinedDiscountIs)
	ctx.Step(`^no combo matches$`, tc.noComboMatches)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
