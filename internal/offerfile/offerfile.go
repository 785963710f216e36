// Package offerfile reads combo offer definitions from YAML documents,
// optionally gzip-compressed.
//
//	offers:
//	  - id: bundle1
//	    title: Vase and bowl
//	    type: fixed_products
//	    pricing_mode: fixed_price
//	    combo_price: "700"
//	    required_products:
//	      - product_id: A
//	        quantity_per_set: 1
package offerfile

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

type document struct {
	Offers []offerYAML `yaml:"offers"`
}

// offerYAML is one offer entry. per_user_limit is carried through to the
// store but not enforced anywhere.
type offerYAML struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Badge       string `yaml:"badge"`
	Type        string `yaml:"type"`
	PricingMode string `yaml:"pricing_mode"`

	ComboPrice        string `yaml:"combo_price"`
	DiscountValue     string `yaml:"discount_value"`
	MaxDiscountAmount string `yaml:"max_discount_amount"`

	AllowStackingWithCoupon bool `yaml:"allow_stacking_with_coupon"`
	UsageLimit              int  `yaml:"usage_limit"`
	PerUserLimit            int  `yaml:"per_user_limit"`

	ValidFrom  *time.Time `yaml:"valid_from"`
	ValidUntil *time.Time `yaml:"valid_until"`

	RequiredProducts []requiredYAML `yaml:"required_products"`

	MinProducts int       `yaml:"min_products"`
	Scope       scopeYAML `yaml:"scope"`

	ApplicableCategories []string `yaml:"applicable_categories"`
	MinItemsFromCategory int      `yaml:"min_items_from_category"`

	Conditions any `yaml:"conditions"`
}

type requiredYAML struct {
	ProductID      string `yaml:"product_id"`
	Variant        string `yaml:"variant"`
	QuantityPerSet int    `yaml:"quantity_per_set"`
}

type scopeYAML struct {
	TenantID   string `yaml:"tenant_id"`
	CategoryID string `yaml:"category_id"`
}

// Decode parses a YAML offer document and validates every offer in it.
func Decode(r io.Reader) ([]offer.Combo, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode yaml")
	}

	out := make([]offer.Combo, 0, len(doc.Offers))
	for i, o := range doc.Offers {
		c, err := o.combo()
		if err != nil {
			return nil, errors.Wrapf(err, "offer #%d (%s)", i+1, o.ID)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Load reads the offer file at path. Files ending in .gz are decompressed.
func Load(path string) ([]offer.Combo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	offers, err := Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return offers, nil
}

func (o offerYAML) combo() (offer.Combo, error) {
	c := offer.Combo{
		ID:                      strings.TrimSpace(o.ID),
		Title:                   o.Title,
		Badge:                   o.Badge,
		Type:                    offer.Type(o.Type),
		PricingMode:             offer.PricingMode(o.PricingMode),
		AllowStackingWithCoupon: o.AllowStackingWithCoupon,
		UsageLimit:              o.UsageLimit,
		PerUserLimit:            o.PerUserLimit,
		ValidFrom:               o.ValidFrom,
		ValidUntil:              o.ValidUntil,
		MinProducts:             o.MinProducts,
		Scope:                   offer.Scope{TenantID: o.Scope.TenantID, CategoryID: o.Scope.CategoryID},
		ApplicableCategories:    o.ApplicableCategories,
		MinItemsFromCategory:    o.MinItemsFromCategory,
	}

	var err error
	if c.ComboPrice, err = parseAmount("combo_price", o.ComboPrice); err != nil {
		return c, err
	}
	if c.DiscountValue, err = parseAmount("discount_value", o.DiscountValue); err != nil {
		return c, err
	}
	if c.MaxDiscountAmount, err = parseAmount("max_discount_amount", o.MaxDiscountAmount); err != nil {
		return c, err
	}

	for _, rp := range o.RequiredProducts {
		c.RequiredProducts = append(c.RequiredProducts, offer.RequiredProduct{
			ProductID:      rp.ProductID,
			VariantKey:     rp.Variant,
			QuantityPerSet: rp.QuantityPerSet,
		})
	}

	if o.Conditions != nil {
		raw, err := json.Marshal(o.Conditions)
		if err != nil {
			return c, errors.Wrap(err, "encode conditions")
		}
		c.Conditions = raw
	}
	return c, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s", field)
	}
	return d, nil
}
