package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

const (
	offerColumns = `id, title, badge, type, pricing_mode, combo_price, discount_value, max_discount_amount,
		allow_stacking_with_coupon, usage_limit, per_user_limit, valid_from, valid_until,
		required_products, min_products, scope_tenant_id, scope_category_id,
		applicable_categories, min_items_from_category, conditions`

	listActiveOffersSQL = `SELECT ` + offerColumns + `,
			CASE WHEN usage_limit > 0 THEN GREATEST(usage_limit - uses, 0) END AS remaining_uses
		FROM combo_offers
		WHERE enabled = TRUE
			AND (valid_from IS NULL OR valid_from <= $1)
			AND (valid_until IS NULL OR valid_until >= $1)
		ORDER BY id`

	upsertOfferSQL = `INSERT INTO combo_offers (` + offerColumns + `, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, TRUE, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			badge = EXCLUDED.badge,
			type = EXCLUDED.type,
			pricing_mode = EXCLUDED.pricing_mode,
			combo_price = EXCLUDED.combo_price,
			discount_value = EXCLUDED.discount_value,
			max_discount_amount = EXCLUDED.max_discount_amount,
			allow_stacking_with_coupon = EXCLUDED.allow_stacking_with_coupon,
			usage_limit = EXCLUDED.usage_limit,
			per_user_limit = EXCLUDED.per_user_limit,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			required_products = EXCLUDED.required_products,
			min_products = EXCLUDED.min_products,
			scope_tenant_id = EXCLUDED.scope_tenant_id,
			scope_category_id = EXCLUDED.scope_category_id,
			applicable_categories = EXCLUDED.applicable_categories,
			min_items_from_category = EXCLUDED.min_items_from_category,
			conditions = EXCLUDED.conditions,
			enabled = TRUE,
			updated_at = now()`

	incrementOfferUsesSQL = `UPDATE combo_offers SET uses = uses + 1
		WHERE id = ANY($1) AND (usage_limit = 0 OR uses < usage_limit)`

	disableOfferSQL = `UPDATE combo_offers SET enabled = FALSE, updated_at = now() WHERE id = $1`
)

// requiredProductJSON is the JSONB layout of combo_offers.required_products.
type requiredProductJSON struct {
	ProductID      string `json:"product_id"`
	Variant        string `json:"variant,omitempty"`
	QuantityPerSet int    `json:"quantity_per_set"`
}

var _ offer.Catalog = (*OfferRepository)(nil)

// OfferRepository stores combo offers. It is the offer.Catalog the pricing
// service reads through the cache.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// ListActive returns enabled offers whose validity window contains now.
// RemainingUses is set for offers with a usage limit.
func (r *OfferRepository) ListActive(ctx context.Context, now time.Time) ([]offer.Combo, error) {
	rows, err := r.pool.Query(ctx, listActiveOffersSQL, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active offers")
	}
	offers, err := pgx.CollectRows(rows, scanOffer)
	if err != nil {
		return nil, errors.Wrap(err, "scan offers")
	}
	return offers, nil
}

// UpsertMany stores offers in one transaction. Existing offers are
// replaced and re-enabled; their usage counters are kept.
func (r *OfferRepository) UpsertMany(ctx context.Context, offers []offer.Combo) error {
	batch := &pgx.Batch{}
	for i := range offers {
		args, err := offerArgs(&offers[i])
		if err != nil {
			return err
		}
		batch.Queue(upsertOfferSQL, args...)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert offers")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// IncrementUses records one use of each listed offer. Offers whose usage
// limit is already reached are left unchanged.
func (r *OfferRepository) IncrementUses(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx, incrementOfferUsesSQL, ids); err != nil {
		return errors.Wrap(err, "increment offer uses")
	}
	return nil
}

// Disable hides an offer from ListActive.
func (r *OfferRepository) Disable(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, disableOfferSQL, id); err != nil {
		return errors.Wrapf(err, "disable offer %q", id)
	}
	return nil
}

func offerArgs(c *offer.Combo) ([]any, error) {
	required := make([]requiredProductJSON, 0, len(c.RequiredProducts))
	for _, rp := range c.RequiredProducts {
		required = append(required, requiredProductJSON{
			ProductID:      rp.ProductID,
			Variant:        rp.VariantKey,
			QuantityPerSet: rp.QuantityPerSet,
		})
	}
	requiredJSON, err := json.Marshal(required)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal required products of %q", c.ID)
	}

	categories := c.ApplicableCategories
	if categories == nil {
		categories = []string{}
	}
	var conditions []byte
	if len(c.Conditions) > 0 {
		conditions = c.Conditions
	}

	return []any{
		c.ID, c.Title, c.Badge, string(c.Type), string(c.PricingMode),
		c.ComboPrice, c.DiscountValue, c.MaxDiscountAmount,
		c.AllowStackingWithCoupon, c.UsageLimit, c.PerUserLimit, c.ValidFrom, c.ValidUntil,
		requiredJSON, c.MinProducts, c.Scope.TenantID, c.Scope.CategoryID,
		categories, c.MinItemsFromCategory, conditions,
	}, nil
}

func scanOffer(row pgx.CollectableRow) (offer.Combo, error) {
	var (
		c             offer.Combo
		typ, mode     string
		usageLimit    int32
		perUserLimit  int32
		requiredJSON  []byte
		minProducts   int32
		minFromCat    int32
		conditions    []byte
		remainingUses *int32
	)
	err := row.Scan(
		&c.ID, &c.Title, &c.Badge, &typ, &mode,
		&c.ComboPrice, &c.DiscountValue, &c.MaxDiscountAmount,
		&c.AllowStackingWithCoupon, &usageLimit, &perUserLimit, &c.ValidFrom, &c.ValidUntil,
		&requiredJSON, &minProducts, &c.Scope.TenantID, &c.Scope.CategoryID,
		&c.ApplicableCategories, &minFromCat, &conditions,
		&remainingUses,
	)
	if err != nil {
		return c, err
	}

	c.Type = offer.Type(typ)
	c.PricingMode = offer.PricingMode(mode)
	c.UsageLimit = int(usageLimit)
	c.PerUserLimit = int(perUserLimit)
	c.MinProducts = int(minProducts)
	c.MinItemsFromCategory = int(minFromCat)
	if len(conditions) > 0 {
		c.Conditions = json.RawMessage(conditions)
	}
	if remainingUses != nil {
		n := int(*remainingUses)
		c.RemainingUses = &n
	}

	var required []requiredProductJSON
	if err := json.Unmarshal(requiredJSON, &required); err != nil {
		return c, errors.Wrapf(err, "decode required products of %q", c.ID)
	}
	for _, rp := range required {
		c.RequiredProducts = append(c.RequiredProducts, offer.RequiredProduct{
			ProductID:      rp.ProductID,
			VariantKey:     rp.Variant,
			QuantityPerSet: rp.QuantityPerSet,
		})
	}
	return c, nil
}
