package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-combos/internal/domain/combo"
	"github.com/xenking/kart-combos/internal/domain/coupon"
	"github.com/xenking/kart-combos/internal/domain/pricing"
	"github.com/xenking/kart-combos/internal/domain/product"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// UnknownVariantError indicates a line picks a variant the product does not
// offer.
type UnknownVariantError struct {
	ProductID string
	Variant   string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("product %s has no variant %q", e.ProductID, e.Variant)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items      []OrderItem
	CouponCode string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
	Quote    *pricing.Quote
}

// Quoter prices a cart.
type Quoter interface {
	Quote(ctx context.Context, req pricing.Request) (*pricing.Quote, error)
}

// ComboUsage records that combo offers were applied to an order.
type ComboUsage interface {
	IncrementUses(ctx context.Context, ids []string) error
}

// Service encapsulates order placement business logic.
type Service struct {
	products product.Repository
	pricing  Quoter
	coupons  coupon.Validator
	orders   Repository
	usage    ComboUsage
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	quoter Quoter,
	coupons coupon.Validator,
	orders Repository,
	usage ComboUsage,
) *Service {
	return &Service{
		products: products,
		pricing:  quoter,
		coupons:  coupons,
		orders:   orders,
		usage:    usage,
	}
}

// PlaceOrder validates items, fetches products in a single batch, prices the
// cart with catalog prices, persists the order and records coupon and combo
// usage for whatever contributed to the discount.
//
// Pricing problems never fail the order: an unusable coupon or an
// unavailable offer catalog only forfeits the discount.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and collect product IDs.
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Verify every requested product was found and build priced lines.
	products := make([]product.Product, 0, len(req.Items))
	lines := make([]combo.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if !p.AcceptsVariant(item.Variant) {
			return nil, &UnknownVariantError{ProductID: p.ID, Variant: item.Variant}
		}
		products = append(products, p)
		lines = append(lines, combo.LineItem{
			ProductID:  p.ID,
			VariantKey: item.Variant,
			Quantity:   item.Quantity,
			UnitPrice:  p.Price,
			CategoryID: p.Category,
			TenantID:   p.TenantID,
		})
	}

	quote, err := s.pricing.Quote(ctx, pricing.Request{Items: lines, CouponCode: req.CouponCode})
	if err != nil {
		return nil, errors.Wrap(err, "quote cart")
	}

	o := &Order{
		ID:             uuid.New().String(),
		Items:          req.Items,
		Subtotal:       quote.Subtotal.Round(2),
		ComboDiscount:  decimal.Zero,
		CouponDiscount: decimal.Zero,
		Discounts:      quote.CombinedDiscount.Round(2),
		Total:          quote.Total().Round(2),
		ComboIDs:       appliedCombos(quote),
	}
	if len(o.ComboIDs) > 0 {
		o.ComboDiscount = quote.ComboDiscount.Round(2)
	}
	if quote.CouponApplied {
		o.CouponCode = strings.TrimSpace(req.CouponCode)
		o.CouponDiscount = quote.CouponDiscount.Round(2)
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	lg := zctx.From(ctx)
	if quote.CouponApplied {
		if err := s.coupons.Redeem(ctx, req.CouponCode); err != nil {
			lg.Warn("Coupon redemption failed",
				zap.String("order_id", o.ID),
				zap.String("code", req.CouponCode),
				zap.Error(err),
			)
		}
	}
	if s.usage != nil && len(o.ComboIDs) > 0 {
		if err := s.usage.IncrementUses(ctx, o.ComboIDs); err != nil {
			lg.Warn("Combo usage update failed",
				zap.String("order_id", o.ID),
				zap.Strings("combos", o.ComboIDs),
				zap.Error(err),
			)
		}
	}

	return &PlaceOrderResult{
		Order:    o,
		Products: products,
		Quote:    quote,
	}, nil
}

// appliedCombos returns the combos that contribute to the combined
// discount. When a non-stackable combo lost to the coupon none do.
func appliedCombos(q *pricing.Quote) []string {
	if q.CouponApplied && !q.CanStackAll {
		return nil
	}
	return q.ComboIDs()
}
