package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-combos/internal/domain/combo"
	"github.com/xenking/kart-combos/internal/domain/coupon"
	"github.com/xenking/kart-combos/internal/domain/offer"
	"github.com/xenking/kart-combos/internal/domain/pricing"
)

// cartRequest is the body shared by the pricing preview endpoints.
type cartRequest struct {
	Items       []cartLine
	CartTotal   decimal.Decimal
	HasTotal    bool
	CouponCode  string
	CartVersion string
}

func decodeCartRequest(d *jx.Decoder) (cartRequest, error) {
	var req cartRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cartItems":
			req.Items, err = decodeCartLines(d)
		case "cartTotal":
			req.CartTotal, err = decodeDecimal(d)
			req.HasTotal = true
		case "couponCode", "code":
			req.CouponCode, err = decodeOptStr(d)
		case "cartVersion":
			req.CartVersion, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return req, err
}

func (req cartRequest) lineItems() []combo.LineItem {
	items := make([]combo.LineItem, len(req.Items))
	for i, l := range req.Items {
		items[i] = combo.LineItem{
			ProductID:  l.ProductID,
			VariantKey: l.Variant,
			Quantity:   l.Quantity,
			UnitPrice:  l.Price,
			CategoryID: l.CategoryID,
			TenantID:   l.TenantID,
		}
	}
	return items
}

// ValidateCombos previews the combo and coupon discounts of a cart. Prices
// come from the request; the cart subtotal is recomputed from the lines and
// cartTotal is only compared against it.
func (h *Handler) ValidateCombos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := decodeCartRequest(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	q, err := h.pricing.Quote(ctx, pricing.Request{
		Items:       req.lineItems(),
		CouponCode:  req.CouponCode,
		CartVersion: req.CartVersion,
	})
	if err != nil {
		internalError(w, r, errors.Wrap(err, "quote"))
		return
	}
	if req.HasTotal && !req.CartTotal.Equal(q.Subtotal) {
		zctx.From(ctx).Debug("Cart total differs from line subtotal",
			zap.String("cart_total", req.CartTotal.String()),
			zap.String("subtotal", q.Subtotal.String()),
		)
	}

	showBadge := len(q.MatchResults) > 0
	if session := r.Header.Get(SessionHeader); showBadge && session != "" && h.badges != nil {
		showBadge = h.badges.ShouldShow(BadgeFeature, session)
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("combos", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, m := range q.MatchResults {
						encodeMatch(e, m)
					}
				})
			})
			if q.BestCombo != nil {
				e.Field("bestCombo", func(e *jx.Encoder) { encodeMatch(e, *q.BestCombo) })
			}
			if req.CouponCode != "" {
				e.Field("couponDiscount", func(e *jx.Encoder) { encodeDecimal(e, q.CouponDiscount) })
				e.Field("couponApplied", func(e *jx.Encoder) { e.Bool(q.CouponApplied) })
				if q.CouponError != nil {
					msg := couponMessage(q.CouponError)
					if msg == "" {
						msg = couponUnverified
					}
					e.Field("couponMessage", func(e *jx.Encoder) { e.Str(msg) })
				}
			}
			e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, q.Subtotal) })
			e.Field("comboDiscount", func(e *jx.Encoder) { encodeDecimal(e, q.ComboDiscount) })
			e.Field("combinedDiscount", func(e *jx.Encoder) { encodeDecimal(e, q.CombinedDiscount) })
			e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, q.Total()) })
			e.Field("canStackAll", func(e *jx.Encoder) { e.Bool(q.CanStackAll) })
			e.Field("leftovers", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, l := range q.Leftovers {
						e.Obj(func(e *jx.Encoder) {
							e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
							if l.VariantKey != "" {
								e.Field("variant", func(e *jx.Encoder) { e.Str(l.VariantKey) })
							}
							e.Field("quantity", func(e *jx.Encoder) { e.Int(l.QuantityRemaining) })
						})
					}
				})
			})
			if q.CartVersion != "" {
				e.Field("cartVersion", func(e *jx.Encoder) { e.Str(q.CartVersion) })
			}
			if q.OffersUnavailable {
				e.Field("offersUnavailable", func(e *jx.Encoder) { e.Bool(true) })
			}
			e.Field("showBadge", func(e *jx.Encoder) { e.Bool(showBadge) })
		})
	})
}

func encodeMatch(e *jx.Encoder, m combo.MatchResult) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(m.ComboID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(m.Title) })
		e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, m.TotalDiscount) })
		e.Field("sets", func(e *jx.Encoder) { e.Int(m.SetsSatisfied) })
		e.Field("discountPerSet", func(e *jx.Encoder) { encodeDecimal(e, m.DiscountPerSet) })
		e.Field("pricingMode", func(e *jx.Encoder) { e.Str(string(m.PricingMode)) })
		if m.PricingMode == offer.PricingFixedPrice {
			e.Field("comboPrice", func(e *jx.Encoder) { encodeDecimal(e, m.ComboPrice) })
		}
		e.Field("badge", func(e *jx.Encoder) { e.Str(m.Badge) })
		e.Field("allowAdminOffersOnTop", func(e *jx.Encoder) { e.Bool(m.AllowStackingWithCoupon) })
		e.Field("matchedProducts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range m.MatchedProducts {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(p.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(p.Quantity) })
					})
				}
			})
		})
		e.Field("matchedLineItems", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range m.MatchedLineItems {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
						if l.VariantKey != "" {
							e.Field("variant", func(e *jx.Encoder) { e.Str(l.VariantKey) })
						}
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.QuantityAllocated) })
					})
				}
			})
		})
	})
}

// ValidateCoupon reports whether a coupon applies to the cart and the
// discount it would give on its own. Rejections are answered with 200 and
// valid=false.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := decodeCartRequest(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.CouponCode == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}

	items := make([]coupon.Item, 0, len(req.Items))
	for _, l := range req.Items {
		if l.Quantity <= 0 {
			continue
		}
		items = append(items, coupon.Item{ProductID: l.ProductID, Price: l.Price, Quantity: l.Quantity})
	}

	valid := true
	amount := decimal.Zero
	var message string
	discount, err := h.coupons.Validate(ctx, req.CouponCode, items)
	if err != nil {
		valid = false
		message = couponMessage(err)
		if message == "" {
			zctx.From(ctx).Warn("Coupon validation failed", zap.String("code", req.CouponCode), zap.Error(err))
			message = couponUnverified
		}
	} else {
		amount = discount.Amount
		message = discount.Description
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("valid", func(e *jx.Encoder) { e.Bool(valid) })
			e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, amount) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

const couponUnverified = "coupon could not be verified"

// couponMessage returns the customer facing reason for a coupon rejection,
// or "" when err is not a known rejection.
func couponMessage(err error) string {
	for _, known := range []error{
		coupon.ErrInvalidCoupon,
		coupon.ErrCouponExpired,
		coupon.ErrCouponUsageLimitReached,
		coupon.ErrMinOrderAmount,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ""
}
