package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-combos/internal/domain/order"
)

func decodeOrderRequest(d *jx.Decoder) (order.PlaceOrderRequest, error) {
	var req order.PlaceOrderRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var item order.OrderItem
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "productId":
						item.ProductID, err = decodeOptStr(d)
					case "quantity":
						item.Quantity, err = d.Int()
					case "variant":
						item.Variant, err = decodeOptStr(d)
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return errors.Wrapf(err, "item %d", len(req.Items))
				}
				req.Items = append(req.Items, item)
				return nil
			})
		case "couponCode":
			req.CouponCode, err = decodeOptStr(d)
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

// PlaceOrder decodes the order request, delegates to the order service, and
// maps the result (or error) to the response.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := decodeOrderRequest(d)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	result, err := h.orders.PlaceOrder(ctx, req)
	if err != nil {
		if status, ok := orderErrorStatus(err); ok {
			writeError(w, status, err.Error())
			return
		}
		internalError(w, r, errors.Wrap(err, "place order"))
		return
	}

	o := result.Order
	if key, ok := APIKeyFromContext(ctx); ok {
		zctx.From(ctx).Info("Order placed",
			zap.String("order_id", o.ID),
			zap.String("api_key", key.Name),
			zap.Strings("combo_ids", o.ComboIDs),
		)
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, item := range o.Items {
						e.Obj(func(e *jx.Encoder) {
							e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
							if item.Variant != "" {
								e.Field("variant", func(e *jx.Encoder) { e.Str(item.Variant) })
							}
							e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
						})
					}
				})
			})
			e.Field("products", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, p := range result.Products {
						h.encodeProduct(e, p)
					}
				})
			})
			e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, o.Subtotal) })
			e.Field("comboDiscount", func(e *jx.Encoder) { encodeDecimal(e, o.ComboDiscount) })
			e.Field("couponDiscount", func(e *jx.Encoder) { encodeDecimal(e, o.CouponDiscount) })
			e.Field("discounts", func(e *jx.Encoder) { encodeDecimal(e, o.Discounts) })
			e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, o.Total) })
			if o.CouponCode != "" {
				e.Field("couponCode", func(e *jx.Encoder) { e.Str(o.CouponCode) })
			}
			e.Field("comboIds", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, id := range o.ComboIDs {
						e.Str(id)
					}
				})
			})
		})
	})
}

// orderErrorStatus maps order validation errors to HTTP status codes.
func orderErrorStatus(err error) (int, bool) {
	var (
		iqErr  *order.InvalidQuantityError
		pnfErr *order.ProductNotFoundError
		uvErr  *order.UnknownVariantError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, true
	case errors.As(err, &iqErr), errors.As(err, &pnfErr), errors.As(err, &uvErr):
		return http.StatusUnprocessableEntity, true
	default:
		return 0, false
	}
}
