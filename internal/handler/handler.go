// Package handler serves the kart HTTP API: the product catalog, cart
// pricing previews for combos and coupons, and order placement.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/kart-combos/internal/domain/auth"
	"github.com/xenking/kart-combos/internal/domain/coupon"
	"github.com/xenking/kart-combos/internal/domain/order"
	"github.com/xenking/kart-combos/internal/domain/pricing"
	"github.com/xenking/kart-combos/internal/domain/product"
	"github.com/xenking/kart-combos/internal/domain/promo"
)

// BadgeFeature is the promo feature name of the combo badge hint.
const BadgeFeature = "combo_badge"

// SessionHeader carries the client session used to throttle the badge hint.
const SessionHeader = "X-Session-ID"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Quoter prices a cart.
type Quoter interface {
	Quote(ctx context.Context, req pricing.Request) (*pricing.Quote, error)
}

// OrderPlacer places orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

// Handler serves the API routes, delegating business logic to the domain
// services.
type Handler struct {
	products     product.Repository
	pricing      Quoter
	coupons      coupon.Validator
	orders       OrderPlacer
	badges       *promo.Tracker
	imageBaseURL string
}

// New constructs a Handler. badges may be nil, in which case the badge hint
// is shown whenever a combo matches.
func New(
	cfg Config,
	products product.Repository,
	quoter Quoter,
	coupons coupon.Validator,
	orders OrderPlacer,
	badges *promo.Tracker,
) *Handler {
	return &Handler{
		products:     products,
		pricing:      quoter,
		coupons:      coupons,
		orders:       orders,
		badges:       badges,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts the API routes on mux. Order placement requires an API key
// with the create_order scope.
func (h *Handler) Register(mux *http.ServeMux, sec *SecurityHandler) {
	mux.HandleFunc("GET /api/product", h.ListProducts)
	mux.HandleFunc("GET /api/product/{productId}", h.GetProduct)
	mux.HandleFunc("POST /api/combos/validate", h.ValidateCombos)
	mux.HandleFunc("POST /api/coupons/validate", h.ValidateCoupon)
	mux.Handle("POST /api/order", sec.Require(auth.ScopeCreateOrder, http.HandlerFunc(h.PlaceOrder)))
}
