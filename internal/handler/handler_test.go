package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-combos/internal/domain/auth"
	"github.com/xenking/kart-combos/internal/domain/coupon"
	"github.com/xenking/kart-combos/internal/domain/offer"
	"github.com/xenking/kart-combos/internal/domain/order"
	"github.com/xenking/kart-combos/internal/domain/pricing"
	"github.com/xenking/kart-combos/internal/domain/product"
	"github.com/xenking/kart-combos/internal/domain/promo"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	listErr  error
	getErr   error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.listErr
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		for _, p := range m.products {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

type mockCatalog struct {
	offers []offer.Combo
}

func (m *mockCatalog) ListActive(_ context.Context, _ time.Time) ([]offer.Combo, error) {
	return m.offers, nil
}

type mockCouponValidator struct {
	rule *coupon.Rule
	err  error
}

func (m *mockCouponValidator) Lookup(_ context.Context, _ string) (*coupon.Rule, error) {
	return m.rule, m.err
}

func (m *mockCouponValidator) Validate(_ context.Context, _ string, items []coupon.Item) (*coupon.Discount, error) {
	if m.err != nil {
		return nil, m.err
	}
	d, err := coupon.Apply(m.rule, items)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *mockCouponValidator) Redeem(_ context.Context, _ string) error { return nil }

type mockOrderPlacer struct {
	result *order.PlaceOrderResult
	err    error
	got    order.PlaceOrderRequest
}

func (m *mockOrderPlacer) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error) {
	m.got = req
	return m.result, m.err
}

type mockAPIKeyRepo struct {
	info *auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.info == nil || m.info.KeyHash != hash {
		return nil, auth.ErrNotFound
	}
	return m.info, nil
}

// --- Helpers ---

var (
	fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pepper   = []byte("pepper")
)

func bundle() offer.Combo {
	return offer.Combo{
		ID:          "bundle1",
		Title:       "A + B",
		Badge:       "Save",
		Type:        offer.TypeFixedProducts,
		PricingMode: offer.PricingFixedPrice,
		ComboPrice:  decimal.NewFromInt(700),
		RequiredProducts: []offer.RequiredProduct{
			{ProductID: "A", QuantityPerSet: 1},
			{ProductID: "B", QuantityPerSet: 1},
		},
	}
}

type testEnv struct {
	mux     *http.ServeMux
	orders  *mockOrderPlacer
	apikeys *mockAPIKeyRepo
}

type envOption func(*envConfig)

type envConfig struct {
	products []product.Product
	offers   []offer.Combo
	coupons  *mockCouponValidator
	orders   *mockOrderPlacer
	apikeys  *mockAPIKeyRepo
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{
		offers:  []offer.Combo{bundle()},
		coupons: &mockCouponValidator{},
		orders:  &mockOrderPlacer{},
		apikeys: &mockAPIKeyRepo{},
	}
	for _, o := range opts {
		o(&cfg)
	}

	quoter, err := pricing.NewService(&mockCatalog{offers: cfg.offers}, cfg.coupons, pricing.Options{
		Now: func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	badges := promo.NewTracker(promo.ClockFunc(func() time.Time { return fixedNow }),
		promo.Feature{Name: BadgeFeature, Window: 15 * time.Minute},
	)
	h := New(Config{ImageBaseURL: "https://cdn.test/"},
		&mockProductRepo{products: cfg.products}, quoter, cfg.coupons, cfg.orders, badges)

	mux := http.NewServeMux()
	h.Register(mux, NewSecurityHandler(cfg.apikeys, pepper))
	return &testEnv{mux: mux, orders: cfg.orders, apikeys: cfg.apikeys}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const cartJSON = `{
	"cartItems": [
		{"product": {"id": "A", "categoryId": "food"}, "price": 500, "quantity": 2},
		{"product": {"id": "B", "tenantId": null}, "price": "300", "quantity": 1}
	],
	"cartTotal": 1300,
	"cartVersion": 7
}`

// --- Tests ---

func TestListProducts(t *testing.T) {
	env := newTestEnv(t, func(c *envConfig) {
		c.products = []product.Product{
			{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(10), Category: "test",
				Image: product.Image{Thumbnail: "thumb.jpg"}},
			{ID: "p2", Name: "Gadget", Price: decimal.RequireFromString("20.5"), Category: "test",
				Variants: []string{"red", "blue"}},
		}
	})

	rec := env.do(t, http.MethodGet, "/api/product", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	type image struct {
		Thumbnail string `json:"thumbnail"`
	}
	type productBody struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		Price    float64  `json:"price"`
		Variants []string `json:"variants"`
		Image    image    `json:"image"`
	}
	got := decodeBody[[]productBody](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "https://cdn.test/thumb.jpg", got[0].Image.Thumbnail)
	assert.Equal(t, "Gadget", got[1].Name)
	assert.Empty(t, got[0].Variants)
	assert.Equal(t, []string{"red", "blue"}, got[1].Variants)
	assert.InDelta(t, 20.5, got[1].Price, 0.001)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t, func(c *envConfig) {
		c.products = []product.Product{{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(10)}}
	})

	t.Run("found", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/product/p1", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"Widget"`)
	})

	t.Run("not found", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/product/missing", "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Equal(t, 404, body.Code)
		assert.Equal(t, "product not found", body.Message)
	})
}

type comboBody struct {
	ID             string  `json:"id"`
	Discount       float64 `json:"discount"`
	Sets           int     `json:"sets"`
	DiscountPerSet float64 `json:"discountPerSet"`
	PricingMode    string  `json:"pricingMode"`
	ComboPrice     float64 `json:"comboPrice"`
	AllowOnTop     bool    `json:"allowAdminOffersOnTop"`
	Matched        []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"matchedProducts"`
}

type combosResponse struct {
	Combos           []comboBody `json:"combos"`
	BestCombo        *comboBody  `json:"bestCombo"`
	CouponDiscount   *float64    `json:"couponDiscount"`
	CouponMessage    string      `json:"couponMessage"`
	CombinedDiscount float64     `json:"combinedDiscount"`
	Total            float64     `json:"total"`
	CanStackAll      bool        `json:"canStackAll"`
	Leftovers        []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"leftovers"`
	CartVersion string `json:"cartVersion"`
	ShowBadge   bool   `json:"showBadge"`
}

func TestValidateCombos(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/combos/validate", cartJSON, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[combosResponse](t, rec)
	require.Len(t, got.Combos, 1)
	c := got.Combos[0]
	assert.Equal(t, "bundle1", c.ID)
	assert.Equal(t, 1, c.Sets)
	assert.InDelta(t, 100, c.Discount, 0.001)
	assert.InDelta(t, 100, c.DiscountPerSet, 0.001)
	assert.Equal(t, "fixed_price", c.PricingMode)
	assert.InDelta(t, 700, c.ComboPrice, 0.001)
	assert.Len(t, c.Matched, 2)

	require.NotNil(t, got.BestCombo)
	assert.Equal(t, "bundle1", got.BestCombo.ID)
	assert.Nil(t, got.CouponDiscount)
	assert.InDelta(t, 100, got.CombinedDiscount, 0.001)
	assert.InDelta(t, 1200, got.Total, 0.001)
	assert.False(t, got.CanStackAll, "bundle1 does not stack with coupons")
	assert.Equal(t, "7", got.CartVersion)
	assert.True(t, got.ShowBadge)

	require.Len(t, got.Leftovers, 2)
	assert.Equal(t, "A", got.Leftovers[0].ProductID)
	assert.Equal(t, 1, got.Leftovers[0].Quantity)
	assert.Equal(t, 0, got.Leftovers[1].Quantity)
}

func TestValidateCombos_CouponBeatsCombo(t *testing.T) {
	env := newTestEnv(t, func(c *envConfig) {
		c.coupons = &mockCouponValidator{rule: &coupon.Rule{
			Code:         "TEN",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
		}}
	})

	body := `{"cartItems":[{"product":{"id":"A"},"price":500,"quantity":2},{"product":{"id":"B"},"price":300,"quantity":1}],"couponCode":"TEN"}`
	rec := env.do(t, http.MethodPost, "/api/combos/validate", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[combosResponse](t, rec)
	require.NotNil(t, got.CouponDiscount)
	assert.InDelta(t, 130, *got.CouponDiscount, 0.001)
	assert.InDelta(t, 130, got.CombinedDiscount, 0.001)
	assert.False(t, got.CanStackAll)
}

func TestValidateCombos_StackableBundleKeepsCoupon(t *testing.T) {
	stackable := bundle()
	stackable.AllowStackingWithCoupon = true
	env := newTestEnv(t, func(c *envConfig) {
		c.offers = []offer.Combo{stackable}
		c.coupons = &mockCouponValidator{rule: &coupon.Rule{
			Code:         "TEN",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
		}}
	})

	body := `{"cartItems":[{"product":{"id":"A"},"price":500,"quantity":2},{"product":{"id":"B"},"price":300,"quantity":1}],"couponCode":"TEN"}`
	rec := env.do(t, http.MethodPost, "/api/combos/validate", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[combosResponse](t, rec)
	assert.True(t, got.CanStackAll)
	require.NotNil(t, got.CouponDiscount)
	assert.InDelta(t, 130, *got.CouponDiscount, 0.001)
	assert.InDelta(t, 230, got.CombinedDiscount, 0.001)
	assert.InDelta(t, 1070, got.Total, 0.001)
}

func TestValidateCombos_CouponRejected(t *testing.T) {
	env := newTestEnv(t, func(c *envConfig) {
		c.coupons = &mockCouponValidator{err: coupon.ErrCouponExpired}
	})

	body := `{"cartItems":[{"product":{"id":"A"},"price":500,"quantity":1},{"product":{"id":"B"},"price":300,"quantity":1}],"couponCode":"OLD"}`
	rec := env.do(t, http.MethodPost, "/api/combos/validate", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[combosResponse](t, rec)
	require.NotNil(t, got.CouponDiscount)
	assert.Zero(t, *got.CouponDiscount)
	assert.Equal(t, "coupon expired", got.CouponMessage)
	assert.InDelta(t, 100, got.CombinedDiscount, 0.001)
}

func TestValidateCombos_BadgeShownOncePerWindow(t *testing.T) {
	env := newTestEnv(t)
	session := http.Header{SessionHeader: []string{"s1"}}

	first := decodeBody[combosResponse](t, env.do(t, http.MethodPost, "/api/combos/validate", cartJSON, session))
	second := decodeBody[combosResponse](t, env.do(t, http.MethodPost, "/api/combos/validate", cartJSON, session))
	other := decodeBody[combosResponse](t, env.do(t, http.MethodPost, "/api/combos/validate", cartJSON,
		http.Header{SessionHeader: []string{"s2"}}))

	assert.True(t, first.ShowBadge)
	assert.False(t, second.ShowBadge)
	assert.True(t, other.ShowBadge)
}

func TestValidateCombos_NoMatch(t *testing.T) {
	env := newTestEnv(t)

	body := `{"cartItems":[{"product":{"id":"A"},"price":500,"quantity":1}]}`
	rec := env.do(t, http.MethodPost, "/api/combos/validate", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[combosResponse](t, rec)
	assert.Empty(t, got.Combos)
	assert.Nil(t, got.BestCombo)
	assert.False(t, got.ShowBadge)
	assert.InDelta(t, 500, got.Total, 0.001)
}

func TestValidateCombos_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"cartItems":`},
		{name: "missing product id", body: `{"cartItems":[{"product":{},"price":1,"quantity":1}]}`},
		{name: "negative price", body: `{"cartItems":[{"product":{"id":"A"},"price":-1,"quantity":1}]}`},
		{name: "non numeric price", body: `{"cartItems":[{"product":{"id":"A"},"price":"abc","quantity":1}]}`},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/combos/validate", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 400, decodeBody[errorBody](t, rec).Code)
		})
	}
}

func TestValidateCoupon(t *testing.T) {
	type couponResponse struct {
		Valid    bool    `json:"valid"`
		Discount float64 `json:"discount"`
		Message  string  `json:"message"`
	}
	percent := &coupon.Rule{
		Code:         "TEN",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		Description:  "10% off",
	}
	body := `{"code":"TEN","cartItems":[{"product":{"id":"A"},"price":500,"quantity":2}],"cartTotal":1000}`

	tests := []struct {
		name    string
		coupons *mockCouponValidator
		want    couponResponse
	}{
		{
			name:    "valid",
			coupons: &mockCouponValidator{rule: percent},
			want:    couponResponse{Valid: true, Discount: 100, Message: "10% off"},
		},
		{
			name:    "expired",
			coupons: &mockCouponValidator{err: coupon.ErrCouponExpired},
			want:    couponResponse{Message: "coupon expired"},
		},
		{
			name: "below minimum order",
			coupons: &mockCouponValidator{rule: &coupon.Rule{
				Code:           "BIG",
				DiscountType:   coupon.DiscountFixed,
				Value:          decimal.NewFromInt(50),
				MinOrderAmount: decimal.NewFromInt(5000),
			}},
			want: couponResponse{Message: "order amount below coupon minimum"},
		},
		{
			name:    "store failure",
			coupons: &mockCouponValidator{err: errors.New("connection reset")},
			want:    couponResponse{Message: "coupon could not be verified"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(c *envConfig) { c.coupons = tt.coupons })

			rec := env.do(t, http.MethodPost, "/api/coupons/validate", body, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decodeBody[couponResponse](t, rec))
		})
	}
}

func TestValidateCoupon_CodeRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/coupons/validate", `{"cartItems":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "code required", decodeBody[errorBody](t, rec).Message)
}

func withAPIKey(key string, scopes ...string) envOption {
	return func(c *envConfig) {
		c.apikeys = &mockAPIKeyRepo{info: &auth.APIKeyInfo{
			ID:      "key-1",
			KeyHash: HashKey(pepper, key),
			Name:    "test-key",
			Scopes:  scopes,
		}}
	}
}

func TestPlaceOrder(t *testing.T) {
	placer := &mockOrderPlacer{result: &order.PlaceOrderResult{
		Order: &order.Order{
			ID:             "order-1",
			Items:          []order.OrderItem{{ProductID: "A", Variant: "L", Quantity: 1}},
			Subtotal:       decimal.NewFromInt(800),
			ComboDiscount:  decimal.NewFromInt(100),
			CouponDiscount: decimal.Zero,
			Discounts:      decimal.NewFromInt(100),
			Total:          decimal.NewFromInt(700),
			CouponCode:     "TEN",
			ComboIDs:       []string{"bundle1"},
		},
		Products: []product.Product{{ID: "A", Name: "Alpha", Price: decimal.NewFromInt(800)}},
	}}
	env := newTestEnv(t, withAPIKey("secret", auth.ScopeCreateOrder), func(c *envConfig) { c.orders = placer })

	body := `{"items":[{"productId":"A","quantity":1,"variant":"L"}],"couponCode":"TEN"}`
	rec := env.do(t, http.MethodPost, "/api/order", body, http.Header{"Api_key": []string{"secret"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, order.PlaceOrderRequest{
		Items:      []order.OrderItem{{ProductID: "A", Variant: "L", Quantity: 1}},
		CouponCode: "TEN",
	}, placer.got)

	type orderResponse struct {
		ID        string   `json:"id"`
		Total     float64  `json:"total"`
		Discounts float64  `json:"discounts"`
		Combo     float64  `json:"comboDiscount"`
		Subtotal  float64  `json:"subtotal"`
		Coupon    string   `json:"couponCode"`
		ComboIDs  []string `json:"comboIds"`
		Items     []struct {
			ProductID string `json:"productId"`
			Variant   string `json:"variant"`
		} `json:"items"`
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
	}
	got := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "order-1", got.ID)
	assert.InDelta(t, 700, got.Total, 0.001)
	assert.InDelta(t, 100, got.Discounts, 0.001)
	assert.InDelta(t, 100, got.Combo, 0.001)
	assert.InDelta(t, 800, got.Subtotal, 0.001)
	assert.Equal(t, "TEN", got.Coupon)
	assert.Equal(t, []string{"bundle1"}, got.ComboIDs)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "L", got.Items[0].Variant)
	require.Len(t, got.Products, 1)
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "empty items",
			err:        order.ErrEmptyItems,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "items required",
		},
		{
			name:       "invalid quantity",
			err:        &order.InvalidQuantityError{ProductID: "A"},
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "quantity must be greater than 0 for product A",
		},
		{
			name:       "product not found",
			err:        errors.Wrap(&order.ProductNotFoundError{ProductID: "Z"}, "fetch"),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown variant",
			err:        &order.UnknownVariantError{ProductID: "A", Variant: "XL"},
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    `product A has no variant "XL"`,
		},
		{
			name:       "storage failure",
			err:        errors.New("db write failed"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, withAPIKey("secret", auth.ScopeCreateOrder), func(c *envConfig) {
				c.orders = &mockOrderPlacer{err: tt.err}
			})

			rec := env.do(t, http.MethodPost, "/api/order", `{"items":[]}`, http.Header{"Api_key": []string{"secret"}})
			require.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody[errorBody](t, rec)
			assert.Equal(t, tt.wantStatus, body.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Message)
			}
		})
	}
}

func TestPlaceOrder_Security(t *testing.T) {
	tests := []struct {
		name       string
		opt        envOption
		key        string
		wantStatus int
	}{
		{
			name:       "missing key",
			opt:        withAPIKey("secret", auth.ScopeCreateOrder),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown key",
			opt:        withAPIKey("secret", auth.ScopeCreateOrder),
			key:        "guess",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing scope",
			opt:        withAPIKey("secret", "read_only"),
			key:        "secret",
			wantStatus: http.StatusForbidden,
		},
		{
			name: "repository failure",
			opt: func(c *envConfig) {
				c.apikeys = &mockAPIKeyRepo{err: errors.New("db down")}
			},
			key:        "secret",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.opt)
			header := http.Header{}
			if tt.key != "" {
				header.Set(APIKeyHeader, tt.key)
			}

			rec := env.do(t, http.MethodPost, "/api/order", `{"items":[]}`, header)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestSecurityHandler_Authenticate(t *testing.T) {
	repo := &mockAPIKeyRepo{info: &auth.APIKeyInfo{
		ID:      "key-1",
		KeyHash: HashKey(pepper, "secret"),
		Scopes:  []string{auth.ScopeCreateOrder},
	}}
	sec := NewSecurityHandler(repo, pepper)

	info, err := sec.Authenticate(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "key-1", info.ID)

	_, err = NewSecurityHandler(repo, []byte("other")).Authenticate(context.Background(), "secret")
	require.ErrorIs(t, err, ErrUnauthorized)
}
