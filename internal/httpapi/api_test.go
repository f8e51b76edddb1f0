package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velamart/storefront/internal/domain/auth"
	"github.com/velamart/storefront/internal/domain/coupon"
	"github.com/velamart/storefront/internal/domain/order"
	"github.com/velamart/storefront/internal/domain/product"
)

// --- Stubs ---

type stubCheckout struct {
	order *order.Order
	err   error

	lastRequest order.CheckoutRequest
}

func (s *stubCheckout) Checkout(_ context.Context, req order.CheckoutRequest) (*order.Order, error) {
	s.lastRequest = req
	return s.order, s.err
}

func (s *stubCheckout) ConfirmPayment(_ context.Context, _ string, _ bool) (*order.Order, error) {
	return s.order, s.err
}

func (s *stubCheckout) UpdateStatus(_ context.Context, _ string, _ order.Status) (*order.Order, error) {
	return s.order, s.err
}

type stubOrders struct {
	order.Repository

	byID map[string]*order.Order
}

func (s *stubOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (s *stubOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range s.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type stubProducts struct {
	product.Repository

	items []product.Product
}

func (s *stubProducts) List(_ context.Context) ([]product.Product, error) {
	return s.items, nil
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i], nil
		}
	}
	return nil, product.ErrNotFound
}

type stubCoupons struct {
	coupon.Repository

	byID map[string]*coupon.Coupon
}

func (s *stubCoupons) GetByID(_ context.Context, id string) (*coupon.Coupon, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (s *stubCoupons) CountUsages(_ context.Context, _, _ string) (coupon.UsageCounts, error) {
	return coupon.UsageCounts{}, nil
}

func (s *stubCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	s.byID[c.ID] = c
	return nil
}

func (s *stubCoupons) Update(_ context.Context, c *coupon.Coupon) error {
	s.byID[c.ID] = c
	return nil
}

type keyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func (r *keyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := r.byHash[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return info, nil
}

// --- Harness ---

const testPepper = "test-pepper"

func hashKey(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

type harness struct {
	router   http.Handler
	checkout *stubCheckout
	orders   *stubOrders
	coupons  *stubCoupons
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	checkout := &stubCheckout{}
	orders := &stubOrders{byID: make(map[string]*order.Order)}
	products := &stubProducts{items: []product.Product{
		{ID: "p1", Title: "Widget", Slug: "widget", Price: decimal.RequireFromString("10.00"), Stock: 5},
	}}
	coupons := &stubCoupons{byID: make(map[string]*coupon.Coupon)}

	keys := &keyRepo{byHash: map[string]*auth.APIKeyInfo{
		hashKey("shopper-key"): {ID: "k1", KeyHash: hashKey("shopper-key"), UserID: "u1", Role: auth.RoleShopper},
		hashKey("admin-key"):   {ID: "k2", KeyHash: hashKey("admin-key"), UserID: "a1", Role: auth.RoleAdmin},
	}}

	h := NewHandler(checkout, orders, products, coupons)
	sec := NewSecurity(keys, []byte(testPepper))

	return &harness{
		router:   NewRouter(h, sec),
		checkout: checkout,
		orders:   orders,
		coupons:  coupons,
	}
}

func (h *harness) do(method, path, apiKey string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// --- Auth ---

func TestAuth_MissingKey(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_UnknownKey(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/orders", "wrong-key", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ShopperCannotReachAdminRoutes(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/coupons", "shopper-key", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuth_CatalogIsPublic(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Products ---

func TestGetProduct(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/products/p1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp productResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Widget", resp.Title)

	w = h.do(http.MethodGet, "/api/products/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Checkout ---

func TestCheckoutHandler_Created(t *testing.T) {
	h := newHarness(t)
	h.checkout.order = &order.Order{
		ID:          "o1",
		UserID:      "u1",
		TotalAmount: decimal.RequireFromString("20.00"),
		Status:      order.StatusPending,
	}

	w := h.do(http.MethodPost, "/api/orders", "shopper-key", map[string]any{
		"items":         []map[string]any{{"productId": "p1", "quantity": 2}},
		"paymentMethod": "COD",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, "u1", h.checkout.lastRequest.UserID, "identity comes from the API key, not the body")
	require.Len(t, h.checkout.lastRequest.Items, 1)
	assert.Equal(t, "p1", h.checkout.lastRequest.Items[0].ProductID)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "o1", resp.ID)
}

func TestCheckoutHandler_DomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"empty cart", order.ErrEmptyCart, http.StatusBadRequest},
		{"product missing", &order.ProductNotFoundError{ProductID: "p9"}, http.StatusNotFound},
		{"insufficient stock", &order.InsufficientStockError{ProductID: "p1", Title: "Widget"}, http.StatusBadRequest},
		{"invalid coupon", coupon.ErrInvalidCoupon, http.StatusBadRequest},
		{"expired coupon", coupon.ErrCouponExpired, http.StatusBadRequest},
		{"bad payment method", order.ErrInvalidPaymentMethod, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.checkout.err = tt.err

			w := h.do(http.MethodPost, "/api/orders", "shopper-key", map[string]any{
				"items": []map[string]any{{"productId": "p1", "quantity": 1}},
			})
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestCheckoutHandler_MalformedBody(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{not json"))
	req.Header.Set("X-API-Key", "shopper-key")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Orders ---

func TestGetOrder_OwnershipCheck(t *testing.T) {
	h := newHarness(t)
	h.orders.byID["o1"] = &order.Order{ID: "o1", UserID: "someone-else"}

	// A shopper cannot see another user's order, and cannot learn that it
	// exists.
	w := h.do(http.MethodGet, "/api/orders/o1", "shopper-key", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// An admin can.
	w = h.do(http.MethodGet, "/api/orders/o1", "admin-key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListOrders_OnlyOwn(t *testing.T) {
	h := newHarness(t)
	h.orders.byID["o1"] = &order.Order{ID: "o1", UserID: "u1"}
	h.orders.byID["o2"] = &order.Order{ID: "o2", UserID: "someone-else"}

	w := h.do(http.MethodGet, "/api/orders", "shopper-key", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "o1", resp[0].ID)
}

func TestUpdateOrderStatus_AdminOnly(t *testing.T) {
	h := newHarness(t)
	h.checkout.order = &order.Order{ID: "o1", Status: order.StatusConfirmed}

	w := h.do(http.MethodPatch, "/api/orders/o1/status", "shopper-key", map[string]any{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPatch, "/api/orders/o1/status", "admin-key", map[string]any{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateOrderStatus_InvalidStatus(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPatch, "/api/orders/o1/status", "admin-key", map[string]any{"status": "TELEPORTED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Payments ---

func TestConfirmPaymentHandler(t *testing.T) {
	h := newHarness(t)
	h.checkout.order = &order.Order{ID: "o1", Status: order.StatusConfirmed, PaymentStatus: order.PaymentPaid}

	w := h.do(http.MethodPost, "/api/payments/confirm", "admin-key", map[string]any{"orderId": "o1", "success": true})
	require.Equal(t, http.StatusOK, w.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, order.PaymentPaid, resp.PaymentStatus)
}

func TestConfirmPaymentHandler_MissingOrderID(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/payments/confirm", "admin-key", map[string]any{"success": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Coupons ---

func TestCreateCoupon(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/coupons/", "admin-key", map[string]any{
		"code":          "save10",
		"discountType":  "percentage",
		"discountValue": "10",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp couponResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SAVE10", resp.Code, "codes are stored uppercase")
	assert.True(t, resp.Active)
	assert.NotEmpty(t, resp.ID)
}

func TestCreateCoupon_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing code", map[string]any{"discountType": "fixed", "discountValue": "5"}},
		{"bad type", map[string]any{"code": "X1234567", "discountType": "bogo", "discountValue": "5"}},
		{"zero value", map[string]any{"code": "X1234567", "discountType": "fixed", "discountValue": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodPost, "/api/coupons/", "admin-key", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestUpdateCoupon(t *testing.T) {
	h := newHarness(t)
	h.coupons.byID["c1"] = &coupon.Coupon{
		ID:            "c1",
		Code:          "SAVE10",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		Active:        true,
		CreatedAt:     time.Now(),
	}

	w := h.do(http.MethodPut, "/api/coupons/c1", "admin-key", map[string]any{
		"description": "ten percent off",
		"usageLimit":  50,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp couponResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ten percent off", resp.Description)
	assert.Equal(t, 50, resp.UsageLimit)
}

func TestUpdateCoupon_ImmutableCode(t *testing.T) {
	h := newHarness(t)
	h.coupons.byID["c1"] = &coupon.Coupon{
		ID:           "c1",
		Code:         "SAVE10",
		DiscountType: coupon.DiscountPercentage,
	}

	w := h.do(http.MethodPut, "/api/coupons/c1", "admin-key", map[string]any{"code": "OTHER"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCoupon_NotFound(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/coupons/nope", "admin-key", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
