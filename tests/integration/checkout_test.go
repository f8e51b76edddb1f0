//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutBody(productID string, qty int) map[string]any {
	return map[string]any{
		"items":         []map[string]any{{"productId": productID, "quantity": qty}},
		"paymentMethod": "COD",
		"shippingAddress": map[string]any{
			"fullName":   "Test Shopper",
			"phone":      "+100000000",
			"country":    "NZ",
			"city":       "Wellington",
			"street":     "1 Test Lane",
			"postalCode": "6011",
		},
	}
}

func TestCheckout_RequiresAPIKey(t *testing.T) {
	p := findProduct(t, "pistachio-baklava")

	resp := do(t, http.MethodPost, "/api/orders", "", checkoutBody(p.ID, 1))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckout_CODReservesStock(t *testing.T) {
	before := findProduct(t, "classic-tiramisu")

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, checkoutBody(before.ID, 2))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decodeJSON[orderResponse](t, resp)

	assert.Equal(t, "PENDING", o.Status)
	assert.Equal(t, "COD", o.PaymentMethod)
	assert.Equal(t, "11", o.TotalAmount)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Classic Tiramisu", o.Items[0].TitleSnapshot)

	after := findProduct(t, "classic-tiramisu")
	assert.Equal(t, before.Stock-2, after.Stock)
}

func TestCheckout_InsufficientStockLeavesStockUntouched(t *testing.T) {
	before := findProduct(t, "strawberry-cheesecake")

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, checkoutBody(before.ID, before.Stock+1))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeJSON[errorResponse](t, resp)
	assert.Contains(t, e.Message, "Strawberry Cheesecake")

	after := findProduct(t, "strawberry-cheesecake")
	assert.Equal(t, before.Stock, after.Stock)
}

func TestCheckout_UnknownProduct(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/orders", shopperKey,
		checkoutBody("00000000-0000-0000-0000-000000000000", 1))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckout_CouponDiscount(t *testing.T) {
	p := findProduct(t, "macaron-mix-of-five")

	body := checkoutBody(p.ID, 2)
	body["couponCode"] = "SAVE10"

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decodeJSON[orderResponse](t, resp)

	// 2 x 8.00 = 16.00, 10% off = 1.60.
	assert.Equal(t, "1.6", o.Discount)
	assert.Equal(t, "14.4", o.TotalAmount)
	assert.Equal(t, "SAVE10", o.CouponCode)
}

func TestCheckout_UnknownCoupon(t *testing.T) {
	p := findProduct(t, "macaron-mix-of-five")

	body := checkoutBody(p.ID, 1)
	body["couponCode"] = "NOSUCHCODE"

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckout_PerUserLimitEnforced(t *testing.T) {
	p := findProduct(t, "red-velvet-cake")

	// WELCOME is limited to one redemption per shopper.
	body := checkoutBody(p.ID, 1)
	body["couponCode"] = "WELCOME"

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, http.MethodPost, "/api/orders", shopperKey, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckout_GatewayDefersThenConfirms(t *testing.T) {
	before := findProduct(t, "lemon-meringue-pie")

	body := checkoutBody(before.ID, 1)
	body["paymentMethod"] = "GATEWAY"

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decodeJSON[orderResponse](t, resp)
	assert.Equal(t, "PENDING", o.PaymentStatus)

	// Stock is untouched until the gateway settles.
	mid := findProduct(t, "lemon-meringue-pie")
	assert.Equal(t, before.Stock, mid.Stock)

	resp = do(t, http.MethodPost, "/api/payments/confirm", adminKey,
		map[string]any{"orderId": o.ID, "success": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	confirmed := decodeJSON[orderResponse](t, resp)

	assert.Equal(t, "CONFIRMED", confirmed.Status)
	assert.Equal(t, "PAID", confirmed.PaymentStatus)

	after := findProduct(t, "lemon-meringue-pie")
	assert.Equal(t, before.Stock-1, after.Stock)
}

func TestConfirmPayment_FailureCancelsOrder(t *testing.T) {
	p := findProduct(t, "waffle-with-berries")

	body := checkoutBody(p.ID, 1)
	body["paymentMethod"] = "GATEWAY"

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decodeJSON[orderResponse](t, resp)

	resp = do(t, http.MethodPost, "/api/payments/confirm", adminKey,
		map[string]any{"orderId": o.ID, "success": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	failed := decodeJSON[orderResponse](t, resp)

	assert.Equal(t, "CANCELED", failed.Status)
	assert.Equal(t, "FAILED", failed.PaymentStatus)
}

func TestOrders_ListAndGet(t *testing.T) {
	p := findProduct(t, "salted-caramel-brownie")

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, checkoutBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[orderResponse](t, resp)

	resp = do(t, http.MethodGet, "/api/orders/"+created.ID, shopperKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeJSON[orderResponse](t, resp)
	assert.Equal(t, created.ID, got.ID)

	resp = do(t, http.MethodGet, "/api/orders", shopperKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeJSON[[]orderResponse](t, resp)
	assert.NotEmpty(t, list)
}

func TestOrderStatus_AdminTransition(t *testing.T) {
	p := findProduct(t, "vanilla-bean-creme-brulee")

	resp := do(t, http.MethodPost, "/api/orders", shopperKey, checkoutBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decodeJSON[orderResponse](t, resp)

	// Shoppers cannot drive the lifecycle.
	resp = do(t, http.MethodPatch, "/api/orders/"+o.ID+"/status", shopperKey,
		map[string]any{"status": "CONFIRMED"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodPatch, "/api/orders/"+o.ID+"/status", adminKey,
		map[string]any{"status": "CONFIRMED"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeJSON[orderResponse](t, resp)
	assert.Equal(t, "CONFIRMED", updated.Status)

	// Skipping straight to DELIVERED is not a legal transition.
	resp = do(t, http.MethodPatch, "/api/orders/"+o.ID+"/status", adminKey,
		map[string]any{"status": "DELIVERED"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
