//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type couponAdminResponse struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Description   string `json:"description"`
	DiscountType  string `json:"discountType"`
	DiscountValue string `json:"discountValue"`
	UsageLimit    int    `json:"usageLimit"`
	Active        bool   `json:"active"`
}

func TestCouponAdmin_RequiresAdminRole(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/coupons", shopperKey, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCouponAdmin_CRUD(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/coupons/", adminKey, map[string]any{
		"code":          "crudtest",
		"description":   "integration test coupon",
		"discountType":  "fixed",
		"discountValue": "2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[couponAdminResponse](t, resp)
	assert.Equal(t, "CRUDTEST", created.Code)

	// Duplicate code conflicts.
	resp = do(t, http.MethodPost, "/api/coupons/", adminKey, map[string]any{
		"code":          "CRUDTEST",
		"discountType":  "fixed",
		"discountValue": "3",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPut, "/api/coupons/"+created.ID, adminKey, map[string]any{
		"description": "updated description",
		"usageLimit":  5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeJSON[couponAdminResponse](t, resp)
	assert.Equal(t, "updated description", updated.Description)
	assert.Equal(t, 5, updated.UsageLimit)

	// Code is immutable.
	resp = do(t, http.MethodPut, "/api/coupons/"+created.ID, adminKey, map[string]any{
		"code": "RENAMED1",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodDelete, "/api/coupons/"+created.ID, adminKey, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Soft-deleted coupons disappear from reads.
	resp = do(t, http.MethodGet, "/api/coupons/"+created.ID, adminKey, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCouponAdmin_DeletedCodeNoLongerApplies(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/coupons/", adminKey, map[string]any{
		"code":          "shortlived",
		"discountType":  "percentage",
		"discountValue": "10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[couponAdminResponse](t, resp)

	resp = do(t, http.MethodDelete, "/api/coupons/"+created.ID, adminKey, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	p := findProduct(t, "pistachio-baklava")
	body := checkoutBody(p.ID, 1)
	body["couponCode"] = "SHORTLIVED"

	resp = do(t, http.MethodPost, "/api/orders", shopperKey, body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
