package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velamart/storefront/internal/domain/coupon"
)

type createCouponRequest struct {
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	MaxDiscount   decimal.Decimal `json:"maxDiscount"`
	UsageLimit    int             `json:"usageLimit"`
	PerUserLimit  int             `json:"perUserLimit"`
	StartDate     *time.Time      `json:"startDate"`
	EndDate       *time.Time      `json:"endDate"`
	MinCartValue  decimal.Decimal `json:"minCartValue"`
	Active        *bool           `json:"active"`
}

type updateCouponRequest struct {
	Code          *string          `json:"code"`
	Description   *string          `json:"description"`
	DiscountType  *string          `json:"discountType"`
	DiscountValue *decimal.Decimal `json:"discountValue"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount"`
	UsageLimit    *int             `json:"usageLimit"`
	PerUserLimit  *int             `json:"perUserLimit"`
	StartDate     *time.Time       `json:"startDate"`
	EndDate       *time.Time       `json:"endDate"`
	MinCartValue  *decimal.Decimal `json:"minCartValue"`
	Active        *bool            `json:"active"`
}

type couponResponse struct {
	ID            string              `json:"id"`
	Code          string              `json:"code"`
	Description   string              `json:"description,omitempty"`
	DiscountType  coupon.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
	MaxDiscount   decimal.Decimal     `json:"maxDiscount"`
	UsageLimit    int                 `json:"usageLimit"`
	PerUserLimit  int                 `json:"perUserLimit"`
	StartDate     *time.Time          `json:"startDate,omitempty"`
	EndDate       *time.Time          `json:"endDate,omitempty"`
	MinCartValue  decimal.Decimal     `json:"minCartValue"`
	Active        bool                `json:"active"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	return couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		Description:   c.Description,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		MaxDiscount:   c.MaxDiscount,
		UsageLimit:    c.UsageLimit,
		PerUserLimit:  c.PerUserLimit,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		MinCartValue:  c.MinCartValue,
		Active:        c.Active,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func parseDiscountType(s string) (coupon.DiscountType, bool) {
	switch coupon.DiscountType(strings.ToLower(s)) {
	case coupon.DiscountPercentage:
		return coupon.DiscountPercentage, true
	case coupon.DiscountFixed:
		return coupon.DiscountFixed, true
	}
	return "", false
}

// CreateCoupon handles POST /api/coupons (admin).
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		writeErrorStatus(w, http.StatusBadRequest, "code is required")
		return
	}
	dt, ok := parseDiscountType(req.DiscountType)
	if !ok {
		writeErrorStatus(w, http.StatusBadRequest, "discount type must be percentage or fixed")
		return
	}
	if !req.DiscountValue.IsPositive() {
		writeErrorStatus(w, http.StatusBadRequest, "discount value must be positive")
		return
	}
	if req.StartDate != nil && req.EndDate != nil && !req.EndDate.After(*req.StartDate) {
		writeErrorStatus(w, http.StatusBadRequest, "end date must be after start date")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now()
	c := &coupon.Coupon{
		ID:            uuid.NewString(),
		Code:          code,
		Description:   req.Description,
		DiscountType:  dt,
		DiscountValue: req.DiscountValue,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
		PerUserLimit:  req.PerUserLimit,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		MinCartValue:  req.MinCartValue,
		Active:        active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.coupons.Create(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

// ListCoupons handles GET /api/coupons (admin).
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]couponResponse, 0, len(coupons))
	for i := range coupons {
		resp = append(resp, toCouponResponse(&coupons[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCoupon handles GET /api/coupons/{id} (admin).
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(c))
}

// UpdateCoupon handles PUT /api/coupons/{id} (admin). Fields absent from the
// body are left as they are.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req updateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u := coupon.Update{
		Description:   req.Description,
		DiscountValue: req.DiscountValue,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
		PerUserLimit:  req.PerUserLimit,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		MinCartValue:  req.MinCartValue,
		Active:        req.Active,
	}
	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		u.Code = &code
	}
	if req.DiscountType != nil {
		dt, ok := parseDiscountType(*req.DiscountType)
		if !ok {
			writeErrorStatus(w, http.StatusBadRequest, "discount type must be percentage or fixed")
			return
		}
		u.DiscountType = &dt
	}

	existing, err := h.coupons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	counts, err := h.coupons.CountUsages(r.Context(), existing.ID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := coupon.ValidateUpdate(existing, u, counts.Total, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	coupon.ApplyUpdate(existing, u)
	existing.UpdatedAt = time.Now()
	if err := h.coupons.Update(r.Context(), existing); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCouponResponse(existing))
}

// DeleteCoupon handles DELETE /api/coupons/{id} (admin). Deletion is soft;
// recorded redemptions stay in the ledger.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.SoftDelete(r.Context(), chi.URLParam(r, "id"), time.Now()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
