package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/velamart/storefront/internal/domain/auth"
	"github.com/velamart/storefront/internal/domain/order"
)

type checkoutRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	CouponCode      string                `json:"couponCode"`
	PaymentMethod   string                `json:"paymentMethod"`
}

type orderResponse struct {
	ID              string                `json:"id"`
	UserID          string                `json:"userId"`
	Items           []order.OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal       `json:"totalAmount"`
	Discount        decimal.Decimal       `json:"discount"`
	CouponCode      string                `json:"couponCode,omitempty"`
	Status          order.Status          `json:"status"`
	PaymentMethod   order.PaymentMethod   `json:"paymentMethod"`
	PaymentStatus   order.PaymentStatus   `json:"paymentStatus"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           o.Items,
		TotalAmount:     o.TotalAmount,
		Discount:        o.Discount,
		CouponCode:      o.CouponCode,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// Checkout handles POST /api/orders.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.checkout.Checkout(r.Context(), order.CheckoutRequest{
		UserID:          id.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		CouponCode:      req.CouponCode,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// ListOrders handles GET /api/orders. Shoppers see their own orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /api/orders/{id}. Shoppers may only read their own
// orders; admins may read any.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if o.UserID != id.UserID && id.Role != auth.RoleAdmin {
		// Do not reveal that the order exists.
		writeError(w, r, order.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus handles PATCH /api/orders/{id}/status (admin).
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	to, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.checkout.UpdateStatus(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
