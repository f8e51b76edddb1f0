package httpapi

import (
	"encoding/json"
	"net/http"
)

type confirmPaymentRequest struct {
	OrderID string `json:"orderId"`
	Success bool   `json:"success"`
}

// ConfirmPayment handles POST /api/payments/confirm (admin). It settles a
// pending gateway payment: on success inventory is reserved and the order
// confirmed, on failure the order is canceled.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" {
		writeErrorStatus(w, http.StatusBadRequest, "orderId is required")
		return
	}

	o, err := h.checkout.ConfirmPayment(r.Context(), req.OrderID, req.Success)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
