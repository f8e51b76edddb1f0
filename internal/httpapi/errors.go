package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velamart/storefront/internal/domain/auth"
	"github.com/velamart/storefront/internal/domain/coupon"
	"github.com/velamart/storefront/internal/domain/order"
	"github.com/velamart/storefront/internal/domain/product"
)

// errorResponse is the wire shape of every API failure.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// writeError maps a domain error onto the HTTP boundary. Unknown errors
// become an opaque 500; the detail goes to the log, not the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		pnf *order.ProductNotFoundError
		ins *order.InsufficientStockError
	)
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeErrorStatus(w, http.StatusBadRequest, "cart is empty")
	case errors.As(err, &pnf):
		writeErrorStatus(w, http.StatusNotFound, pnf.Error())
	case errors.As(err, &ins):
		writeErrorStatus(w, http.StatusBadRequest, ins.Error())
	case errors.Is(err, order.ErrInvalidPaymentMethod):
		writeErrorStatus(w, http.StatusBadRequest, "invalid payment method")
	case errors.Is(err, coupon.ErrCouponExpired):
		writeErrorStatus(w, http.StatusBadRequest, "coupon has expired")
	case errors.Is(err, coupon.ErrInvalidCoupon):
		writeErrorStatus(w, http.StatusBadRequest, "invalid coupon")
	case errors.Is(err, coupon.ErrInvalidUpdate):
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coupon.ErrCodeTaken):
		writeErrorStatus(w, http.StatusConflict, "coupon code already exists")
	case errors.Is(err, order.ErrInvalidTransition):
		writeErrorStatus(w, http.StatusBadRequest, "invalid status transition")
	case errors.Is(err, order.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "order not found")
	case errors.Is(err, coupon.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "coupon not found")
	case errors.Is(err, product.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "product not found")
	case errors.Is(err, auth.ErrUnauthorized):
		writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		writeErrorStatus(w, http.StatusForbidden, "forbidden")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeErrorStatus(w, http.StatusInternalServerError, "internal error")
	}
}
