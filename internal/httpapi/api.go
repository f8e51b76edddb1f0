// Package httpapi exposes the storefront over HTTP. Handlers decode requests,
// delegate to the domain, and map domain errors onto the HTTP boundary.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velamart/storefront/internal/domain/auth"
	"github.com/velamart/storefront/internal/domain/coupon"
	"github.com/velamart/storefront/internal/domain/order"
	"github.com/velamart/storefront/internal/domain/product"
)

// CheckoutService is the slice of the order service the API consumes.
// Implemented by order.Service.
type CheckoutService interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.Order, error)
	ConfirmPayment(ctx context.Context, orderID string, success bool) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to order.Status) (*order.Order, error)
}

// Handler holds the API's domain dependencies.
type Handler struct {
	checkout CheckoutService
	orders   order.Repository
	products product.Repository
	coupons  coupon.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	checkout CheckoutService,
	orders order.Repository,
	products product.Repository,
	coupons coupon.Repository,
) *Handler {
	return &Handler{
		checkout: checkout,
		orders:   orders,
		products: products,
		coupons:  coupons,
	}
}

// NewRouter assembles the API routes. Catalog reads are public; everything
// else needs an authenticated identity, and the admin surfaces need the
// admin role on top.
func NewRouter(h *Handler, sec *Security) http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(sec.Authenticate)

			r.Post("/orders", h.Checkout)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(sec.RequireRole(auth.RoleAdmin))

				r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
				r.Post("/payments/confirm", h.ConfirmPayment)

				r.Route("/coupons", func(r chi.Router) {
					r.Post("/", h.CreateCoupon)
					r.Get("/", h.ListCoupons)
					r.Get("/{id}", h.GetCoupon)
					r.Put("/{id}", h.UpdateCoupon)
					r.Delete("/{id}", h.DeleteCoupon)
				})
			})
		})
	})

	return r
}
