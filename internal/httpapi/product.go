package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/velamart/storefront/internal/domain/product"
)

type productResponse struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Slug  string          `json:"slug"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:    p.ID,
		Title: p.Title,
		Slug:  p.Slug,
		Price: p.Price,
		Stock: p.Stock,
	}
}

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct handles GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}
