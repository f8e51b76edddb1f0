// Package product exposes the read side of the catalog plus the atomic
// stock reservation primitives used by checkout. The catalog's own CRUD
// lifecycle lives elsewhere; this engine only references products.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a product does not exist or is soft-deleted.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when an atomic reservation guard fails:
	// the decrement would have driven stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product is a catalog item as seen by checkout.
type Product struct {
	ID    string
	Title string
	Slug  string
	Price decimal.Decimal
	Stock int
}

// Repository defines catalog reads and the per-product atomic stock operations.
//
// Reserve must be a single conditional decrement: "subtract qty if the result
// stays non-negative". A failed guard reports ErrInsufficientStock rather than
// letting stock go negative, which is what makes concurrent checkouts against
// the same product safe without any cross-record transaction.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Reserve(ctx context.Context, id string, qty int) error
	Release(ctx context.Context, id string, qty int) error
}
