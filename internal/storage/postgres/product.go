package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velamart/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, title, slug, price, stock FROM products
		WHERE deleted_at IS NULL ORDER BY created_at DESC`

	getProductSQL = `SELECT id, title, slug, price, stock FROM products
		WHERE id = $1 AND deleted_at IS NULL`

	// The stock guard lives in the WHERE clause: the decrement applies only
	// when the remaining stock covers it, in one atomic statement.
	reserveStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2`

	// Release intentionally ignores the soft-delete marker: compensation must
	// restore stock even if the product was deleted mid-checkout.
	releaseStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all live catalog products, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// GetByID fetches a live product. Returns product.ErrNotFound for missing or
// soft-deleted products.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Reserve atomically decrements stock by qty, refusing to go negative.
// A zero-row update means the guard failed: stock ran out (or the product
// disappeared) since the caller's snapshot check.
func (r *ProductRepository) Reserve(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, reserveStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("reserving %d of product %q: %w", qty, id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrInsufficientStock
	}
	return nil
}

// Release returns previously reserved stock. Used only by checkout
// compensation.
func (r *ProductRepository) Release(ctx context.Context, id string, qty int) error {
	if _, err := r.pool.Exec(ctx, releaseStockSQL, id, qty); err != nil {
		return fmt.Errorf("releasing %d of product %q: %w", qty, id, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		stock int32
	)
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Price, &stock)
	p.Stock = int(stock)
	return p, err
}
