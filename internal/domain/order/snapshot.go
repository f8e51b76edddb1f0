package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/velamart/storefront/internal/domain/product"
)

// CartItem is one client-submitted cart line, prior to validation.
type CartItem struct {
	ProductID string
	Quantity  int
}

// cartSnapshot is the priced, stock-checked view of a submitted cart.
type cartSnapshot struct {
	Items    []OrderItem
	Subtotal decimal.Decimal
}

// buildSnapshot resolves every cart line against the live catalog and freezes
// title and unit price into OrderItem snapshots. Pure read: no stock is
// touched here, so the availability check is only advisory. The atomic
// reservation at commit time is authoritative.
//
// A non-positive submitted quantity is floored to 1 rather than rejected.
// The storefront client can briefly send a zeroed quantity while the cart UI
// settles.
func buildSnapshot(ctx context.Context, catalog product.Repository, items []CartItem) (*cartSnapshot, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	snap := &cartSnapshot{
		Items:    make([]OrderItem, 0, len(items)),
		Subtotal: decimal.Zero,
	}
	for _, item := range items {
		p, err := catalog.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: item.ProductID}
			}
			return nil, errors.Wrapf(err, "get product %s", item.ProductID)
		}

		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		if p.Stock < qty {
			return nil, &InsufficientStockError{ProductID: p.ID, Title: p.Title}
		}

		snap.Items = append(snap.Items, OrderItem{
			ProductID:     p.ID,
			TitleSnapshot: p.Title,
			PriceSnapshot: p.Price,
			Quantity:      qty,
		})
		line := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		snap.Subtotal = snap.Subtotal.Add(line)
	}

	return snap, nil
}
