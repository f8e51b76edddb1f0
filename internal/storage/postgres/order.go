package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velamart/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, total_amount, discount, coupon_code, status,
		payment_method, payment_status, shipping_address, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (id, user_id, items, total_amount, discount,
		coupon_code, status, payment_method, payment_status, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE id = $1 AND deleted_at IS NULL`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	updateOrderPaymentSQL = `UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	claimOrderPaymentSQL = `UPDATE orders SET payment_status = $3, updated_at = now()
		WHERE id = $1 AND payment_status = $2 AND deleted_at IS NULL`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Item
// snapshots and the shipping address are serialized into JSONB columns; they
// share the order's lifecycle and are never addressed independently.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its embedded item snapshots.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, itemsJSON, o.TotalAmount, o.Discount,
		nullString(o.CouponCode), string(o.Status), string(o.PaymentMethod),
		string(o.PaymentStatus), addrJSON, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID fetches a live order. Returns order.ErrNotFound when missing.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns a shopper's live orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return orders, nil
}

// UpdateStatus sets the lifecycle status. Transition legality is the domain
// layer's responsibility.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdatePayment sets the payment status.
func (r *OrderRepository) UpdatePayment(ctx context.Context, id string, status order.PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, updateOrderPaymentSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating payment of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ClaimPayment moves the payment status only if it still holds the expected
// value. The guarded update is what keeps concurrent gateway callbacks from
// settling the same order twice.
func (r *OrderRepository) ClaimPayment(ctx context.Context, id string, from, to order.PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, claimOrderPaymentSQL, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("claiming payment of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(order.ErrInvalidTransition, "payment already settled")
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		itemsJSON  []byte
		addrJSON   []byte
		couponCode *string
		status     string
		method     string
		payment    string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &o.TotalAmount, &o.Discount, &couponCode,
		&status, &method, &payment, &addrJSON, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(payment)
	return o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
