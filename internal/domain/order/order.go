// Package order owns the order ledger and the checkout orchestration that
// turns a submitted cart into a committed order.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrNotFound             = errors.New("order not found")
)

// ProductNotFoundError indicates a cart line references a product that is
// missing or soft-deleted.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError indicates the requested quantity exceeds the
// available stock. Title is the product's display title for the message.
type InsufficientStockError struct {
	ProductID string
	Title     string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s", e.Title)
}

// PaymentMethod enumerates the accepted ways to pay for an order.
type PaymentMethod string

const (
	// PaymentCOD is cash on delivery: inventory and coupon usage commit
	// synchronously with order creation.
	PaymentCOD PaymentMethod = "COD"
	// PaymentGateway defers inventory and usage commit until the gateway
	// confirms the payment.
	PaymentGateway PaymentMethod = "GATEWAY"
)

// PaymentStatus tracks the payment axis, parallel to the order status.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// OrderItem is an immutable snapshot of a product at order-creation time.
// Later catalog edits never reach back into a placed order.
type OrderItem struct {
	ProductID     string          `json:"productId"`
	TitleSnapshot string          `json:"titleSnapshot"`
	PriceSnapshot decimal.Decimal `json:"priceSnapshot"`
	Quantity      int             `json:"quantity"`
}

// ShippingAddress is where the order is delivered.
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Street     string `json:"street"`
	PostalCode string `json:"postalCode"`
}

// Order is the ledger entity for one checkout. TotalAmount is a frozen
// financial record: max(sum(priceSnapshot*quantity) - discount, 0) at
// creation, never recomputed afterwards.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	TotalAmount     decimal.Decimal
	Discount        decimal.Decimal
	CouponCode      string
	Status          Status
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	ShippingAddress ShippingAddress
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository defines persistence for orders. Each method is a single-record
// operation; the checkout saga sequences them without assuming any shared
// transaction boundary.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdatePayment(ctx context.Context, id string, status PaymentStatus) error
	// ClaimPayment moves the payment status from one value to another in a
	// single conditional write. Returns ErrInvalidTransition when the order
	// is no longer in the expected state, ErrNotFound when it is missing.
	ClaimPayment(ctx context.Context, id string, from, to PaymentStatus) error
}

// ParsePaymentMethod normalizes caller input to a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToUpper(s)) {
	case PaymentCOD:
		return PaymentCOD, nil
	case PaymentGateway:
		return PaymentGateway, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}
