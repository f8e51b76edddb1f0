// Package coupon implements coupon eligibility, discount calculation, and the
// append-only redemption ledger that usage limits are counted against.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the cart subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed monetary amount.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a code is unknown, inactive, not yet
	// started, or has exhausted a usage limit.
	ErrInvalidCoupon = errors.New("invalid coupon")
	// ErrCouponExpired is returned when a coupon is past its end date.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrNotFound is returned by admin lookups for missing or deleted coupons.
	ErrNotFound = errors.New("coupon not found")
	// ErrCodeTaken is returned when creating a coupon whose code collides with
	// a live coupon.
	ErrCodeTaken = errors.New("coupon code already exists")
)

// Coupon is an immutable snapshot of a coupon's rules at evaluation time.
//
// Zero-valued MaxDiscount and MinCartValue mean "not set"; zero UsageLimit and
// PerUserLimit mean unlimited; nil StartDate/EndDate mean an open-ended window.
type Coupon struct {
	ID            string
	Code          string
	Description   string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MaxDiscount   decimal.Decimal
	UsageLimit    int
	PerUserLimit  int
	StartDate     *time.Time
	EndDate       *time.Time
	MinCartValue  decimal.Decimal
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Usage is one row of the redemption ledger: a single successful application
// of a coupon to an order. Rows are inserted once and never touched again.
type Usage struct {
	ID       string
	CouponID string
	UserID   string
	OrderID  string
	UsedAt   time.Time
}

// UsageCounts reports how often a coupon has been redeemed overall and by one
// specific user.
type UsageCounts struct {
	Total  int
	ByUser int
}

// Repository provides coupon persistence and the redemption ledger.
//
// RecordUsage must atomically re-check the coupon's global and per-user limits
// in the same operation that inserts the ledger row, returning
// ErrInvalidCoupon when either limit is already exhausted. This closes the
// race between the evaluator's read of the counts and the insert.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	CountUsages(ctx context.Context, couponID, userID string) (UsageCounts, error)
	RecordUsage(ctx context.Context, u Usage, usageLimit, perUserLimit int) error

	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, id string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Update(ctx context.Context, c *Coupon) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
