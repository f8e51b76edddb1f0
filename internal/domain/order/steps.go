package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/velamart/storefront/internal/domain/coupon"
	"github.com/velamart/storefront/internal/domain/product"
)

// createOrderStep inserts the order row. Its compensation soft-cancels the
// order rather than deleting it: a canceled row with an audit trail beats a
// vanished one.
type createOrderStep struct {
	orders Repository
	order  *Order
}

func (s *createOrderStep) Name() string { return "create-order" }

func (s *createOrderStep) Execute(ctx context.Context) error {
	if err := s.orders.Create(ctx, s.order); err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

func (s *createOrderStep) Compensate(ctx context.Context) error {
	if err := s.orders.UpdateStatus(ctx, s.order.ID, StatusCanceled); err != nil {
		return errors.Wrapf(err, "cancel order %s", s.order.ID)
	}
	s.order.Status = StatusCanceled
	return nil
}

// reserveInventoryStep performs the per-product atomic decrements. Each
// decrement is guarded ("subtract only if the result stays non-negative"), so
// a concurrent checkout that drained the stock after snapshot validation
// surfaces here as InsufficientStockError instead of overselling.
//
// The decrements are independent single-record operations. When the guard
// fails on the Nth item, Execute re-increments the first N-1 before returning
// so that a rejected checkout leaves every stock level untouched.
type reserveInventoryStep struct {
	products product.Repository
	items    []OrderItem

	reserved []OrderItem
}

func (s *reserveInventoryStep) Name() string { return "reserve-inventory" }

func (s *reserveInventoryStep) Execute(ctx context.Context) error {
	for _, item := range s.items {
		if err := s.products.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			s.release(ctx)
			if errors.Is(err, product.ErrInsufficientStock) || errors.Is(err, product.ErrNotFound) {
				return &InsufficientStockError{ProductID: item.ProductID, Title: item.TitleSnapshot}
			}
			return errors.Wrapf(err, "reserve stock for %s", item.ProductID)
		}
		s.reserved = append(s.reserved, item)
	}
	return nil
}

func (s *reserveInventoryStep) Compensate(ctx context.Context) error {
	return s.release(ctx)
}

func (s *reserveInventoryStep) release(ctx context.Context) error {
	var firstErr error
	for i := len(s.reserved) - 1; i >= 0; i-- {
		item := s.reserved[i]
		if err := s.products.Release(ctx, item.ProductID, item.Quantity); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "release stock for %s", item.ProductID)
		}
	}
	s.reserved = nil
	return firstErr
}

// recordUsageStep appends the redemption to the coupon usage ledger. The
// insert atomically re-checks both usage limits, so the last remaining slot
// cannot be claimed twice by concurrent checkouts.
//
// The step runs last and the ledger is append-only, so there is nothing to
// compensate.
type recordUsageStep struct {
	coupons coupon.Repository
	coupon  *coupon.Coupon
	userID  string
	orderID string
	usedAt  time.Time
}

func (s *recordUsageStep) Name() string { return "record-coupon-usage" }

func (s *recordUsageStep) Execute(ctx context.Context) error {
	u := coupon.Usage{
		ID:       uuid.New().String(),
		CouponID: s.coupon.ID,
		UserID:   s.userID,
		OrderID:  s.orderID,
		UsedAt:   s.usedAt,
	}
	if err := s.coupons.RecordUsage(ctx, u, s.coupon.UsageLimit, s.coupon.PerUserLimit); err != nil {
		return err
	}
	return nil
}

func (s *recordUsageStep) Compensate(context.Context) error { return nil }
