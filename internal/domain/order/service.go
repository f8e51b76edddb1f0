package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/velamart/storefront/internal/domain/coupon"
	"github.com/velamart/storefront/internal/domain/product"
)

// CouponEvaluator decides whether a coupon code applies to a cart and
// computes the discount. Implemented by coupon.Evaluator.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*coupon.Result, error)
}

// CheckoutRequest is the input to one checkout attempt.
type CheckoutRequest struct {
	UserID          string
	Items           []CartItem
	ShippingAddress ShippingAddress
	CouponCode      string
	PaymentMethod   string
}

// Service sequences checkout: snapshot validation, coupon evaluation, order
// creation, inventory reservation, and usage recording.
type Service struct {
	products  product.Repository
	evaluator CouponEvaluator
	coupons   coupon.Repository
	orders    Repository

	now       func() time.Time
	tracer    trace.Tracer
	checkouts metric.Int64Counter
}

// NewService creates the checkout service with its domain collaborators.
func NewService(
	products product.Repository,
	evaluator CouponEvaluator,
	coupons coupon.Repository,
	orders Repository,
	meter metric.Meter,
	tracer trace.Tracer,
) (*Service, error) {
	checkouts, err := meter.Int64Counter("checkout.orders",
		metric.WithDescription("Checkout attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}

	return &Service{
		products:  products,
		evaluator: evaluator,
		coupons:   coupons,
		orders:    orders,
		now:       time.Now,
		tracer:    tracer,
		checkouts: checkouts,
	}, nil
}

// Checkout turns a submitted cart into a committed order.
//
// All validation runs before the order row is inserted; nothing is written on
// a validation failure. After the row exists the remaining effects run as a
// saga: a commit-time guard failure (stock raced away, coupon slot raced
// away) releases any reserved stock and cancels the order, then surfaces the
// domain error it was discovered as.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout")
	defer span.End()

	o, err := s.checkout(ctx, req)
	s.recordOutcome(ctx, err)
	return o, err
}

func (s *Service) checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	method, err := ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	snap, err := buildSnapshot(ctx, s.products, req.Items)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	var applied *coupon.Coupon
	if req.CouponCode != "" {
		res, err := s.evaluator.Evaluate(ctx, req.CouponCode, req.UserID, snap.Subtotal)
		if err != nil {
			return nil, err
		}
		applied = res.Coupon
		discount = res.Discount
	}

	total := snap.Subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           snap.Items,
		TotalAmount:     total.Round(2),
		Discount:        discount.Round(2),
		Status:          StatusPending,
		PaymentMethod:   method,
		PaymentStatus:   PaymentPending,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if applied != nil {
		o.CouponCode = applied.Code
	}

	steps := []step{
		&createOrderStep{orders: s.orders, order: o},
	}
	// COD commits inventory and usage synchronously. Gateway orders defer
	// both until ConfirmPayment.
	if method == PaymentCOD {
		steps = append(steps, &reserveInventoryStep{products: s.products, items: o.Items})
		if applied != nil {
			steps = append(steps, &recordUsageStep{
				coupons: s.coupons,
				coupon:  applied,
				userID:  req.UserID,
				orderID: o.ID,
				usedAt:  now,
			})
		}
	}

	if err := runSaga(ctx, steps); err != nil {
		return nil, err
	}
	return o, nil
}

// ConfirmPayment reacts to the gateway's payment outcome for a deferred
// order. On success the deferred inventory reservation and coupon usage run
// through the same saga as COD, then the order moves to CONFIRMED/PAID. On
// gateway failure, or when the deferred commit itself fails (stock or coupon
// slot raced away while awaiting payment), the order is canceled and the
// payment marked FAILED.
//
// Gateways retry callbacks, so the pending payment is claimed with a
// conditional write before any effect runs. Exactly one confirmation wins;
// the rest observe the order already settled.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string, success bool) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != PaymentGateway {
		return nil, errors.Wrap(ErrInvalidTransition, "order is not awaiting gateway payment")
	}

	if !success {
		if err := s.orders.ClaimPayment(ctx, o.ID, PaymentPending, PaymentFailed); err != nil {
			return nil, err
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, StatusCanceled); err != nil {
			return nil, errors.Wrap(err, "cancel unpaid order")
		}
		o.PaymentStatus = PaymentFailed
		o.Status = StatusCanceled
		return o, nil
	}

	steps := []step{
		&reserveInventoryStep{products: s.products, items: o.Items},
	}
	if o.CouponCode != "" {
		applied, err := s.coupons.FindByCode(ctx, o.CouponCode)
		if err != nil && !errors.Is(err, coupon.ErrInvalidCoupon) {
			return nil, errors.Wrap(err, "resolve applied coupon")
		}
		// A coupon soft-deleted while payment was pending only loses its
		// ledger row; the order keeps the discount it was priced with.
		if applied != nil {
			steps = append(steps, &recordUsageStep{
				coupons: s.coupons,
				coupon:  applied,
				userID:  o.UserID,
				orderID: o.ID,
				usedAt:  s.now(),
			})
		}
	}

	if err := s.orders.ClaimPayment(ctx, o.ID, PaymentPending, PaymentPaid); err != nil {
		return nil, err
	}

	if err := runSaga(ctx, steps); err != nil {
		if _, ferr := s.failPayment(ctx, o); ferr != nil {
			return nil, errors.Wrap(ferr, "cancel after failed commit")
		}
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, o.ID, StatusConfirmed); err != nil {
		return nil, errors.Wrap(err, "confirm order")
	}
	o.PaymentStatus = PaymentPaid
	o.Status = StatusConfirmed
	return o, nil
}

func (s *Service) failPayment(ctx context.Context, o *Order) (*Order, error) {
	if err := s.orders.UpdatePayment(ctx, o.ID, PaymentFailed); err != nil {
		return nil, errors.Wrap(err, "mark payment failed")
	}
	if err := s.orders.UpdateStatus(ctx, o.ID, StatusCanceled); err != nil {
		return nil, errors.Wrap(err, "cancel unpaid order")
	}
	o.PaymentStatus = PaymentFailed
	o.Status = StatusCanceled
	return o, nil
}

// UpdateStatus applies an admin-driven lifecycle transition.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.Transition(to); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, o.ID, to); err != nil {
		return nil, errors.Wrapf(err, "update order %s status", o.ID)
	}
	return o, nil
}

func (s *Service) recordOutcome(ctx context.Context, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
