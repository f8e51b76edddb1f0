package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Result is a successful evaluation: the resolved coupon (needed later to
// record the redemption) and the discount it grants on this cart.
type Result struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Evaluator decides whether a coupon code applies to a shopper's cart and
// computes the discount. It only reads; recording the redemption happens at
// commit time through Repository.RecordUsage.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate resolves the code among live, active coupons and checks it against
// the shopper and subtotal.
//
// Check order matters: the activity window is verified before usage limits so
// that a coupon which is both expired and exhausted reports the more specific
// expiry reason.
//
// The usage counts read here are advisory: a concurrent checkout may consume
// the last slot between this read and RecordUsage. The conditional insert in
// RecordUsage is what actually enforces the limits.
func (e *Evaluator) Evaluate(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*Result, error) {
	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := e.now()
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return nil, ErrInvalidCoupon
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return nil, ErrCouponExpired
	}

	if c.UsageLimit > 0 || c.PerUserLimit > 0 {
		counts, err := e.repo.CountUsages(ctx, c.ID, userID)
		if err != nil {
			return nil, errors.Wrap(err, "count coupon usages")
		}
		if c.UsageLimit > 0 && counts.Total >= c.UsageLimit {
			return nil, ErrInvalidCoupon
		}
		if c.PerUserLimit > 0 && counts.ByUser >= c.PerUserLimit {
			return nil, ErrInvalidCoupon
		}
	}

	return &Result{
		Coupon:   c,
		Discount: CalculateDiscount(c, subtotal),
	}, nil
}
