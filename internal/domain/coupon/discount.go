package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CalculateDiscount computes the discount a coupon grants on the given cart
// subtotal. It is a pure function over the coupon's rule snapshot: no clock,
// no store, no mutation. Eligibility (activity window, usage limits) is the
// Evaluator's concern, not this function's.
//
// Below the minimum cart value the discount is zero, not an error: the coupon
// applies, it just grants nothing. The result is clamped to MaxDiscount when
// set and floored at zero.
func CalculateDiscount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if !c.Active {
		return decimal.Zero
	}
	if c.MinCartValue.IsPositive() && subtotal.LessThan(c.MinCartValue) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(hundred)
	case DiscountFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if c.MaxDiscount.IsPositive() {
		discount = decimal.Min(discount, c.MaxDiscount)
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount.Round(2)
}
