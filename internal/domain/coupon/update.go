package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidUpdate is the base error for every rejected coupon update.
// Wrapped values carry the specific reason.
var ErrInvalidUpdate = errors.New("invalid coupon update")

// Update is a partial coupon modification. Nil fields are left untouched.
type Update struct {
	Code          *string
	Description   *string
	DiscountType  *DiscountType
	DiscountValue *decimal.Decimal
	MaxDiscount   *decimal.Decimal
	UsageLimit    *int
	PerUserLimit  *int
	StartDate     *time.Time
	EndDate       *time.Time
	MinCartValue  *decimal.Decimal
	Active        *bool
}

// ValidateUpdate decides whether the partial update may be applied to an
// existing coupon that has been redeemed usedCount times.
//
// Code and discount type are immutable outright. Once a coupon has been
// redeemed, its discount value and minimum cart value are frozen and the
// discount cap may only grow, so that already-recorded redemptions keep
// meaning what they meant. The usage limit can never drop below the
// redemptions that already happened, and a started activity window cannot be
// rewritten underneath shoppers.
func ValidateUpdate(existing *Coupon, u Update, usedCount int, now time.Time) error {
	if u.Code != nil && *u.Code != existing.Code {
		return errors.Wrap(ErrInvalidUpdate, "code cannot be changed")
	}
	if u.DiscountType != nil && *u.DiscountType != existing.DiscountType {
		return errors.Wrap(ErrInvalidUpdate, "discount type cannot be changed")
	}

	if usedCount > 0 {
		if u.DiscountValue != nil {
			return errors.Wrap(ErrInvalidUpdate, "discount value is frozen after first redemption")
		}
		if u.MaxDiscount != nil && u.MaxDiscount.LessThan(existing.MaxDiscount) {
			return errors.Wrap(ErrInvalidUpdate, "max discount cannot decrease after first redemption")
		}
		if u.MinCartValue != nil {
			return errors.Wrap(ErrInvalidUpdate, "min cart value is frozen after first redemption")
		}
	}

	if u.UsageLimit != nil && *u.UsageLimit < usedCount {
		return errors.Wrap(ErrInvalidUpdate, "usage limit cannot drop below recorded redemptions")
	}

	// An open window means the coupon has been live since creation, so a
	// nil StartDate counts as started too.
	if u.StartDate != nil && (existing.StartDate == nil || !existing.StartDate.After(now)) {
		return errors.Wrap(ErrInvalidUpdate, "start date cannot change after the coupon has started")
	}

	if u.EndDate != nil {
		start := existing.StartDate
		if u.StartDate != nil {
			start = u.StartDate
		}
		if start != nil && !u.EndDate.After(*start) {
			return errors.Wrap(ErrInvalidUpdate, "end date must be after start date")
		}
	}

	if u.DiscountValue != nil && !u.DiscountValue.IsPositive() {
		return errors.Wrap(ErrInvalidUpdate, "discount value must be positive")
	}
	if u.MaxDiscount != nil && !u.MaxDiscount.IsPositive() {
		return errors.Wrap(ErrInvalidUpdate, "max discount must be positive")
	}

	return nil
}

// ApplyUpdate copies the non-nil fields of u onto c. Callers must have passed
// ValidateUpdate first.
func ApplyUpdate(c *Coupon, u Update) {
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.DiscountValue != nil {
		c.DiscountValue = *u.DiscountValue
	}
	if u.MaxDiscount != nil {
		c.MaxDiscount = *u.MaxDiscount
	}
	if u.UsageLimit != nil {
		c.UsageLimit = *u.UsageLimit
	}
	if u.PerUserLimit != nil {
		c.PerUserLimit = *u.PerUserLimit
	}
	if u.StartDate != nil {
		c.StartDate = u.StartDate
	}
	if u.EndDate != nil {
		c.EndDate = u.EndDate
	}
	if u.MinCartValue != nil {
		c.MinCartValue = *u.MinCartValue
	}
	if u.Active != nil {
		c.Active = *u.Active
	}
}
