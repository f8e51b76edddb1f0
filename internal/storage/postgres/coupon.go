package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/velamart/storefront/internal/domain/coupon"
)

const (
	couponColumns = `id, code, description, discount_type, discount_value, max_discount,
		usage_limit, per_user_limit, start_date, end_date, min_cart_value, active,
		created_at, updated_at`

	findCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE UPPER(code) = UPPER($1) AND active AND deleted_at IS NULL`

	getCouponSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE id = $1 AND deleted_at IS NULL`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE deleted_at IS NULL ORDER BY created_at DESC`

	countUsagesSQL = `SELECT count(*), count(*) FILTER (WHERE user_id = $2)
		FROM coupon_usages WHERE coupon_id = $1`

	lockCouponSQL = `SELECT id FROM coupons WHERE id = $1 FOR UPDATE`

	// Conditional append: the row is inserted only while both limits still
	// have room. Combined with the coupon row lock this makes the limit check
	// and the insert one atomic unit.
	insertUsageSQL = `INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, used_at)
		SELECT $1, $2, $3, $4, $5
		WHERE ($6 = 0 OR (SELECT count(*) FROM coupon_usages WHERE coupon_id = $2) < $6)
		  AND ($7 = 0 OR (SELECT count(*) FROM coupon_usages WHERE coupon_id = $2 AND user_id = $3) < $7)`

	insertCouponSQL = `INSERT INTO coupons (id, code, description, discount_type, discount_value,
		max_discount, usage_limit, per_user_limit, start_date, end_date, min_cart_value, active,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`

	updateCouponSQL = `UPDATE coupons SET description = $2, discount_value = $3, max_discount = $4,
		usage_limit = $5, per_user_limit = $6, start_date = $7, end_date = $8,
		min_cart_value = $9, active = $10, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	softDeleteCouponSQL = `UPDATE coupons SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a live, active coupon by code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// CountUsages returns redemption counts for the coupon overall and for one user.
func (r *CouponRepository) CountUsages(ctx context.Context, couponID, userID string) (coupon.UsageCounts, error) {
	var counts coupon.UsageCounts
	err := r.pool.QueryRow(ctx, countUsagesSQL, couponID, userID).
		Scan(&counts.Total, &counts.ByUser)
	if err != nil {
		return coupon.UsageCounts{}, fmt.Errorf("counting usages of coupon %q: %w", couponID, err)
	}
	return counts, nil
}

// RecordUsage appends one redemption, atomically re-checking both limits.
//
// The coupon row is locked for the duration of the conditional insert so two
// concurrent redemptions of the last remaining slot serialize; the loser sees
// a zero-row insert and gets coupon.ErrInvalidCoupon.
func (r *CouponRepository) RecordUsage(ctx context.Context, u coupon.Usage, usageLimit, perUserLimit int) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id string
		if err := tx.QueryRow(ctx, lockCouponSQL, u.CouponID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return coupon.ErrInvalidCoupon
			}
			return fmt.Errorf("locking coupon %q: %w", u.CouponID, err)
		}

		tag, err := tx.Exec(ctx, insertUsageSQL,
			u.ID, u.CouponID, u.UserID, u.OrderID, u.UsedAt,
			usageLimit, perUserLimit,
		)
		if err != nil {
			return fmt.Errorf("recording usage of coupon %q: %w", u.CouponID, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrInvalidCoupon
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// Create inserts a new coupon. Returns coupon.ErrCodeTaken when the code
// collides with a live coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		nullDecimal(c.MaxDiscount), nullInt(c.UsageLimit), nullInt(c.PerUserLimit),
		c.StartDate, c.EndDate, nullDecimal(c.MinCartValue), c.Active, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return coupon.ErrCodeTaken
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// GetByID fetches a live coupon by id, active or not.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}
	return &c, nil
}

// List returns all live coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, nil
}

// Update persists the mutable coupon fields. Code and discount type are
// immutable and absent from the statement.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.ID, c.Description, c.DiscountValue, nullDecimal(c.MaxDiscount),
		nullInt(c.UsageLimit), nullInt(c.PerUserLimit), c.StartDate, c.EndDate,
		nullDecimal(c.MinCartValue), c.Active,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// SoftDelete marks the coupon deleted, freeing its code for reuse. Usage
// history is untouched.
func (r *CouponRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, softDeleteCouponSQL, id, at)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		maxDiscount  *decimal.Decimal
		usageLimit   *int32
		perUserLimit *int32
		minCartValue *decimal.Decimal
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue, &maxDiscount,
		&usageLimit, &perUserLimit, &c.StartDate, &c.EndDate, &minCartValue, &c.Active,
		&c.CreatedAt, &c.UpdatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	if maxDiscount != nil {
		c.MaxDiscount = *maxDiscount
	}
	if usageLimit != nil {
		c.UsageLimit = int(*usageLimit)
	}
	if perUserLimit != nil {
		c.PerUserLimit = int(*perUserLimit)
	}
	if minCartValue != nil {
		c.MinCartValue = *minCartValue
	}
	return c, err
}

// nullDecimal maps the domain's zero-means-unset convention to a NULL column.
func nullDecimal(d decimal.Decimal) *decimal.Decimal {
	if d.IsZero() {
		return nil
	}
	return &d
}

func nullInt(n int) *int32 {
	if n == 0 {
		return nil
	}
	v := int32(n)
	return &v
}
