// Package cache provides a bloom-filter front for coupon code lookups.
//
// Shoppers mistype codes constantly and bots probe them in bulk; both hit the
// coupon table with queries that almost always miss. A bloom filter of live
// codes answers definite misses in memory. False positives only cost one
// extra query, so correctness is unaffected.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velamart/storefront/internal/domain/coupon"
)

// Capacity and false-positive rate for the code filter. Sized well above any
// realistic live-coupon count so the FPR holds.
const (
	filterCapacity = 1_000_000
	filterFPR      = 0.001
)

// DefaultRebuildInterval bounds how long a code inserted out of band (the
// bulk ingest tool writes straight to the table) stays invisible to the
// filter.
const DefaultRebuildInterval = 5 * time.Minute

// CodeFilter wraps a coupon.Repository, short-circuiting FindByCode for codes
// that are definitely absent. All other methods delegate; Create additionally
// feeds the new code into the filter.
//
// Between rebuilds the filter only grows. A soft-deleted coupon's code stays
// in it until the next rebuild, which merely sends its lookups to the
// repository. The repository still answers authoritatively.
type CodeFilter struct {
	coupon.Repository

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter builds the filter from all currently live coupon codes.
func NewCodeFilter(ctx context.Context, repo coupon.Repository) (*CodeFilter, error) {
	cf := &CodeFilter{Repository: repo}
	if err := cf.Rebuild(ctx); err != nil {
		return nil, err
	}
	return cf, nil
}

// Rebuild swaps in a fresh filter built from the repository's current live
// codes. Codes inserted behind the filter's back become findable, and
// soft-deleted codes stop costing a lookup.
func (cf *CodeFilter) Rebuild(ctx context.Context) error {
	coupons, err := cf.Repository.List(ctx)
	if err != nil {
		return errors.Wrap(err, "load coupon codes")
	}

	f := bloom.NewWithEstimates(filterCapacity, filterFPR)
	for _, c := range coupons {
		f.AddString(normalizeCode(c.Code))
	}

	cf.mu.Lock()
	cf.filter = f
	cf.mu.Unlock()
	return nil
}

// Start rebuilds the filter on the given interval until ctx is canceled. A
// failed rebuild is logged and retried on the next tick; the current filter
// keeps serving in the meantime.
func (cf *CodeFilter) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cf.Rebuild(ctx); err != nil {
					zctx.From(ctx).Error("Rebuild coupon code filter", zap.Error(err))
				}
			}
		}
	}()
}

// FindByCode answers a definite miss from memory and delegates otherwise.
func (cf *CodeFilter) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	cf.mu.RLock()
	known := cf.filter.TestString(normalizeCode(code))
	cf.mu.RUnlock()

	if !known {
		return nil, coupon.ErrInvalidCoupon
	}
	return cf.Repository.FindByCode(ctx, code)
}

// Create delegates and records the new code so it is immediately findable.
func (cf *CodeFilter) Create(ctx context.Context, c *coupon.Coupon) error {
	if err := cf.Repository.Create(ctx, c); err != nil {
		return err
	}

	cf.mu.Lock()
	cf.filter.AddString(normalizeCode(c.Code))
	cf.mu.Unlock()
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
