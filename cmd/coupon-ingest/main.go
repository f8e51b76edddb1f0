// Command coupon-ingest imports promo codes from gzip-compressed vendor feed
// files into the coupons table.
//
// Vendor feeds are noisy: each file lists millions of candidate codes, most
// of them junk. A code is trusted only when it appears in at least two
// independent feeds. The tool streams every feed twice: pass one builds a
// bloom filter per feed, pass two re-streams each feed and keeps codes that
// probably occur in another feed, then an exact cross-check picks the codes
// seen in two or more.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/velamart/storefront/internal/domain/coupon"
	"github.com/velamart/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFeeds      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// promoRule is the discount to attach to a known promo code.
type promoRule struct {
	discountType  coupon.DiscountType
	discountValue string
	description   string
}

var promoRules = map[string]promoRule{
	"FIFTYOFF": {coupon.DiscountPercentage, "50", "50% off the entire order"},
	"SIXTYOFF": {coupon.DiscountPercentage, "60", "60% off the entire order"},
	"GNULINUX": {coupon.DiscountPercentage, "15", "Open source discount: 15% off"},
	"OVER9000": {coupon.DiscountFixed, "9", "$9 off your order"},
	"HAPPYHRS": {coupon.DiscountPercentage, "18", "Happy Hours: 18% off"},
}

var defaultPromoRule = promoRule{
	discountType:  coupon.DiscountPercentage,
	discountValue: "10",
	description:   "Promo code: 10% off",
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promofeedN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	feeds := make([]string, numFeeds)
	for i := range numFeeds {
		feeds[i] = filepath.Join(dataDir, fmt.Sprintf("promofeed%d.gz", i+1))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("feeds", numFeeds))
	filters, err := buildFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: cross-checking feeds")
	trusted, err := trustedCodes(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "cross-check feeds")
	}
	slog.Info("trusted codes found", slog.Int("count", len(trusted)))

	if len(trusted) == 0 {
		slog.Info("nothing to insert")
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return insertCoupons(ctx, pool, trusted)
}

// buildFilters streams every feed once and builds one bloom filter per feed,
// concurrently.
func buildFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			err := streamFeed(ctx, f, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("feed", i+1), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "feed %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("feed", i+1), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// trustedCodes re-streams each feed, keeping codes that probably occur in at
// least one other feed, then merges the per-feed bitmasks and keeps codes
// seen in two or more feeds.
func trustedCodes(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]string, error) {
	candidates := make([]map[string]uint, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(func() error {
			found := make(map[string]uint)
			feedBit := uint(1) << uint(i)

			err := streamFeed(ctx, f, func(code string) {
				for j, other := range filters {
					if j == i {
						continue
					}
					if other.TestString(code) {
						found[code] |= feedBit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "feed %d", i+1)
			}

			slog.Info("pass 2 complete", slog.Int("feed", i+1), slog.Int("candidates", len(found)))
			candidates[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, found := range candidates {
		for code, mask := range found {
			merged[code] |= mask
		}
	}

	var trusted []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			trusted = append(trusted, code)
		}
	}
	return trusted, nil
}

// streamFeed calls fn for every well-formed code line in a gzip feed.
func streamFeed(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := scanner.Text()
		if len(code) >= minCodeLen && len(code) <= maxCodeLen {
			fn(code)
		}
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

const insertCouponSQL = `
INSERT INTO coupons (id, code, description, discount_type, discount_value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT DO NOTHING`

// insertCoupons batch-inserts the trusted codes, attaching the special rule
// for known codes and the default promo rule for everything else. Existing
// codes are left untouched.
func insertCoupons(ctx context.Context, pool interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}, codes []string) error {
	now := time.Now()
	batch := &pgx.Batch{}
	for _, code := range codes {
		rule, ok := promoRules[code]
		if !ok {
			rule = defaultPromoRule
		}
		value, err := decimal.NewFromString(rule.discountValue)
		if err != nil {
			return errors.Wrapf(err, "rule value for %s", code)
		}
		batch.Queue(insertCouponSQL, uuid.NewString(), code, rule.description, string(rule.discountType), value, now)
	}

	slog.Info("inserting coupons", slog.Int("count", batch.Len()))
	return errors.Wrap(pool.SendBatch(ctx, batch).Close(), "insert coupons")
}
