// Command seed-db runs migrations and loads fixture data: the product
// catalog from a JSON file, a few sample coupons, and shopper/admin API keys.
// Every insert is an upsert, so re-running is safe.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/velamart/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Slug  string          `json:"slug"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		shopperKey   string
		adminKey     string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&shopperKey, "shopper-key", "", "shopper API key to seed (or SHOP_SEED_SHOPPER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or SHOP_SEED_ADMIN_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if shopperKey == "" {
		shopperKey = os.Getenv("SHOP_SEED_SHOPPER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("SHOP_SEED_ADMIN_KEY")
	}
	if pepper == "" {
		pepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, shopperKey, adminKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed")
}

func run(ctx context.Context, databaseURL, productsFile, shopperKey, adminKey, pepper string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if shopperKey != "" {
		if err := seedAPIKey(ctx, pool, shopperKey, pepper, "seed-shopper", "shopper"); err != nil {
			return errors.Wrap(err, "seed shopper key")
		}
	}
	if adminKey != "" {
		if err := seedAPIKey(ctx, pool, adminKey, pepper, "seed-admin", "admin"); err != nil {
			return errors.Wrap(err, "seed admin key")
		}
	}
	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, title, slug, price, stock)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title, slug = EXCLUDED.slug, price = EXCLUDED.price,
    stock = EXCLUDED.stock, deleted_at = NULL, updated_at = now()`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.Title, p.Slug, p.Price, p.Stock); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}
	}
	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (id, code, description, discount_type, discount_value, max_discount, usage_limit, per_user_limit, min_cart_value)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT DO NOTHING`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	type seedCoupon struct {
		code, description, discountType string
		value                           string
		maxDiscount                     *string
		usageLimit, perUserLimit        *int
		minCartValue                    *string
	}

	ten := 10
	one := 1
	cap20 := "20"
	min50 := "50"

	coupons := []seedCoupon{
		{code: "SAVE10", description: "10% off", discountType: "percentage", value: "10", maxDiscount: &cap20},
		{code: "FLAT5", description: "$5 off orders over $50", discountType: "fixed", value: "5", minCartValue: &min50},
		{code: "WELCOME", description: "15% off, once per shopper", discountType: "percentage", value: "15", usageLimit: &ten, perUserLimit: &one},
	}

	slog.Info("seeding coupons", slog.Int("count", len(coupons)))
	for _, c := range coupons {
		value := decimal.RequireFromString(c.value)
		var maxDiscount, minCart *decimal.Decimal
		if c.maxDiscount != nil {
			d := decimal.RequireFromString(*c.maxDiscount)
			maxDiscount = &d
		}
		if c.minCartValue != nil {
			d := decimal.RequireFromString(*c.minCartValue)
			minCart = &d
		}
		_, err := pool.Exec(ctx, upsertCouponSQL,
			uuid.NewString(), c.code, c.description, c.discountType, value,
			maxDiscount, c.usageLimit, c.perUserLimit, minCart,
		)
		if err != nil {
			return errors.Wrapf(err, "seed coupon %s", c.code)
		}
	}
	return nil
}

const upsertAPIKeySQL = `
INSERT INTO api_keys (id, key_hash, name, user_id, role)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key_hash) DO UPDATE SET role = EXCLUDED.role, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, key, pepper, name, role string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	hash := hex.EncodeToString(mac.Sum(nil))

	slog.Info("seeding api key", slog.String("name", name), slog.String("role", role))
	_, err := pool.Exec(ctx, upsertAPIKeySQL, uuid.NewString(), hash, name, name, role)
	return errors.Wrapf(err, "seed key %s", name)
}
