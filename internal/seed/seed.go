// Package seed inserts demo data for manual testing: a user with an address
// and funded wallet, a small catalog with offers, and two coupons.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type variantSeed struct {
	Size           string
	Stock          int
	BasePricePaise int64
}

type productSeed struct {
	Name     string
	Category string
	Variants []variantSeed
}

// Apply is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	userID, err := ensureUser(ctx, pool, "demo@storefront.local", "Demo User")
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := ensureAddress(ctx, pool, userID); err != nil {
		return fmt.Errorf("ensure address: %w", err)
	}
	if err := ensureWallet(ctx, pool, userID, 50000); err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}

	products := []productSeed{
		{
			Name:     "Classic Tee",
			Category: "Apparel",
			Variants: []variantSeed{
				{Size: "M", Stock: 40, BasePricePaise: 79900},
				{Size: "L", Stock: 25, BasePricePaise: 79900},
			},
		},
		{
			Name:     "Canvas Sneakers",
			Category: "Footwear",
			Variants: []variantSeed{
				{Size: "9", Stock: 12, BasePricePaise: 249900},
				{Size: "10", Stock: 8, BasePricePaise: 249900},
			},
		},
		{
			Name:     "Enamel Mug",
			Category: "Home",
			Variants: []variantSeed{
				{Size: "", Stock: 100, BasePricePaise: 39900},
			},
		},
	}

	var apparelID string
	for _, p := range products {
		catID, err := ensureCategory(ctx, pool, p.Category)
		if err != nil {
			return fmt.Errorf("ensure category %s: %w", p.Category, err)
		}
		if p.Category == "Apparel" {
			apparelID = catID
		}
		if err := upsertProduct(ctx, pool, catID, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}

	if apparelID != "" {
		if err := ensureCategoryOffer(ctx, pool, "Apparel Week", apparelID, 10); err != nil {
			return fmt.Errorf("ensure offer: %w", err)
		}
	}

	now := time.Now()
	if err := ensureCoupon(ctx, pool, couponSeed{
		Code: "WELCOME100", Name: "Welcome", Type: "fixed", AmountPaise: 10000,
		MinPurchasePaise: 50000, Start: now.AddDate(0, -1, 0), End: now.AddDate(1, 0, 0),
	}); err != nil {
		return fmt.Errorf("ensure coupon: %w", err)
	}
	if err := ensureCoupon(ctx, pool, couponSeed{
		Code: "FESTIVE20", Name: "Festive Sale", Type: "percentage", Percent: 20,
		MinPurchasePaise: 100000, Start: now.AddDate(0, -1, 0), End: now.AddDate(0, 3, 0),
		UsageLimit: 500,
	}); err != nil {
		return fmt.Errorf("ensure coupon: %w", err)
	}

	return nil
}

func ensureUser(ctx context.Context, pool *pgxpool.Pool, email, name string) (string, error) {
	const q = `
INSERT INTO users (email, full_name)
VALUES ($1, $2)
ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name
RETURNING id::text
`
	var id string
	if err := pool.QueryRow(ctx, q, email, name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func ensureAddress(ctx context.Context, pool *pgxpool.Pool, userID string) error {
	const q = `
INSERT INTO addresses (user_id, full_name, line1, city, state, pincode, phone)
SELECT $1, 'Demo User', '42 MG Road', 'Bengaluru', 'Karnataka', '560001', '9800000000'
WHERE NOT EXISTS (SELECT 1 FROM addresses WHERE user_id = $1)
`
	_, err := pool.Exec(ctx, q, userID)
	return err
}

func ensureWallet(ctx context.Context, pool *pgxpool.Pool, userID string, balancePaise int64) error {
	const q = `
INSERT INTO wallets (user_id, balance_paise)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING
`
	_, err := pool.Exec(ctx, q, userID, balancePaise)
	return err
}

func ensureCategory(ctx context.Context, pool *pgxpool.Pool, name string) (string, error) {
	const q = `
INSERT INTO categories (name)
VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id::text
`
	var id string
	if err := pool.QueryRow(ctx, q, name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, categoryID string, p productSeed) error {
	const productQ = `
INSERT INTO products (category_id, name)
SELECT $1, $2
WHERE NOT EXISTS (SELECT 1 FROM products WHERE category_id = $1 AND name = $2)
`
	if _, err := pool.Exec(ctx, productQ, categoryID, p.Name); err != nil {
		return err
	}

	const variantQ = `
INSERT INTO variants (product_id, size, stock, base_price_paise)
SELECT p.id, $2, $3, $4
FROM products p
WHERE p.category_id = $1 AND p.name = $5
ON CONFLICT (product_id, size) DO UPDATE
SET stock = EXCLUDED.stock,
    base_price_paise = EXCLUDED.base_price_paise
`
	for _, v := range p.Variants {
		if _, err := pool.Exec(ctx, variantQ, categoryID, v.Size, v.Stock, v.BasePricePaise, p.Name); err != nil {
			return err
		}
	}
	return nil
}

func ensureCategoryOffer(ctx context.Context, pool *pgxpool.Pool, name, categoryID string, percent int) error {
	const offerQ = `
INSERT INTO offers (name, scope, discount_percent)
SELECT $1, 'category', $2
WHERE NOT EXISTS (SELECT 1 FROM offers WHERE name = $1)
`
	if _, err := pool.Exec(ctx, offerQ, name, percent); err != nil {
		return err
	}

	const linkQ = `
INSERT INTO offer_categories (offer_id, category_id)
SELECT o.id, $2 FROM offers o WHERE o.name = $1
ON CONFLICT DO NOTHING
`
	_, err := pool.Exec(ctx, linkQ, name, categoryID)
	return err
}

type couponSeed struct {
	Code             string
	Name             string
	Type             string
	AmountPaise      int64
	Percent          int
	MinPurchasePaise int64
	Start            time.Time
	End              time.Time
	UsageLimit       int
}

func ensureCoupon(ctx context.Context, pool *pgxpool.Pool, c couponSeed) error {
	var amount, percent, limit any
	if c.Type == "fixed" {
		amount = c.AmountPaise
	} else {
		percent = c.Percent
	}
	if c.UsageLimit > 0 {
		limit = c.UsageLimit
	}

	const q = `
INSERT INTO coupons (code, name, coupon_type, amount_paise, percent, min_purchase_paise, start_date, end_date, usage_limit)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name,
    min_purchase_paise = EXCLUDED.min_purchase_paise,
    start_date = EXCLUDED.start_date,
    end_date = EXCLUDED.end_date
`
	_, err := pool.Exec(ctx, q, c.Code, c.Name, c.Type, amount, percent, c.MinPurchasePaise, c.Start, c.End, limit)
	return err
}
