package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	const q = `
SELECT id::text, user_id::text, created_at
FROM carts
WHERE user_id = $1
`
	var cart domain.Cart
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT id::text, cart_id::text, variant_id::text, size, quantity, created_at
FROM cart_lines
WHERE cart_id = $1
ORDER BY created_at ASC
`
	rows, err := r.pool.Query(ctx, linesQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ID, &line.CartID, &line.VariantID, &line.Size, &line.Quantity, &line.CreatedAt); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &cart, nil
}

func (r *postgresRepo) AddLine(ctx context.Context, userID, variantID, size string, quantity int) (*domain.CartLine, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var cartID string
	err = tx.QueryRow(ctx, `
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id::text
`, userID).Scan(&cartID)
	if err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}

	var line domain.CartLine
	err = tx.QueryRow(ctx, `
INSERT INTO cart_lines (cart_id, variant_id, size, quantity)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, variant_id, size)
DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
RETURNING id::text, cart_id::text, variant_id::text, size, quantity, created_at
`, cartID, variantID, size, quantity).Scan(
		&line.ID, &line.CartID, &line.VariantID, &line.Size, &line.Quantity, &line.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert line: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *postgresRepo) UpdateLineQuantity(ctx context.Context, userID, lineID string, quantity int) error {
	if quantity <= 0 {
		return r.RemoveLine(ctx, userID, lineID)
	}
	cmd, err := r.pool.Exec(ctx, `
UPDATE cart_lines
SET quantity = $1
WHERE id = $2 AND cart_id = (SELECT id FROM carts WHERE user_id = $3)
`, quantity, lineID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) RemoveLine(ctx context.Context, userID, lineID string) error {
	cmd, err := r.pool.Exec(ctx, `
DELETE FROM cart_lines
WHERE id = $1 AND cart_id = (SELECT id FROM carts WHERE user_id = $2)
`, lineID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) LinesWithVariants(ctx context.Context, userID string) ([]LineWithVariant, error) {
	const q = `
SELECT
	l.id::text, l.cart_id::text, l.variant_id::text, l.size, l.quantity, l.created_at,
	v.id::text, v.product_id::text, p.category_id::text, p.name, v.size, v.stock,
	v.base_price_paise, v.offer_price_paise, v.created_at
FROM cart_lines l
JOIN carts c ON c.id = l.cart_id
JOIN variants v ON v.id = l.variant_id
JOIN products p ON p.id = v.product_id
WHERE c.user_id = $1
ORDER BY l.created_at ASC
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineWithVariant
	for rows.Next() {
		var lv LineWithVariant
		if err := rows.Scan(
			&lv.Line.ID, &lv.Line.CartID, &lv.Line.VariantID, &lv.Line.Size, &lv.Line.Quantity, &lv.Line.CreatedAt,
			&lv.Variant.ID, &lv.Variant.ProductID, &lv.Variant.CategoryID, &lv.Variant.ProductName, &lv.Variant.Size,
			&lv.Variant.Stock, &lv.Variant.BasePricePaise, &lv.Variant.OfferPricePaise, &lv.Variant.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, rows.Err()
}

func (r *postgresRepo) ClearLines(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `
DELETE FROM cart_lines
WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)
`, userID)
	return err
}
