package variant

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

const variantColumns = `
v.id::text, v.product_id::text, p.category_id::text, p.name, v.size, v.stock,
v.base_price_paise, v.offer_price_paise, v.created_at
`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Variant, error) {
	q := `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`
	return scanVariant(r.pool.QueryRow(ctx, q, id))
}

func (r *postgresRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Variant, error) {
	// FOR UPDATE OF v: the joined product row does not need locking.
	q := `
SELECT ` + variantColumns + `
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
FOR UPDATE OF v
`
	return scanVariant(tx.QueryRow(ctx, q, id))
}

func (r *postgresRepo) Reserve(ctx context.Context, tx pgx.Tx, id string, quantity int) error {
	cmd, err := tx.Exec(ctx, `
UPDATE variants
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
`, id, quantity)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *postgresRepo) Release(ctx context.Context, tx pgx.Tx, id string, quantity int) error {
	cmd, err := tx.Exec(ctx, `
UPDATE variants
SET stock = stock + $2
WHERE id = $1
`, id, quantity)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanVariant(row pgx.Row) (*domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.CategoryID,
		&v.ProductName,
		&v.Size,
		&v.Stock,
		&v.BasePricePaise,
		&v.OfferPricePaise,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}
