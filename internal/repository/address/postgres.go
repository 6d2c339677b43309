package address

import (
	"context"
	"errors"

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

func (r *postgresRepo) GetForUser(ctx context.Context, userID, addressID string) (*domain.Address, error) {
	const q = `
SELECT id::text, user_id::text, full_name, line1, city, state, pincode, phone
FROM addresses
WHERE id = $1 AND user_id = $2
`
	var a domain.Address
	err := r.pool.QueryRow(ctx, q, addressID, userID).Scan(
		&a.ID, &a.UserID, &a.FullName, &a.Line1, &a.City, &a.State, &a.Pincode, &a.Phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
