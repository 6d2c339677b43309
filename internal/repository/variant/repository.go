package variant

import (
	"context"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

// Repository is the inventory ledger. Reserve and Release are the only write
// paths to stock, and both require the caller's transaction so the row lock
// spans the whole finalization or compensation unit. Reads through GetByID are
// stale by design and must be re-validated under lock at commit time.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Variant, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Variant, error)
	Reserve(ctx context.Context, tx pgx.Tx, id string, quantity int) error
	Release(ctx context.Context, tx pgx.Tx, id string, quantity int) error
}
