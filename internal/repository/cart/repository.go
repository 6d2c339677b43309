package cart

import (
	"context"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

// LineWithVariant is a cart line joined with its variant and product context,
// ready for the pricing engine.
type LineWithVariant struct {
	Line    domain.CartLine
	Variant domain.Variant
}

type Repository interface {
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	// AddLine upserts the (cart, variant, size) line, creating the cart if needed.
	AddLine(ctx context.Context, userID, variantID, size string, quantity int) (*domain.CartLine, error)
	UpdateLineQuantity(ctx context.Context, userID, lineID string, quantity int) error
	RemoveLine(ctx context.Context, userID, lineID string) error
	// LinesWithVariants returns the user's lines joined with live variant data.
	LinesWithVariants(ctx context.Context, userID string) ([]LineWithVariant, error)
	// ClearLines deletes all of the user's cart lines inside the caller's
	// transaction; used by order finalization.
	ClearLines(ctx context.Context, tx pgx.Tx, userID string) error
}
