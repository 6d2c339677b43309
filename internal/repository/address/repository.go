package address

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// GetForUser returns the address only when it belongs to the user.
	GetForUser(ctx context.Context, userID, addressID string) (*domain.Address, error)
}
