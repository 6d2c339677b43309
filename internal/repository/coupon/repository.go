package coupon

import (
	"context"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	// GetByCodeForUpdate locks the coupon row for the duration of the caller's
	// transaction so concurrent redemptions serialize on the usage cap.
	GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*domain.Coupon, error)
	// UsageExists reports whether the user has a redemption record for the coupon.
	UsageExists(ctx context.Context, couponID, userID string) (bool, error)
	UsageExistsTx(ctx context.Context, tx pgx.Tx, couponID, userID string) (bool, error)
	// IncrementUsage bumps times_used; the coupons table CHECK constraint is
	// the last line of defense against exceeding usage_limit.
	IncrementUsage(ctx context.Context, tx pgx.Tx, couponID string) error
	DecrementUsage(ctx context.Context, tx pgx.Tx, couponID string) error
	// InsertUsage writes the redemption record. The (coupon, order) unique key
	// makes replays a no-op.
	InsertUsage(ctx context.Context, tx pgx.Tx, couponID, userID, orderID string, discountPaise, cartTotalPaise int64) error
}
