package coupon

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

const couponColumns = `
id::text, code, name, coupon_type, amount_paise, percent, min_purchase_paise,
start_date, end_date, is_active, usage_limit, times_used, one_time_per_user
`

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE lower(code) = lower($1)`
	return scanCoupon(r.pool.QueryRow(ctx, q, code))
}

func (r *postgresRepo) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*domain.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE lower(code) = lower($1) FOR UPDATE`
	return scanCoupon(tx.QueryRow(ctx, q, code))
}

func (r *postgresRepo) UsageExists(ctx context.Context, couponID, userID string) (bool, error) {
	return usageExists(ctx, r.pool, couponID, userID)
}

func (r *postgresRepo) UsageExistsTx(ctx context.Context, tx pgx.Tx, couponID, userID string) (bool, error) {
	return usageExists(ctx, tx, couponID, userID)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func usageExists(ctx context.Context, q rowQuerier, couponID, userID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2
)
`, couponID, userID).Scan(&exists)
	return exists, err
}

func (r *postgresRepo) IncrementUsage(ctx context.Context, tx pgx.Tx, couponID string) error {
	_, err := tx.Exec(ctx, `UPDATE coupons SET times_used = times_used + 1 WHERE id = $1`, couponID)
	return err
}

func (r *postgresRepo) DecrementUsage(ctx context.Context, tx pgx.Tx, couponID string) error {
	_, err := tx.Exec(ctx, `UPDATE coupons SET times_used = GREATEST(times_used - 1, 0) WHERE id = $1`, couponID)
	return err
}

func (r *postgresRepo) InsertUsage(ctx context.Context, tx pgx.Tx, couponID, userID, orderID string, discountPaise, cartTotalPaise int64) error {
	_, err := tx.Exec(ctx, `
INSERT INTO coupon_usages (coupon_id, user_id, order_id, discount_paise, cart_total_paise)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (coupon_id, order_id) DO NOTHING
`, couponID, userID, orderID, discountPaise, cartTotalPaise)
	return err
}

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	var amount *int64
	var percent *int
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Name,
		&c.Type,
		&amount,
		&percent,
		&c.MinPurchasePaise,
		&c.StartDate,
		&c.EndDate,
		&c.IsActive,
		&c.UsageLimit,
		&c.TimesUsed,
		&c.OneTimePerUser,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if amount != nil {
		c.AmountPaise = *amount
	}
	if percent != nil {
		c.Percent = *percent
	}
	return &c, nil
}
