package order

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const orderColumns = `
id::text, order_id, user_id::text,
shipping_name, shipping_line1, shipping_city, shipping_state, shipping_pincode, shipping_phone,
payment_method, payment_status, gateway_order_id, gateway_payment_id, status,
subtotal_paise, discount_paise, shipping_paise, coupon_discount_paise, wallet_paise, final_price_paise,
coupon_code, expires_at, delivered_at, created_at
`

func (r *postgresRepo) CreateDraft(ctx context.Context, tx pgx.Tx, in CreateDraftInput) (*domain.Order, error) {
	q := `
INSERT INTO orders (
	order_id, user_id,
	shipping_name, shipping_line1, shipping_city, shipping_state, shipping_pincode, shipping_phone,
	payment_method, payment_status, status,
	subtotal_paise, discount_paise, shipping_paise, coupon_discount_paise, wallet_paise, final_price_paise,
	coupon_code, expires_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', 'draft', $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING ` + orderColumns

	a := in.Amounts
	addr := in.Address
	row := tx.QueryRow(ctx, q,
		domain.NewOrderID(time.Now()), in.UserID,
		addr.FullName, addr.Line1, addr.City, addr.State, addr.Pincode, addr.Phone,
		in.PaymentMethod,
		a.SubtotalPaise, a.DiscountPaise, a.ShippingPaise, a.CouponDiscountPaise, a.WalletPaise, a.FinalPricePaise,
		a.CouponCode, in.ExpiresAt,
	)
	order, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}

	if err := insertItems(ctx, tx, order.ID, in.Items); err != nil {
		return nil, err
	}
	order.Items, err = loadItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []DraftItem) error {
	for _, it := range items {
		_, err := tx.Exec(ctx, `
INSERT INTO order_items (order_id, variant_id, product_name, size, quantity, price_at_purchase_paise, status)
VALUES ($1, $2, $3, $4, $5, $6, 'draft')
`, orderID, it.VariantID, it.ProductName, it.Size, it.Quantity, it.PriceAtPurchasePaise)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *postgresRepo) DeleteExpiredDrafts(ctx context.Context, tx pgx.Tx, userID string, now time.Time) error {
	_, err := tx.Exec(ctx, `
DELETE FROM orders
WHERE user_id = $1 AND status = 'draft' AND expires_at < $2
`, userID, now)
	return err
}

func (r *postgresRepo) GetDraftForUpdate(ctx context.Context, tx pgx.Tx, userID string, now time.Time) (*domain.Order, error) {
	q := `
SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1 AND status = 'draft' AND expires_at > $2
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE
`
	order, err := scanOrder(tx.QueryRow(ctx, q, userID, now))
	if err != nil {
		return nil, err
	}
	order.Items, err = loadItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *postgresRepo) ReplaceDraftItems(ctx context.Context, tx pgx.Tx, orderID string, items []DraftItem) error {
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	return insertItems(ctx, tx, orderID, items)
}

func (r *postgresRepo) UpdateDraftAmounts(ctx context.Context, tx pgx.Tx, orderID string, a DraftAmounts) error {
	cmd, err := tx.Exec(ctx, `
UPDATE orders
SET subtotal_paise = $2,
    discount_paise = $3,
    shipping_paise = $4,
    coupon_code = $5,
    coupon_discount_paise = $6,
    wallet_paise = $7,
    final_price_paise = $8
WHERE id = $1 AND status = 'draft'
`, orderID, a.SubtotalPaise, a.DiscountPaise, a.ShippingPaise, a.CouponCode, a.CouponDiscountPaise, a.WalletPaise, a.FinalPricePaise)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders
SET gateway_order_id = $2
WHERE id = $1
`, orderID, gatewayOrderID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) GetByGatewayOrderIDForUpdate(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRow(ctx, q, gatewayOrderID))
	if err != nil {
		return nil, err
	}
	order.Items, err = loadItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *postgresRepo) Promote(ctx context.Context, tx pgx.Tx, orderID, gatewayPaymentID string) error {
	cmd, err := tx.Exec(ctx, `
UPDATE orders
SET status = 'pending',
    payment_status = 'paid',
    gateway_payment_id = $2,
    expires_at = NULL
WHERE id = $1 AND status IN ('draft', 'failed')
`, orderID, gatewayPaymentID)
	if err != nil {
		return fmt.Errorf("promote order: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	_, err = tx.Exec(ctx, `UPDATE order_items SET status = 'pending' WHERE order_id = $1`, orderID)
	return err
}

func (r *postgresRepo) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND status <> 'draft' ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *postgresRepo) GetForUser(ctx context.Context, userID, publicOrderID string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND order_id = $2`
	order, err := scanOrder(r.pool.QueryRow(ctx, q, userID, publicOrderID))
	if err != nil {
		return nil, err
	}
	order.Items, err = loadItems(ctx, r.pool, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *postgresRepo) GetForUserForUpdate(ctx context.Context, tx pgx.Tx, userID, publicOrderID string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND order_id = $2 FOR UPDATE`
	order, err := scanOrder(tx.QueryRow(ctx, q, userID, publicOrderID))
	if err != nil {
		return nil, err
	}
	order.Items, err = loadItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *postgresRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRow(ctx, q, orderID))
	if err != nil {
		return nil, err
	}
	order.Items, err = loadItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *postgresRepo) GetByPublicIDForUpdate(ctx context.Context, tx pgx.Tx, publicOrderID string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRow(ctx, q, publicOrderID))
	if err != nil {
		return nil, err
	}
	order.Items, err = loadItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID string, status domain.OrderStatus) error {
	var deliveredAt *time.Time
	if status == domain.OrderDelivered {
		now := time.Now()
		deliveredAt = &now
	}
	cmd, err := tx.Exec(ctx, `
UPDATE orders
SET status = $2,
    delivered_at = COALESCE($3, delivered_at)
WHERE id = $1
`, orderID, status, deliveredAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) UpdateItemStatus(ctx context.Context, tx pgx.Tx, itemID string, status domain.ItemStatus) error {
	cmd, err := tx.Exec(ctx, `UPDATE order_items SET status = $2 WHERE id = $1`, itemID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) UpdateItemsStatusExcept(ctx context.Context, tx pgx.Tx, orderID string, status domain.ItemStatus, except []domain.ItemStatus) error {
	_, err := tx.Exec(ctx, `
UPDATE order_items
SET status = $2
WHERE order_id = $1 AND NOT (status = ANY($3))
`, orderID, status, statusStrings(except))
	return err
}

func statusStrings(in []domain.ItemStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (r *postgresRepo) CreateReturnRequest(ctx context.Context, tx pgx.Tx, rr domain.ReturnRequest) (*domain.ReturnRequest, error) {
	const q = `
INSERT INTO return_requests (order_id, order_item_id, user_id, reason, status)
VALUES ($1, $2, $3, $4, 'return_requested')
RETURNING id::text, order_id::text, order_item_id::text, user_id::text, reason, status, refund_paise, requested_at
`
	var out domain.ReturnRequest
	err := tx.QueryRow(ctx, q, rr.OrderID, rr.OrderItemID, rr.UserID, rr.Reason).Scan(
		&out.ID, &out.OrderID, &out.OrderItemID, &out.UserID, &out.Reason, &out.Status, &out.RefundPaise, &out.RequestedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert return request: %w", err)
	}
	return &out, nil
}

func (r *postgresRepo) GetReturnRequestForUpdate(ctx context.Context, tx pgx.Tx, requestID string) (*domain.ReturnRequest, error) {
	const q = `
SELECT id::text, order_id::text, order_item_id::text, user_id::text, reason, status, refund_paise, requested_at
FROM return_requests
WHERE id = $1
FOR UPDATE
`
	var out domain.ReturnRequest
	err := tx.QueryRow(ctx, q, requestID).Scan(
		&out.ID, &out.OrderID, &out.OrderItemID, &out.UserID, &out.Reason, &out.Status, &out.RefundPaise, &out.RequestedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) UpdateReturnRequest(ctx context.Context, tx pgx.Tx, requestID string, status domain.ReturnStatus, refundPaise int64) error {
	cmd, err := tx.Exec(ctx, `
UPDATE return_requests
SET status = $2, refund_paise = $3
WHERE id = $1
`, requestID, status, refundPaise)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) InsertPaymentFailure(ctx context.Context, f domain.PaymentFailure) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO payment_failures (user_id, gateway_order_id, amount_paise, failure_type, error_code, error_message)
VALUES ($1, $2, $3, $4, $5, $6)
`, f.UserID, f.GatewayOrderID, f.AmountPaise, f.FailureType, f.ErrorCode, f.ErrorMessage)
	return err
}

func (r *postgresRepo) MarkDraftFailed(ctx context.Context, gatewayOrderID string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE orders
SET status = 'failed', payment_status = 'failed'
WHERE gateway_order_id = $1 AND status = 'draft'
`, gatewayOrderID)
	return err
}

func (r *postgresRepo) SweepExpiredDrafts(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `
DELETE FROM orders
WHERE status = 'draft' AND expires_at < $1
`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q rowQuerier, orderID string) ([]domain.OrderItem, error) {
	const itemsQuery = `
SELECT id::text, order_id::text, variant_id::text, product_name, size, quantity, price_at_purchase_paise, status
FROM order_items
WHERE order_id = $1
ORDER BY variant_id ASC
`
	rows, err := q.Query(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.ProductName, &it.Size, &it.Quantity, &it.PriceAtPurchasePaise, &it.Status); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderID, &o.UserID,
		&o.ShippingName, &o.ShippingLine1, &o.ShippingCity, &o.ShippingState, &o.ShippingPincode, &o.ShippingPhone,
		&o.PaymentMethod, &o.PaymentStatus, &o.GatewayOrderID, &o.GatewayPaymentID, &o.Status,
		&o.SubtotalPaise, &o.DiscountPaise, &o.ShippingPaise, &o.CouponDiscountPaise, &o.WalletPaise, &o.FinalPricePaise,
		&o.CouponCode, &o.ExpiresAt, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}
