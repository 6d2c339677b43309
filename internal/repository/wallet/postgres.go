package wallet

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

const walletColumns = `id::text, user_id::text, balance_paise, is_active, created_at`

func (r *postgresRepo) GetByUser(ctx context.Context, userID string) (*domain.Wallet, error) {
	q := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return scanWallet(r.pool.QueryRow(ctx, q, userID))
}

func (r *postgresRepo) GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error) {
	q := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, q, userID))
}

func (r *postgresRepo) Debit(ctx context.Context, tx pgx.Tx, walletID string, amountPaise int64, orderID *string, description string) (*domain.Transaction, error) {
	cmd, err := tx.Exec(ctx, `
UPDATE wallets
SET balance_paise = balance_paise - $2
WHERE id = $1 AND balance_paise >= $2
`, walletID, amountPaise)
	if err != nil {
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrInsufficientBalance
	}
	return insertTransaction(ctx, tx, walletID, domain.TransactionDebit, amountPaise, orderID, description)
}

func (r *postgresRepo) Credit(ctx context.Context, tx pgx.Tx, walletID string, amountPaise int64, orderID *string, description string) (*domain.Transaction, error) {
	cmd, err := tx.Exec(ctx, `
UPDATE wallets
SET balance_paise = balance_paise + $2
WHERE id = $1
`, walletID, amountPaise)
	if err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return insertTransaction(ctx, tx, walletID, domain.TransactionCredit, amountPaise, orderID, description)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, walletID string, typ domain.TransactionType, amountPaise int64, orderID *string, description string) (*domain.Transaction, error) {
	const q = `
INSERT INTO wallet_transactions (wallet_id, transaction_type, amount_paise, status, description, order_id)
VALUES ($1, $2, $3, 'COMPLETED', $4, $5)
RETURNING id::text, wallet_id::text, transaction_type, amount_paise, status, description, order_id::text, created_at
`
	var t domain.Transaction
	err := tx.QueryRow(ctx, q, walletID, typ, amountPaise, description, orderID).Scan(
		&t.ID, &t.WalletID, &t.Type, &t.AmountPaise, &t.Status, &t.Description, &t.OrderID, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &t, nil
}

func (r *postgresRepo) Transactions(ctx context.Context, walletID string) ([]domain.Transaction, error) {
	const q = `
SELECT id::text, wallet_id::text, transaction_type, amount_paise, status, description, order_id::text, created_at
FROM wallet_transactions
WHERE wallet_id = $1
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, q, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.AmountPaise, &t.Status, &t.Description, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.BalancePaise, &w.IsActive, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}
