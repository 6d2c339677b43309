package wallet

import (
	"context"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

// Repository is the wallet ledger. Debit and Credit mutate the balance and
// write the matching transaction row inside the caller's transaction; the
// balance is never touched without a ledger entry.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error)
	// Debit re-checks balance >= amount at lock time; returns
	// domain.ErrInsufficientBalance when the balance has dropped since an
	// earlier unlocked read.
	Debit(ctx context.Context, tx pgx.Tx, walletID string, amountPaise int64, orderID *string, description string) (*domain.Transaction, error)
	Credit(ctx context.Context, tx pgx.Tx, walletID string, amountPaise int64, orderID *string, description string) (*domain.Transaction, error)
	Transactions(ctx context.Context, walletID string) ([]domain.Transaction, error)
}
