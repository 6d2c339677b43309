package domain

import "time"

type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

type TransactionStatus string

// TransactionCompleted is the only status the ledger writes: debits and
// credits settle inside the transaction that moves the balance.
const TransactionCompleted TransactionStatus = "COMPLETED"

// Wallet holds a user's stored-value balance. The balance is never mutated
// without a corresponding Transaction row, so sum(transactions) == balance
// outside of in-flight operations.
type Wallet struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	BalancePaise int64     `json:"balancePaise"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Transaction is an immutable wallet ledger entry.
type Transaction struct {
	ID          string            `json:"id"`
	WalletID    string            `json:"walletId"`
	Type        TransactionType   `json:"type"`
	AmountPaise int64             `json:"amountPaise"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description,omitempty"`
	OrderID     *string           `json:"orderId,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}
