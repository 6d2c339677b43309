// Package gateway integrates the hosted payment provider. The provider is
// untrusted input: callbacks must pass signature verification and an exact
// paid-amount check before any local state mutates.
package gateway

import "context"

// Intent is a provider-side payment order awaiting capture.
type Intent struct {
	ID          string
	AmountPaise int64
	Currency    string
	KeyID       string
}

type Gateway interface {
	// CreateIntent registers a payment of the given amount with the provider.
	CreateIntent(ctx context.Context, amountPaise int64) (Intent, error)
	// VerifySignature checks the callback HMAC over (intentID, paymentID).
	VerifySignature(intentID, paymentID, signature string) bool
	// FetchPaidAmount returns the captured amount in paise for a payment.
	FetchPaidAmount(ctx context.Context, paymentID string) (int64, error)
}
