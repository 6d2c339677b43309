package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock indicates a variant cannot cover the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientBalance indicates the wallet cannot cover the requested debit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDraftExpired indicates the draft order is absent or past its TTL.
	ErrDraftExpired = errors.New("draft order expired")

	// ErrAmountMismatch indicates the gateway-reported paid amount does not
	// equal the draft's final price.
	ErrAmountMismatch = errors.New("payment amount mismatch")

	// ErrSignatureInvalid indicates the gateway callback signature failed verification.
	ErrSignatureInvalid = errors.New("payment signature invalid")

	// ErrAddressMissing indicates no valid shipping address was selected.
	ErrAddressMissing = errors.New("shipping address missing")

	// ErrCartEmpty indicates checkout was attempted with no cart lines.
	ErrCartEmpty = errors.New("cart is empty")

	// ErrInvalidTransition indicates an order status change outside the allow-list.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrReturnWindowClosed indicates a return was requested after the
	// post-delivery window elapsed.
	ErrReturnWindowClosed = errors.New("return window closed")
)

// CouponReason classifies why a coupon was rejected.
type CouponReason string

const (
	CouponNotFound    CouponReason = "not_found"
	CouponInactive    CouponReason = "inactive"
	CouponNotStarted  CouponReason = "not_started"
	CouponExpired     CouponReason = "expired"
	CouponMinPurchase CouponReason = "min_purchase_not_met"
	CouponExhausted   CouponReason = "usage_limit_reached"
	CouponAlreadyUsed CouponReason = "already_used"
)

// CouponError is returned when a coupon fails validation or redemption.
type CouponError struct {
	Code   string
	Reason CouponReason
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %q invalid: %s", e.Code, e.Reason)
}

// ReconciliationError marks the one failure class that cannot simply abort:
// the gateway confirmed the payment as captured but the local commit failed.
// Callers must surface it as a support case, never as success or plain failure.
type ReconciliationError struct {
	GatewayOrderID string
	PaymentID      string
	Err            error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment %s captured for gateway order %s but finalization failed: %v",
		e.PaymentID, e.GatewayOrderID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
