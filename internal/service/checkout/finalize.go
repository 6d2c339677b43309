package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

// CallbackInput is the gateway's payment success callback payload.
type CallbackInput struct {
	GatewayOrderID string `json:"gatewayOrderId" binding:"required"`
	PaymentID      string `json:"gatewayPaymentId" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

// FailureInput is the gateway's payment failure report.
type FailureInput struct {
	GatewayOrderID string `json:"gatewayOrderId" binding:"required"`
	AmountPaise    int64  `json:"amountPaise"`
	FailureType    string `json:"failureType"`
	ErrorCode      string `json:"errorCode"`
	ErrorMessage   string `json:"errorMessage"`
}

// HandleCallback finalizes a paid draft. Signature verification and the paid
// amount fetch happen before any transaction; everything state-changing runs
// in one transaction serialized on the order row:
//
//	lock order by gateway intent id -> verify amount -> reserve stock
//	(variants locked in ascending id order) -> debit wallet -> promote
//	draft -> redeem coupon -> clear cart.
//
// Replays find the order already promoted and return it untouched. Failures
// after the gateway confirmed capture roll everything back and surface as
// domain.ReconciliationError, never as plain failure.
func (s *Service) HandleCallback(ctx context.Context, in CallbackInput) (*domain.Order, error) {
	if !s.gw.VerifySignature(in.GatewayOrderID, in.PaymentID, in.Signature) {
		return nil, domain.ErrSignatureInvalid
	}

	paidPaise, err := s.gw.FetchPaidAmount(ctx, in.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", in.PaymentID, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetByGatewayOrderIDForUpdate(ctx, tx, in.GatewayOrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Payment captured, draft already swept. Support case.
			return nil, s.reconciliation(in, domain.ErrDraftExpired)
		}
		return nil, err
	}

	// Replay: the first callback won the lock and promoted the draft.
	if order.Status != domain.OrderDraft && order.Status != domain.OrderFailed {
		s.metrics.CallbackReplays.Inc()
		return order, nil
	}
	if order.Expired(s.now()) {
		return nil, s.reconciliation(in, domain.ErrDraftExpired)
	}

	if paidPaise != order.FinalPricePaise {
		return nil, fmt.Errorf("paid %d, expected %d: %w", paidPaise, order.FinalPricePaise, domain.ErrAmountMismatch)
	}

	// Items come back ordered by variant id, which fixes the lock acquisition
	// order across concurrent finalizations.
	for _, it := range order.Items {
		if err := s.variants.Reserve(ctx, tx, it.VariantID, it.Quantity); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return nil, s.reconciliation(in, fmt.Errorf("%s (%s): %w", it.ProductName, it.Size, err))
			}
			return nil, err
		}
	}

	if order.WalletPaise > 0 {
		wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, order.UserID)
		if err != nil {
			return nil, s.reconciliation(in, err)
		}
		desc := "Payment for order " + order.OrderID
		if _, err := s.wallets.Debit(ctx, tx, wallet.ID, order.WalletPaise, &order.ID, desc); err != nil {
			return nil, s.reconciliation(in, err)
		}
	}

	if err := s.orders.Promote(ctx, tx, order.ID, in.PaymentID); err != nil {
		return nil, s.reconciliation(in, err)
	}

	couponRedeemed := false
	if order.CouponCode != nil {
		if err := s.redeemCoupon(ctx, tx, order); err != nil {
			return nil, s.reconciliation(in, err)
		}
		couponRedeemed = true
	}

	if err := s.cartRepo.ClearLines(ctx, tx, order.UserID); err != nil {
		return nil, s.reconciliation(in, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, s.reconciliation(in, err)
	}

	order.Status = domain.OrderPending
	order.PaymentStatus = domain.PaymentStatusPaid
	order.GatewayPaymentID = &in.PaymentID
	order.ExpiresAt = nil
	for i := range order.Items {
		order.Items[i].Status = domain.ItemPending
	}

	s.metrics.OrdersFinalized.Inc()
	if couponRedeemed {
		s.metrics.CouponRedemptions.Inc()
	}
	s.notify.SendOrderConfirmation(ctx, *order)

	return order, nil
}

// redeemCoupon re-validates the cap under lock and writes the redemption. The
// (coupon, order) unique key makes the insert replay-safe; a coupon exhausted
// between apply and pay fails the whole finalization.
func (s *Service) redeemCoupon(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	coupon, err := s.coupons.GetByCodeForUpdate(ctx, tx, *order.CouponCode)
	if err != nil {
		return fmt.Errorf("coupon %s: %w", *order.CouponCode, err)
	}
	if cerr := coupon.Validate(s.now()); cerr != nil && cerr.Reason == domain.CouponExhausted {
		return cerr
	}
	if err := s.coupons.IncrementUsage(ctx, tx, coupon.ID); err != nil {
		return err
	}
	return s.coupons.InsertUsage(ctx, tx, coupon.ID, order.UserID, order.ID,
		order.CouponDiscountPaise, order.ItemsTotalPaise())
}

// RecordFailure logs a gateway-reported payment failure and flips the matching
// draft to failed so the user can retry.
func (s *Service) RecordFailure(ctx context.Context, userID string, in FailureInput) error {
	s.metrics.PaymentFailures.Inc()

	var uid *string
	if userID != "" {
		uid = &userID
	}
	if err := s.orders.InsertPaymentFailure(ctx, domain.PaymentFailure{
		UserID:         uid,
		GatewayOrderID: in.GatewayOrderID,
		AmountPaise:    in.AmountPaise,
		FailureType:    in.FailureType,
		ErrorCode:      in.ErrorCode,
		ErrorMessage:   in.ErrorMessage,
	}); err != nil {
		return err
	}
	if err := s.orders.MarkDraftFailed(ctx, in.GatewayOrderID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) reconciliation(in CallbackInput, err error) error {
	s.metrics.Reconciliations.Inc()
	rerr := &domain.ReconciliationError{
		GatewayOrderID: in.GatewayOrderID,
		PaymentID:      in.PaymentID,
		Err:            err,
	}
	s.logger.Printf("reconciliation required: %v", rerr)
	return rerr
}
