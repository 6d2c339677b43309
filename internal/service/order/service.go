// Package order manages the post-purchase lifecycle: status progression,
// cancellation, and returns. Every mutation locks the order row first, then
// variant rows in ascending id order, then the wallet, then the coupon, the
// same acquisition order finalization uses. Compensations (stock release,
// wallet refund, coupon usage decrement) run in the same transaction as the
// status change and are guarded by current status, so replays are no-ops.
package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
	"storefront/internal/pricing"
	orderrepo "storefront/internal/repository/order"
)

type Service struct {
	db       txBeginner
	orders   orderRepo
	variants variantRepo
	wallets  walletRepo
	coupons  couponRepo
	logger   *log.Logger
	now      func() time.Time
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type orderRepo interface {
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
	GetForUser(ctx context.Context, userID, publicOrderID string) (*domain.Order, error)
	GetForUserForUpdate(ctx context.Context, tx pgx.Tx, userID, publicOrderID string) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Order, error)
	GetByPublicIDForUpdate(ctx context.Context, tx pgx.Tx, publicOrderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, orderID string, status domain.OrderStatus) error
	UpdateItemStatus(ctx context.Context, tx pgx.Tx, itemID string, status domain.ItemStatus) error
	UpdateItemsStatusExcept(ctx context.Context, tx pgx.Tx, orderID string, status domain.ItemStatus, except []domain.ItemStatus) error
	CreateReturnRequest(ctx context.Context, tx pgx.Tx, rr domain.ReturnRequest) (*domain.ReturnRequest, error)
	GetReturnRequestForUpdate(ctx context.Context, tx pgx.Tx, requestID string) (*domain.ReturnRequest, error)
	UpdateReturnRequest(ctx context.Context, tx pgx.Tx, requestID string, status domain.ReturnStatus, refundPaise int64) error
}

type variantRepo interface {
	Release(ctx context.Context, tx pgx.Tx, id string, quantity int) error
}

type walletRepo interface {
	GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error)
	Credit(ctx context.Context, tx pgx.Tx, walletID string, amountPaise int64, orderID *string, description string) (*domain.Transaction, error)
}

type couponRepo interface {
	GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*domain.Coupon, error)
	DecrementUsage(ctx context.Context, tx pgx.Tx, couponID string) error
}

func New(db txBeginner, orders orderrepo.Repository, variants variantRepo, wallets walletRepo, coupons couponRepo, logger *log.Logger) *Service {
	return &Service{
		db:       db,
		orders:   orders,
		variants: variants,
		wallets:  wallets,
		coupons:  coupons,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListForUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, publicOrderID string) (*domain.Order, error) {
	return s.orders.GetForUser(ctx, userID, publicOrderID)
}

// Cancel cancels the whole order: releases stock for every still-cancellable
// item, refunds the prorated paid amount to the wallet, and hands the coupon
// use back. Cancelling an already-cancelled order is a no-op.
func (s *Service) Cancel(ctx context.Context, userID, publicOrderID string) (*domain.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetForUserForUpdate(ctx, tx, userID, publicOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderCancelled {
		return order, nil
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("order %s is %s: %w", publicOrderID, order.Status, domain.ErrInvalidTransition)
	}

	if err := s.cancelLocked(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// cancelLocked does the cancellation work on an already-locked order. Shared
// by user cancellation and the admin status update.
func (s *Service) cancelLocked(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	itemsTotal := order.ItemsTotalPaise()

	var refundPaise int64
	for i := range order.Items {
		it := &order.Items[i]
		if !itemCancellable(it.Status) {
			continue
		}
		if err := s.variants.Release(ctx, tx, it.VariantID, it.Quantity); err != nil {
			return err
		}
		if order.PaymentStatus == domain.PaymentStatusPaid {
			refundPaise += pricing.ProratedRefund(it.TotalPaise(), order.CouponDiscountPaise, itemsTotal)
		}
		if err := s.orders.UpdateItemStatus(ctx, tx, it.ID, domain.ItemCancelled); err != nil {
			return err
		}
		it.Status = domain.ItemCancelled
	}

	if refundPaise > 0 {
		if err := s.refund(ctx, tx, order, refundPaise, "Refund for cancelled order "+order.OrderID); err != nil {
			return err
		}
	}

	if order.CouponCode != nil {
		if err := s.releaseCoupon(ctx, tx, *order.CouponCode); err != nil {
			return err
		}
	}

	if err := s.orders.UpdateStatus(ctx, tx, order.ID, domain.OrderCancelled); err != nil {
		return err
	}
	order.Status = domain.OrderCancelled
	return nil
}

// CancelItem cancels a single line. When it was the last live line the whole
// order flips to cancelled (returning the coupon use), otherwise to
// partially_cancelled. Re-cancelling a cancelled item is a no-op.
func (s *Service) CancelItem(ctx context.Context, userID, publicOrderID, itemID string) (*domain.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetForUserForUpdate(ctx, tx, userID, publicOrderID)
	if err != nil {
		return nil, err
	}

	item := findItem(order, itemID)
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if item.Status == domain.ItemCancelled {
		return order, nil
	}
	if !order.Status.Cancellable() || !itemCancellable(item.Status) {
		return nil, fmt.Errorf("item %s is %s: %w", itemID, item.Status, domain.ErrInvalidTransition)
	}

	if err := s.variants.Release(ctx, tx, item.VariantID, item.Quantity); err != nil {
		return nil, err
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		refund := pricing.ProratedRefund(item.TotalPaise(), order.CouponDiscountPaise, order.ItemsTotalPaise())
		if refund > 0 {
			desc := fmt.Sprintf("Refund for cancelled item %s (order %s)", item.ProductName, order.OrderID)
			if err := s.refund(ctx, tx, order, refund, desc); err != nil {
				return nil, err
			}
		}
	}
	if err := s.orders.UpdateItemStatus(ctx, tx, item.ID, domain.ItemCancelled); err != nil {
		return nil, err
	}
	item.Status = domain.ItemCancelled

	next := domain.OrderPartiallyCancelled
	if allItems(order, domain.ItemCancelled) {
		next = domain.OrderCancelled
		if order.CouponCode != nil {
			if err := s.releaseCoupon(ctx, tx, *order.CouponCode); err != nil {
				return nil, err
			}
		}
	}
	if err := s.orders.UpdateStatus(ctx, tx, order.ID, next); err != nil {
		return nil, err
	}
	order.Status = next

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// RequestReturn opens a return for a delivered item inside the post-delivery
// window. A repeated request for the same item is a no-op.
func (s *Service) RequestReturn(ctx context.Context, userID, publicOrderID, itemID, reason string) (*domain.ReturnRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetForUserForUpdate(ctx, tx, userID, publicOrderID)
	if err != nil {
		return nil, err
	}
	if order.DeliveredAt == nil {
		return nil, fmt.Errorf("order %s not delivered: %w", publicOrderID, domain.ErrInvalidTransition)
	}
	if s.now().After(order.DeliveredAt.Add(domain.ReturnWindow)) {
		return nil, domain.ErrReturnWindowClosed
	}

	item := findItem(order, itemID)
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if item.Status == domain.ItemReturnRequested {
		return nil, nil
	}
	if item.Status != domain.ItemDelivered {
		return nil, fmt.Errorf("item %s is %s: %w", itemID, item.Status, domain.ErrInvalidTransition)
	}

	rr, err := s.orders.CreateReturnRequest(ctx, tx, domain.ReturnRequest{
		OrderID:     order.ID,
		OrderItemID: item.ID,
		UserID:      userID,
		Reason:      reason,
		Status:      domain.ReturnRequested,
	})
	if err != nil {
		return nil, err
	}
	if err := s.orders.UpdateItemStatus(ctx, tx, item.ID, domain.ItemReturnRequested); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rr, nil
}

// ApproveReturn moves a requested return to approved. Idempotent.
func (s *Service) ApproveReturn(ctx context.Context, requestID string) error {
	return s.reviewReturn(ctx, requestID, domain.ReturnApproved, domain.ItemReturnApproved)
}

// RejectReturn moves a requested return to rejected. Idempotent.
func (s *Service) RejectReturn(ctx context.Context, requestID string) error {
	return s.reviewReturn(ctx, requestID, domain.ReturnRejected, domain.ItemReturnRejected)
}

func (s *Service) reviewReturn(ctx context.Context, requestID string, to domain.ReturnStatus, itemStatus domain.ItemStatus) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rr, err := s.orders.GetReturnRequestForUpdate(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if rr.Status == to {
		return nil
	}
	if rr.Status != domain.ReturnRequested {
		return fmt.Errorf("return %s is %s: %w", requestID, rr.Status, domain.ErrInvalidTransition)
	}

	if err := s.orders.UpdateReturnRequest(ctx, tx, requestID, to, 0); err != nil {
		return err
	}
	if err := s.orders.UpdateItemStatus(ctx, tx, rr.OrderItemID, itemStatus); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReceiveReturn completes an approved return once the goods are back: restock,
// credit the prorated refund, and settle the request. Replays are no-ops.
func (s *Service) ReceiveReturn(ctx context.Context, requestID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rr, err := s.orders.GetReturnRequestForUpdate(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if rr.Status == domain.ReturnReceived {
		return nil
	}
	if rr.Status != domain.ReturnApproved {
		return fmt.Errorf("return %s is %s: %w", requestID, rr.Status, domain.ErrInvalidTransition)
	}

	order, err := s.orders.GetByIDForUpdate(ctx, tx, rr.OrderID)
	if err != nil {
		return err
	}
	item := findItem(order, rr.OrderItemID)
	if item == nil {
		return domain.ErrNotFound
	}

	if err := s.variants.Release(ctx, tx, item.VariantID, item.Quantity); err != nil {
		return err
	}

	refund := pricing.ProratedRefund(item.TotalPaise(), order.CouponDiscountPaise, order.ItemsTotalPaise())
	if order.PaymentStatus == domain.PaymentStatusPaid && refund > 0 {
		desc := fmt.Sprintf("Refund for returned item %s (order %s)", item.ProductName, order.OrderID)
		if err := s.refund(ctx, tx, order, refund, desc); err != nil {
			return err
		}
	}

	if err := s.orders.UpdateItemStatus(ctx, tx, item.ID, domain.ItemReturned); err != nil {
		return err
	}
	item.Status = domain.ItemReturned
	if err := s.orders.UpdateReturnRequest(ctx, tx, requestID, domain.ReturnReceived, refund); err != nil {
		return err
	}

	next := domain.OrderPartiallyReturned
	if allItems(order, domain.ItemReturned) {
		next = domain.OrderReturned
	}
	if err := s.orders.UpdateStatus(ctx, tx, order.ID, next); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// terminalItemStatuses never follow the order-level cascade.
var terminalItemStatuses = []domain.ItemStatus{
	domain.ItemCancelled,
	domain.ItemReturnRequested,
	domain.ItemReturnApproved,
	domain.ItemReturnRejected,
	domain.ItemReturned,
}

// UpdateStatus is the admin path for order progression. Transitions outside
// the allow-list are rejected; moving to cancelled runs the full compensation
// path; forward moves cascade to items that have not left the main flow.
func (s *Service) UpdateStatus(ctx context.Context, publicOrderID string, to domain.OrderStatus) (*domain.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.orders.GetByPublicIDForUpdate(ctx, tx, publicOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return order, nil
	}
	if !domain.CanTransition(order.Status, to) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, to, domain.ErrInvalidTransition)
	}

	if to == domain.OrderCancelled {
		if err := s.cancelLocked(ctx, tx, order); err != nil {
			return nil, err
		}
	} else {
		if err := s.orders.UpdateStatus(ctx, tx, order.ID, to); err != nil {
			return nil, err
		}
		order.Status = to
		if is, ok := cascadeItemStatus(to); ok {
			if err := s.orders.UpdateItemsStatusExcept(ctx, tx, order.ID, is, terminalItemStatuses); err != nil {
				return nil, err
			}
			for i := range order.Items {
				if !isTerminalItem(order.Items[i].Status) {
					order.Items[i].Status = is
				}
			}
		}
		if to == domain.OrderDelivered && order.DeliveredAt == nil {
			now := s.now()
			order.DeliveredAt = &now
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) refund(ctx context.Context, tx pgx.Tx, order *domain.Order, amountPaise int64, description string) error {
	wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, order.UserID)
	if err != nil {
		return err
	}
	_, err = s.wallets.Credit(ctx, tx, wallet.ID, amountPaise, &order.ID, description)
	return err
}

func (s *Service) releaseCoupon(ctx context.Context, tx pgx.Tx, code string) error {
	coupon, err := s.coupons.GetByCodeForUpdate(ctx, tx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.coupons.DecrementUsage(ctx, tx, coupon.ID)
}

func findItem(order *domain.Order, itemID string) *domain.OrderItem {
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return &order.Items[i]
		}
	}
	return nil
}

func itemCancellable(s domain.ItemStatus) bool {
	return s == domain.ItemPending || s == domain.ItemConfirmed
}

func isTerminalItem(s domain.ItemStatus) bool {
	for _, t := range terminalItemStatuses {
		if t == s {
			return true
		}
	}
	return false
}

func allItems(order *domain.Order, status domain.ItemStatus) bool {
	for _, it := range order.Items {
		if it.Status != status {
			return false
		}
	}
	return true
}

func cascadeItemStatus(to domain.OrderStatus) (domain.ItemStatus, bool) {
	switch to {
	case domain.OrderConfirmed:
		return domain.ItemConfirmed, true
	case domain.OrderShipped:
		return domain.ItemShipped, true
	case domain.OrderOutForDelivery:
		return domain.ItemOutForDelivery, true
	case domain.OrderDelivered:
		return domain.ItemDelivered, true
	}
	return "", false
}
