package order

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

type fakeTx struct {
	pgx.Tx
	committed bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { return nil }

type fakeDB struct {
	tx *fakeTx
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	d.tx = &fakeTx{}
	return d.tx, nil
}

type stubOrderRepo struct {
	order        *domain.Order
	orderErr     error
	rr           *domain.ReturnRequest
	rrErr        error
	createdRR    *domain.ReturnRequest
	statusByID   map[string]domain.OrderStatus
	itemStatuses map[string]domain.ItemStatus
	cascade      *domain.ItemStatus
	rrStatus     domain.ReturnStatus
	rrRefund     int64
}

func (s *stubOrderRepo) ListForUser(context.Context, string) ([]domain.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) GetForUser(context.Context, string, string) (*domain.Order, error) {
	return s.order, s.orderErr
}

func (s *stubOrderRepo) GetForUserForUpdate(context.Context, pgx.Tx, string, string) (*domain.Order, error) {
	return s.order, s.orderErr
}

func (s *stubOrderRepo) GetByIDForUpdate(context.Context, pgx.Tx, string) (*domain.Order, error) {
	return s.order, s.orderErr
}

func (s *stubOrderRepo) GetByPublicIDForUpdate(context.Context, pgx.Tx, string) (*domain.Order, error) {
	return s.order, s.orderErr
}

func (s *stubOrderRepo) UpdateStatus(_ context.Context, _ pgx.Tx, orderID string, status domain.OrderStatus) error {
	if s.statusByID == nil {
		s.statusByID = map[string]domain.OrderStatus{}
	}
	s.statusByID[orderID] = status
	return nil
}

func (s *stubOrderRepo) UpdateItemStatus(_ context.Context, _ pgx.Tx, itemID string, status domain.ItemStatus) error {
	if s.itemStatuses == nil {
		s.itemStatuses = map[string]domain.ItemStatus{}
	}
	s.itemStatuses[itemID] = status
	return nil
}

func (s *stubOrderRepo) UpdateItemsStatusExcept(_ context.Context, _ pgx.Tx, _ string, status domain.ItemStatus, _ []domain.ItemStatus) error {
	s.cascade = &status
	return nil
}

func (s *stubOrderRepo) CreateReturnRequest(_ context.Context, _ pgx.Tx, rr domain.ReturnRequest) (*domain.ReturnRequest, error) {
	rr.ID = "rr1"
	s.createdRR = &rr
	return &rr, nil
}

func (s *stubOrderRepo) GetReturnRequestForUpdate(context.Context, pgx.Tx, string) (*domain.ReturnRequest, error) {
	return s.rr, s.rrErr
}

func (s *stubOrderRepo) UpdateReturnRequest(_ context.Context, _ pgx.Tx, _ string, status domain.ReturnStatus, refundPaise int64) error {
	s.rrStatus = status
	s.rrRefund = refundPaise
	return nil
}

type stubVariantRepo struct {
	released map[string]int
}

func (s *stubVariantRepo) Release(_ context.Context, _ pgx.Tx, id string, qty int) error {
	if s.released == nil {
		s.released = map[string]int{}
	}
	s.released[id] += qty
	return nil
}

type stubWalletRepo struct {
	wallet   *domain.Wallet
	credited int64
}

func (s *stubWalletRepo) GetByUserForUpdate(context.Context, pgx.Tx, string) (*domain.Wallet, error) {
	if s.wallet == nil {
		return nil, domain.ErrNotFound
	}
	return s.wallet, nil
}

func (s *stubWalletRepo) Credit(_ context.Context, _ pgx.Tx, _ string, amountPaise int64, _ *string, _ string) (*domain.Transaction, error) {
	s.credited += amountPaise
	return &domain.Transaction{AmountPaise: amountPaise}, nil
}

type stubCouponRepo struct {
	coupon      *domain.Coupon
	decremented string
}

func (s *stubCouponRepo) GetByCodeForUpdate(context.Context, pgx.Tx, string) (*domain.Coupon, error) {
	if s.coupon == nil {
		return nil, domain.ErrNotFound
	}
	return s.coupon, nil
}

func (s *stubCouponRepo) DecrementUsage(_ context.Context, _ pgx.Tx, couponID string) error {
	s.decremented = couponID
	return nil
}

type fixtures struct {
	db       *fakeDB
	orders   *stubOrderRepo
	variants *stubVariantRepo
	wallets  *stubWalletRepo
	coupons  *stubCouponRepo
}

func newFixtures() *fixtures {
	return &fixtures{
		db:       &fakeDB{},
		orders:   &stubOrderRepo{},
		variants: &stubVariantRepo{},
		wallets:  &stubWalletRepo{wallet: &domain.Wallet{ID: "w1", UserID: "u1", BalancePaise: 0}},
		coupons:  &stubCouponRepo{},
	}
}

func newService(f *fixtures) *Service {
	return &Service{
		db:       f.db,
		orders:   f.orders,
		variants: f.variants,
		wallets:  f.wallets,
		coupons:  f.coupons,
		logger:   log.New(io.Discard, "", 0),
		now:      func() time.Time { return testNow },
	}
}

// paidOrder has two items: 15000 and 5000, coupon discount 4000.
func paidOrder(status domain.OrderStatus, itemStatus domain.ItemStatus) *domain.Order {
	code := "SAVE40"
	return &domain.Order{
		ID: "o1", OrderID: "ORD-1", UserID: "u1",
		Status:              status,
		PaymentStatus:       domain.PaymentStatusPaid,
		CouponCode:          &code,
		CouponDiscountPaise: 4000,
		Items: []domain.OrderItem{
			{ID: "i1", VariantID: "v1", ProductName: "Tee", Quantity: 3, PriceAtPurchasePaise: 5000, Status: itemStatus},
			{ID: "i2", VariantID: "v2", ProductName: "Mug", Quantity: 1, PriceAtPurchasePaise: 5000, Status: itemStatus},
		},
	}
}

func TestCancelFullOrder(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderPending, domain.ItemPending)
	f.coupons.coupon = &domain.Coupon{ID: "cp1", Code: "SAVE40"}

	svc := newService(f)
	order, err := svc.Cancel(context.Background(), "u1", "ORD-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if order.Status != domain.OrderCancelled {
		t.Fatalf("status = %s, want cancelled", order.Status)
	}
	if f.variants.released["v1"] != 3 || f.variants.released["v2"] != 1 {
		t.Fatalf("stock not released: %v", f.variants.released)
	}
	// Items total 20000, coupon 4000: refund = 20000 - 4000.
	if f.wallets.credited != 16000 {
		t.Fatalf("refunded %d, want 16000", f.wallets.credited)
	}
	if f.coupons.decremented != "cp1" {
		t.Fatal("coupon use not returned")
	}
	if !f.db.tx.committed {
		t.Fatal("transaction not committed")
	}
}

func TestCancelAlreadyCancelledIsNoOp(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderCancelled, domain.ItemCancelled)

	svc := newService(f)
	if _, err := svc.Cancel(context.Background(), "u1", "ORD-1"); err != nil {
		t.Fatalf("replay must succeed: %v", err)
	}
	if len(f.variants.released) != 0 || f.wallets.credited != 0 {
		t.Fatal("replay must not release stock or refund again")
	}
}

func TestCancelShippedOrderRejected(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderShipped, domain.ItemShipped)

	svc := newService(f)
	if _, err := svc.Cancel(context.Background(), "u1", "ORD-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestCancelUnpaidOrderSkipsRefund(t *testing.T) {
	f := newFixtures()
	order := paidOrder(domain.OrderPending, domain.ItemPending)
	order.PaymentStatus = domain.PaymentStatusPending
	f.orders.order = order
	f.coupons.coupon = &domain.Coupon{ID: "cp1"}

	svc := newService(f)
	if _, err := svc.Cancel(context.Background(), "u1", "ORD-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.wallets.credited != 0 {
		t.Fatalf("unpaid order refunded %d", f.wallets.credited)
	}
	if f.variants.released["v1"] != 3 {
		t.Fatal("stock must still be released")
	}
}

func TestCancelItemProratesRefund(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderPending, domain.ItemPending)

	svc := newService(f)
	order, err := svc.CancelItem(context.Background(), "u1", "ORD-1", "i1")
	if err != nil {
		t.Fatalf("CancelItem: %v", err)
	}

	// i1 is 15000 of 20000: refund = 15000 - 4000*15000/20000 = 12000.
	if f.wallets.credited != 12000 {
		t.Fatalf("refunded %d, want 12000", f.wallets.credited)
	}
	if f.variants.released["v1"] != 3 {
		t.Fatalf("stock not released: %v", f.variants.released)
	}
	if order.Status != domain.OrderPartiallyCancelled {
		t.Fatalf("status = %s, want partially_cancelled", order.Status)
	}
	if f.coupons.decremented != "" {
		t.Fatal("partial cancel must keep the coupon use")
	}
}

func TestCancelLastItemCancelsOrder(t *testing.T) {
	f := newFixtures()
	order := paidOrder(domain.OrderPartiallyCancelled, domain.ItemPending)
	order.Items[0].Status = domain.ItemCancelled
	f.orders.order = order
	f.coupons.coupon = &domain.Coupon{ID: "cp1"}

	svc := newService(f)
	got, err := svc.CancelItem(context.Background(), "u1", "ORD-1", "i2")
	if err != nil {
		t.Fatalf("CancelItem: %v", err)
	}
	if got.Status != domain.OrderCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if f.coupons.decremented != "cp1" {
		t.Fatal("full cancellation must return the coupon use")
	}
}

func TestCancelItemReplayIsNoOp(t *testing.T) {
	f := newFixtures()
	order := paidOrder(domain.OrderPartiallyCancelled, domain.ItemPending)
	order.Items[0].Status = domain.ItemCancelled
	f.orders.order = order

	svc := newService(f)
	if _, err := svc.CancelItem(context.Background(), "u1", "ORD-1", "i1"); err != nil {
		t.Fatalf("replay must succeed: %v", err)
	}
	if len(f.variants.released) != 0 || f.wallets.credited != 0 {
		t.Fatal("replay must not release stock or refund again")
	}
}

func TestRequestReturnInsideWindow(t *testing.T) {
	f := newFixtures()
	order := paidOrder(domain.OrderDelivered, domain.ItemDelivered)
	delivered := testNow.Add(-3 * 24 * time.Hour)
	order.DeliveredAt = &delivered
	f.orders.order = order

	svc := newService(f)
	rr, err := svc.RequestReturn(context.Background(), "u1", "ORD-1", "i1", "wrong size")
	if err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}
	if rr == nil || rr.Status != domain.ReturnRequested || rr.Reason != "wrong size" {
		t.Fatalf("unexpected request: %+v", rr)
	}
	if f.orders.itemStatuses["i1"] != domain.ItemReturnRequested {
		t.Fatal("item status not updated")
	}
}

func TestRequestReturnWindowClosed(t *testing.T) {
	f := newFixtures()
	order := paidOrder(domain.OrderDelivered, domain.ItemDelivered)
	delivered := testNow.Add(-8 * 24 * time.Hour)
	order.DeliveredAt = &delivered
	f.orders.order = order

	svc := newService(f)
	_, err := svc.RequestReturn(context.Background(), "u1", "ORD-1", "i1", "late")
	if !errors.Is(err, domain.ErrReturnWindowClosed) {
		t.Fatalf("expected window closed, got %v", err)
	}
}

func TestRequestReturnBeforeDelivery(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderShipped, domain.ItemShipped)

	svc := newService(f)
	if _, err := svc.RequestReturn(context.Background(), "u1", "ORD-1", "i1", "x"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestApproveAndReceiveReturn(t *testing.T) {
	f := newFixtures()
	f.orders.rr = &domain.ReturnRequest{ID: "rr1", OrderID: "o1", OrderItemID: "i1", Status: domain.ReturnRequested}

	svc := newService(f)
	if err := svc.ApproveReturn(context.Background(), "rr1"); err != nil {
		t.Fatalf("ApproveReturn: %v", err)
	}
	if f.orders.rrStatus != domain.ReturnApproved || f.orders.itemStatuses["i1"] != domain.ItemReturnApproved {
		t.Fatal("approval not recorded")
	}

	// Goods arrive back.
	f.orders.rr.Status = domain.ReturnApproved
	f.orders.order = paidOrder(domain.OrderDelivered, domain.ItemDelivered)
	f.orders.order.Items[0].Status = domain.ItemReturnApproved

	if err := svc.ReceiveReturn(context.Background(), "rr1"); err != nil {
		t.Fatalf("ReceiveReturn: %v", err)
	}
	if f.variants.released["v1"] != 3 {
		t.Fatal("stock not restocked")
	}
	// i1 refund: 15000 - 4000*15000/20000 = 12000.
	if f.wallets.credited != 12000 || f.orders.rrRefund != 12000 {
		t.Fatalf("refund = %d (recorded %d), want 12000", f.wallets.credited, f.orders.rrRefund)
	}
	if f.orders.statusByID["o1"] != domain.OrderPartiallyReturned {
		t.Fatalf("order status = %s, want partially_returned", f.orders.statusByID["o1"])
	}
}

func TestReceiveReturnReplayIsNoOp(t *testing.T) {
	f := newFixtures()
	f.orders.rr = &domain.ReturnRequest{ID: "rr1", Status: domain.ReturnReceived}

	svc := newService(f)
	if err := svc.ReceiveReturn(context.Background(), "rr1"); err != nil {
		t.Fatalf("replay must succeed: %v", err)
	}
	if len(f.variants.released) != 0 || f.wallets.credited != 0 {
		t.Fatal("replay must not restock or refund again")
	}
}

func TestRejectReturn(t *testing.T) {
	f := newFixtures()
	f.orders.rr = &domain.ReturnRequest{ID: "rr1", OrderItemID: "i1", Status: domain.ReturnRequested}

	svc := newService(f)
	if err := svc.RejectReturn(context.Background(), "rr1"); err != nil {
		t.Fatalf("RejectReturn: %v", err)
	}
	if f.orders.rrStatus != domain.ReturnRejected || f.orders.itemStatuses["i1"] != domain.ItemReturnRejected {
		t.Fatal("rejection not recorded")
	}
}

func TestUpdateStatusForwardCascades(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderConfirmed, domain.ItemConfirmed)

	svc := newService(f)
	order, err := svc.UpdateStatus(context.Background(), "ORD-1", domain.OrderShipped)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if order.Status != domain.OrderShipped {
		t.Fatalf("status = %s, want shipped", order.Status)
	}
	if f.orders.cascade == nil || *f.orders.cascade != domain.ItemShipped {
		t.Fatal("items not cascaded")
	}
}

func TestUpdateStatusRejectsOffList(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderDelivered, domain.ItemDelivered)

	svc := newService(f)
	if _, err := svc.UpdateStatus(context.Background(), "ORD-1", domain.OrderCancelled); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestUpdateStatusToCancelledCompensates(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderConfirmed, domain.ItemConfirmed)
	f.coupons.coupon = &domain.Coupon{ID: "cp1"}

	svc := newService(f)
	order, err := svc.UpdateStatus(context.Background(), "ORD-1", domain.OrderCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if order.Status != domain.OrderCancelled {
		t.Fatalf("status = %s, want cancelled", order.Status)
	}
	if f.variants.released["v1"] != 3 || f.wallets.credited != 16000 {
		t.Fatalf("compensation missing: released=%v credited=%d", f.variants.released, f.wallets.credited)
	}
}

func TestUpdateStatusSameStatusIsNoOp(t *testing.T) {
	f := newFixtures()
	f.orders.order = paidOrder(domain.OrderConfirmed, domain.ItemConfirmed)

	svc := newService(f)
	if _, err := svc.UpdateStatus(context.Background(), "ORD-1", domain.OrderConfirmed); err != nil {
		t.Fatalf("same-status update must succeed: %v", err)
	}
	if len(f.orders.statusByID) != 0 {
		t.Fatal("no status write expected")
	}
}
