package checkout

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/metrics"
	"storefront/internal/pricing"
	cartrepo "storefront/internal/repository/cart"
	orderrepo "storefront/internal/repository/order"
)

// Counters register globally, so the package shares one instance.
var testMetrics = metrics.NewCheckout()

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type fakeDB struct {
	tx *fakeTx
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	d.tx = &fakeTx{}
	return d.tx, nil
}

type stubAggregator struct {
	lines    []pricing.Line
	raw      []cartrepo.LineWithVariant
	linesErr error
	stockErr error
}

func (s *stubAggregator) PricedLines(context.Context, string) ([]pricing.Line, []cartrepo.LineWithVariant, error) {
	return s.lines, s.raw, s.linesErr
}

func (s *stubAggregator) CheckStock([]cartrepo.LineWithVariant) error {
	return s.stockErr
}

type stubCartLines struct {
	cleared bool
}

func (s *stubCartLines) ClearLines(context.Context, pgx.Tx, string) error {
	s.cleared = true
	return nil
}

type stubOrderRepo struct {
	draft        *domain.Order
	draftErr     error
	created      *orderrepo.CreateDraftInput
	createdOut   *domain.Order
	replaced     []orderrepo.DraftItem
	amounts      *orderrepo.DraftAmounts
	gatewayID    string
	byGateway    *domain.Order
	byGatewayErr error
	promotedID   string
	promotedPay  string
	promoteErr   error
	forUser      *domain.Order
	forUserErr   error
	failure      *domain.PaymentFailure
	failedDraft  string
	swept        int64
	expiredDel   bool
}

func (s *stubOrderRepo) CreateDraft(_ context.Context, _ pgx.Tx, in orderrepo.CreateDraftInput) (*domain.Order, error) {
	s.created = &in
	if s.createdOut != nil {
		return s.createdOut, nil
	}
	return &domain.Order{ID: "o1", OrderID: "ORD-1", UserID: in.UserID, Status: domain.OrderDraft}, nil
}

func (s *stubOrderRepo) DeleteExpiredDrafts(context.Context, pgx.Tx, string, time.Time) error {
	s.expiredDel = true
	return nil
}

func (s *stubOrderRepo) GetDraftForUpdate(context.Context, pgx.Tx, string, time.Time) (*domain.Order, error) {
	if s.draftErr != nil {
		return nil, s.draftErr
	}
	if s.draft == nil {
		return nil, domain.ErrNotFound
	}
	return s.draft, nil
}

func (s *stubOrderRepo) ReplaceDraftItems(_ context.Context, _ pgx.Tx, _ string, items []orderrepo.DraftItem) error {
	s.replaced = items
	return nil
}

func (s *stubOrderRepo) UpdateDraftAmounts(_ context.Context, _ pgx.Tx, _ string, a orderrepo.DraftAmounts) error {
	s.amounts = &a
	return nil
}

func (s *stubOrderRepo) SetGatewayOrderID(_ context.Context, _, gatewayOrderID string) error {
	s.gatewayID = gatewayOrderID
	return nil
}

func (s *stubOrderRepo) GetByGatewayOrderIDForUpdate(context.Context, pgx.Tx, string) (*domain.Order, error) {
	if s.byGatewayErr != nil {
		return nil, s.byGatewayErr
	}
	if s.byGateway == nil {
		return nil, domain.ErrNotFound
	}
	return s.byGateway, nil
}

func (s *stubOrderRepo) Promote(_ context.Context, _ pgx.Tx, orderID, paymentID string) error {
	if s.promoteErr != nil {
		return s.promoteErr
	}
	s.promotedID = orderID
	s.promotedPay = paymentID
	return nil
}

func (s *stubOrderRepo) GetForUser(context.Context, string, string) (*domain.Order, error) {
	return s.forUser, s.forUserErr
}

func (s *stubOrderRepo) InsertPaymentFailure(_ context.Context, f domain.PaymentFailure) error {
	s.failure = &f
	return nil
}

func (s *stubOrderRepo) MarkDraftFailed(_ context.Context, gatewayOrderID string) error {
	s.failedDraft = gatewayOrderID
	return nil
}

func (s *stubOrderRepo) SweepExpiredDrafts(context.Context, time.Time) (int64, error) {
	return s.swept, nil
}

type stubVariantRepo struct {
	reserved    map[string]int
	reserveErr  error
	failVariant string
}

func (s *stubVariantRepo) Reserve(_ context.Context, _ pgx.Tx, id string, qty int) error {
	if s.reserveErr != nil && (s.failVariant == "" || s.failVariant == id) {
		return s.reserveErr
	}
	if s.reserved == nil {
		s.reserved = map[string]int{}
	}
	s.reserved[id] += qty
	return nil
}

type stubCouponRepo struct {
	coupon        *domain.Coupon
	couponErr     error
	usageExists   bool
	incremented   string
	usageOrderID  string
	usageDiscount int64
}

func (s *stubCouponRepo) GetByCodeForUpdate(context.Context, pgx.Tx, string) (*domain.Coupon, error) {
	if s.couponErr != nil {
		return nil, s.couponErr
	}
	if s.coupon == nil {
		return nil, domain.ErrNotFound
	}
	return s.coupon, nil
}

func (s *stubCouponRepo) UsageExistsTx(context.Context, pgx.Tx, string, string) (bool, error) {
	return s.usageExists, nil
}

func (s *stubCouponRepo) IncrementUsage(_ context.Context, _ pgx.Tx, couponID string) error {
	s.incremented = couponID
	return nil
}

func (s *stubCouponRepo) InsertUsage(_ context.Context, _ pgx.Tx, _, _, orderID string, discountPaise, _ int64) error {
	s.usageOrderID = orderID
	s.usageDiscount = discountPaise
	return nil
}

type stubWalletRepo struct {
	wallet    *domain.Wallet
	walletErr error
	debited   int64
	debitErr  error
}

func (s *stubWalletRepo) GetByUser(context.Context, string) (*domain.Wallet, error) {
	if s.walletErr != nil {
		return nil, s.walletErr
	}
	if s.wallet == nil {
		return nil, domain.ErrNotFound
	}
	return s.wallet, nil
}

func (s *stubWalletRepo) GetByUserForUpdate(ctx context.Context, _ pgx.Tx, userID string) (*domain.Wallet, error) {
	return s.GetByUser(ctx, userID)
}

func (s *stubWalletRepo) Debit(_ context.Context, _ pgx.Tx, _ string, amountPaise int64, _ *string, _ string) (*domain.Transaction, error) {
	if s.debitErr != nil {
		return nil, s.debitErr
	}
	s.debited += amountPaise
	return &domain.Transaction{AmountPaise: amountPaise}, nil
}

type stubAddressRepo struct {
	address *domain.Address
}

func (s *stubAddressRepo) GetForUser(context.Context, string, string) (*domain.Address, error) {
	if s.address == nil {
		return nil, domain.ErrNotFound
	}
	return s.address, nil
}

type stubGateway struct {
	intent     gateway.Intent
	intentErr  error
	lastAmount int64
	verifyOK   bool
	paid       int64
	fetchErr   error
	fetched    bool
}

func (s *stubGateway) CreateIntent(_ context.Context, amountPaise int64) (gateway.Intent, error) {
	s.lastAmount = amountPaise
	return s.intent, s.intentErr
}

func (s *stubGateway) VerifySignature(_, _, _ string) bool {
	return s.verifyOK
}

func (s *stubGateway) FetchPaidAmount(context.Context, string) (int64, error) {
	s.fetched = true
	return s.paid, s.fetchErr
}

type stubNotifier struct {
	sent []domain.Order
}

func (s *stubNotifier) SendOrderConfirmation(_ context.Context, order domain.Order) {
	s.sent = append(s.sent, order)
}

type fixtures struct {
	db       *fakeDB
	agg      *stubAggregator
	carts    *stubCartLines
	orders   *stubOrderRepo
	variants *stubVariantRepo
	coupons  *stubCouponRepo
	wallets  *stubWalletRepo
	addrs    *stubAddressRepo
	gw       *stubGateway
	notify   *stubNotifier
}

func newFixtures() *fixtures {
	return &fixtures{
		db:       &fakeDB{},
		agg:      &stubAggregator{},
		carts:    &stubCartLines{},
		orders:   &stubOrderRepo{},
		variants: &stubVariantRepo{},
		coupons:  &stubCouponRepo{},
		wallets:  &stubWalletRepo{},
		addrs:    &stubAddressRepo{},
		gw:       &stubGateway{},
		notify:   &stubNotifier{},
	}
}

func newService(f *fixtures) *Service {
	return &Service{
		db:            f.db,
		aggregator:    f.agg,
		cartRepo:      f.carts,
		orders:        f.orders,
		variants:      f.variants,
		coupons:       f.coupons,
		wallets:       f.wallets,
		addresses:     f.addrs,
		gw:            f.gw,
		notify:        f.notify,
		metrics:       testMetrics,
		logger:        log.New(io.Discard, "", 0),
		shippingPaise: 3000,
		draftTTL:      15 * time.Minute,
		now:           func() time.Time { return testNow },
	}
}

func testLines() []pricing.Line {
	return []pricing.Line{
		{CartLineID: "l1", VariantID: "v1", ProductName: "Tee", Quantity: 2, BasePaise: 10000, UnitPaise: 10000, TotalPaise: 20000},
	}
}

func validTestCoupon() *domain.Coupon {
	return &domain.Coupon{
		ID: "cp1", Code: "SAVE50", Type: domain.CouponFixed, AmountPaise: 5000,
		MinPurchasePaise: 10000,
		StartDate:        testNow.Add(-time.Hour),
		EndDate:          testNow.Add(time.Hour),
		IsActive:         true,
	}
}
