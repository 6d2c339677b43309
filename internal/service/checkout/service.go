// Package checkout owns the money-moving pipeline: the draft order manager
// (coupon apply/remove, wallet apply, payment intent creation) and the order
// finalization state machine driven by the gateway callback.
//
// Drafts freeze price, discount, and wallet state while the user completes
// payment. Every mutation recomputes the draft from scratch against the
// current cart, offers, coupon state, and wallet balance, so a stale draft can
// never under- or over-charge.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/metrics"
	"storefront/internal/notifier"
	"storefront/internal/pricing"
	cartrepo "storefront/internal/repository/cart"
	orderrepo "storefront/internal/repository/order"
)

type Service struct {
	db         txBeginner
	aggregator cartAggregator
	cartRepo   cartLines
	orders     orderRepo
	variants   variantRepo
	coupons    couponRepo
	wallets    walletRepo
	addresses  addressRepo
	gw         gateway.Gateway
	notify     notifier.Notifier
	metrics    *metrics.Checkout
	logger     *log.Logger

	shippingPaise int64
	draftTTL      time.Duration
	now           func() time.Time
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type cartAggregator interface {
	PricedLines(ctx context.Context, userID string) ([]pricing.Line, []cartrepo.LineWithVariant, error)
	CheckStock(raw []cartrepo.LineWithVariant) error
}

type cartLines interface {
	ClearLines(ctx context.Context, tx pgx.Tx, userID string) error
}

type orderRepo interface {
	CreateDraft(ctx context.Context, tx pgx.Tx, in orderrepo.CreateDraftInput) (*domain.Order, error)
	DeleteExpiredDrafts(ctx context.Context, tx pgx.Tx, userID string, now time.Time) error
	GetDraftForUpdate(ctx context.Context, tx pgx.Tx, userID string, now time.Time) (*domain.Order, error)
	ReplaceDraftItems(ctx context.Context, tx pgx.Tx, orderID string, items []orderrepo.DraftItem) error
	UpdateDraftAmounts(ctx context.Context, tx pgx.Tx, orderID string, a orderrepo.DraftAmounts) error
	SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error
	GetByGatewayOrderIDForUpdate(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (*domain.Order, error)
	Promote(ctx context.Context, tx pgx.Tx, orderID, gatewayPaymentID string) error
	GetForUser(ctx context.Context, userID, publicOrderID string) (*domain.Order, error)
	InsertPaymentFailure(ctx context.Context, f domain.PaymentFailure) error
	MarkDraftFailed(ctx context.Context, gatewayOrderID string) error
	SweepExpiredDrafts(ctx context.Context, now time.Time) (int64, error)
}

type variantRepo interface {
	Reserve(ctx context.Context, tx pgx.Tx, id string, quantity int) error
}

type couponRepo interface {
	GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*domain.Coupon, error)
	UsageExistsTx(ctx context.Context, tx pgx.Tx, couponID, userID string) (bool, error)
	IncrementUsage(ctx context.Context, tx pgx.Tx, couponID string) error
	InsertUsage(ctx context.Context, tx pgx.Tx, couponID, userID, orderID string, discountPaise, cartTotalPaise int64) error
}

type walletRepo interface {
	GetByUser(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error)
	Debit(ctx context.Context, tx pgx.Tx, walletID string, amountPaise int64, orderID *string, description string) (*domain.Transaction, error)
}

type addressRepo interface {
	GetForUser(ctx context.Context, userID, addressID string) (*domain.Address, error)
}

type Deps struct {
	DB         txBeginner
	Aggregator cartAggregator
	CartRepo   cartLines
	Orders     orderRepo
	Variants   variantRepo
	Coupons    couponRepo
	Wallets    walletRepo
	Addresses  addressRepo
	Gateway    gateway.Gateway
	Notifier   notifier.Notifier
	Metrics    *metrics.Checkout
	Logger     *log.Logger

	ShippingPaise int64
	DraftTTL      time.Duration
}

func New(d Deps) *Service {
	return &Service{
		db:         d.DB,
		aggregator: d.Aggregator,
		cartRepo:   d.CartRepo,
		orders:     d.Orders,
		variants:   d.Variants,
		coupons:    d.Coupons,
		wallets:    d.Wallets,
		addresses:  d.Addresses,
		gw:         d.Gateway,
		notify:     d.Notifier,
		metrics:    d.Metrics,
		logger:     d.Logger,

		shippingPaise: d.ShippingPaise,
		draftTTL:      d.DraftTTL,
		now:           time.Now,
	}
}

// State is the draft's money breakdown returned to the client after each
// checkout mutation.
type State struct {
	OrderID             string         `json:"orderId"`
	Totals              pricing.Totals `json:"totals"`
	CouponCode          *string        `json:"couponCode,omitempty"`
	CouponDiscountPaise int64          `json:"couponDiscountPaise"`
	WalletPaise         int64          `json:"walletPaise"`
	FinalPricePaise     int64          `json:"finalPricePaise"`
}

// ApplyCoupon validates the coupon against the live cart and attaches it to
// the user's draft, creating the draft if none exists.
func (s *Service) ApplyCoupon(ctx context.Context, userID, addressID, code string) (*State, error) {
	lines, raw, err := s.aggregator.PricedLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.aggregator.CheckStock(raw); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	draft, err := s.findOrCreateDraft(ctx, tx, userID, addressID, lines)
	if err != nil {
		return nil, err
	}

	totals := pricing.ComputeTotals(lines, s.shippingPaise)

	coupon, err := s.coupons.GetByCodeForUpdate(ctx, tx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.CouponError{Code: code, Reason: domain.CouponNotFound}
		}
		return nil, err
	}
	if cerr := s.validateCoupon(ctx, tx, coupon, userID, totals.ItemsTotalPaise); cerr != nil {
		return nil, cerr
	}

	state, err := s.recompute(ctx, tx, draft, lines, totals, coupon)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

// RemoveCoupon drops the coupon from the draft and recomputes.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*State, error) {
	lines, _, err := s.aggregator.PricedLines(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	draft, err := s.orders.GetDraftForUpdate(ctx, tx, userID, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrDraftExpired
		}
		return nil, err
	}
	if draft.CouponCode == nil {
		return nil, fmt.Errorf("no coupon applied")
	}
	draft.CouponCode = nil
	draft.CouponDiscountPaise = 0

	totals := pricing.ComputeTotals(lines, s.shippingPaise)
	state, err := s.recompute(ctx, tx, draft, lines, totals, nil)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

// ApplyWallet caps the wallet deduction at min(balance, amount after coupon)
// and stores it on the draft. The balance itself is only debited at
// finalization, under lock.
func (s *Service) ApplyWallet(ctx context.Context, userID, addressID string) (*State, error) {
	lines, raw, err := s.aggregator.PricedLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.aggregator.CheckStock(raw); err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.BalancePaise <= 0 {
		return nil, domain.ErrInsufficientBalance
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	draft, err := s.findOrCreateDraft(ctx, tx, userID, addressID, lines)
	if err != nil {
		return nil, err
	}
	// Any positive marker makes recompute cap the deduction at
	// min(balance, amount after coupon).
	draft.WalletPaise = wallet.BalancePaise

	totals := pricing.ComputeTotals(lines, s.shippingPaise)
	coupon, err := s.draftCoupon(ctx, tx, draft, userID, totals.ItemsTotalPaise)
	if err != nil {
		return nil, err
	}

	state, err := s.recompute(ctx, tx, draft, lines, totals, coupon)
	if err != nil {
		return nil, err
	}
	if state.FinalPricePaise == 0 && state.WalletPaise == 0 {
		return nil, fmt.Errorf("no payable amount left")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

// Intent is what the client needs to open the gateway's payment widget.
type Intent struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	AmountPaise    int64  `json:"amountPaise"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
	OrderID        string `json:"orderId"`
}

// CreatePaymentIntent re-syncs the draft with the cart, registers the payable
// amount with the gateway, and stamps the intent id on the draft. The gateway
// call happens outside any database transaction.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID, addressID string) (*Intent, error) {
	lines, raw, err := s.aggregator.PricedLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.aggregator.CheckStock(raw); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	draft, err := s.findOrCreateDraft(ctx, tx, userID, addressID, lines)
	if err != nil {
		return nil, err
	}

	totals := pricing.ComputeTotals(lines, s.shippingPaise)
	coupon, err := s.draftCoupon(ctx, tx, draft, userID, totals.ItemsTotalPaise)
	if err != nil {
		return nil, err
	}
	state, err := s.recompute(ctx, tx, draft, lines, totals, coupon)
	if err != nil {
		return nil, err
	}
	if state.FinalPricePaise <= 0 {
		return nil, fmt.Errorf("invalid payable amount")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	intent, err := s.gw.CreateIntent(ctx, state.FinalPricePaise)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	if err := s.orders.SetGatewayOrderID(ctx, draft.ID, intent.ID); err != nil {
		return nil, err
	}

	return &Intent{
		GatewayOrderID: intent.ID,
		AmountPaise:    intent.AmountPaise,
		Currency:       intent.Currency,
		KeyID:          intent.KeyID,
		OrderID:        draft.OrderID,
	}, nil
}

// RetryPayment re-initiates payment for an order whose previous attempt failed.
func (s *Service) RetryPayment(ctx context.Context, userID, publicOrderID string) (*Intent, error) {
	order, err := s.orders.GetForUser(ctx, userID, publicOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderFailed {
		return nil, fmt.Errorf("order %s: %w", publicOrderID, domain.ErrInvalidTransition)
	}

	intent, err := s.gw.CreateIntent(ctx, order.FinalPricePaise)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	if err := s.orders.SetGatewayOrderID(ctx, order.ID, intent.ID); err != nil {
		return nil, err
	}

	return &Intent{
		GatewayOrderID: intent.ID,
		AmountPaise:    intent.AmountPaise,
		Currency:       intent.Currency,
		KeyID:          intent.KeyID,
		OrderID:        order.OrderID,
	}, nil
}

// findOrCreateDraft deletes the user's expired drafts, then locks and returns
// the live one, creating it from the current cart when absent. Expired drafts
// are never resurrected.
func (s *Service) findOrCreateDraft(ctx context.Context, tx pgx.Tx, userID, addressID string, lines []pricing.Line) (*domain.Order, error) {
	now := s.now()
	if err := s.orders.DeleteExpiredDrafts(ctx, tx, userID, now); err != nil {
		return nil, err
	}

	draft, err := s.orders.GetDraftForUpdate(ctx, tx, userID, now)
	if err == nil {
		return draft, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if addressID == "" {
		return nil, domain.ErrAddressMissing
	}
	addr, err := s.addresses.GetForUser(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAddressMissing
		}
		return nil, err
	}

	totals := pricing.ComputeTotals(lines, s.shippingPaise)
	return s.orders.CreateDraft(ctx, tx, orderrepo.CreateDraftInput{
		UserID:        userID,
		Address:       *addr,
		PaymentMethod: domain.PaymentGateway,
		Amounts: orderrepo.DraftAmounts{
			SubtotalPaise:   totals.SubtotalPaise,
			DiscountPaise:   totals.DiscountPaise,
			ShippingPaise:   totals.ShippingPaise,
			FinalPricePaise: totals.GrandTotalPaise,
		},
		ExpiresAt: now.Add(s.draftTTL),
		Items:     draftItems(lines),
	})
}

// draftCoupon re-validates the coupon already attached to a draft. A coupon
// that no longer qualifies is dropped rather than silently kept at a stale
// discount.
func (s *Service) draftCoupon(ctx context.Context, tx pgx.Tx, draft *domain.Order, userID string, itemsTotalPaise int64) (*domain.Coupon, error) {
	if draft.CouponCode == nil {
		return nil, nil
	}
	coupon, err := s.coupons.GetByCodeForUpdate(ctx, tx, *draft.CouponCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			draft.CouponCode = nil
			return nil, nil
		}
		return nil, err
	}
	if cerr := s.validateCoupon(ctx, tx, coupon, userID, itemsTotalPaise); cerr != nil {
		s.logger.Printf("dropping coupon from draft %s: %v", draft.OrderID, cerr)
		draft.CouponCode = nil
		return nil, nil
	}
	return coupon, nil
}

func (s *Service) validateCoupon(ctx context.Context, tx pgx.Tx, coupon *domain.Coupon, userID string, itemsTotalPaise int64) error {
	if cerr := coupon.Validate(s.now()); cerr != nil {
		return cerr
	}
	if itemsTotalPaise < coupon.MinPurchasePaise {
		return &domain.CouponError{Code: coupon.Code, Reason: domain.CouponMinPurchase}
	}
	if coupon.OneTimePerUser {
		used, err := s.coupons.UsageExistsTx(ctx, tx, coupon.ID, userID)
		if err != nil {
			return err
		}
		if used {
			return &domain.CouponError{Code: coupon.Code, Reason: domain.CouponAlreadyUsed}
		}
	}
	return nil
}

// recompute is the single write path for draft money state. It re-syncs the
// frozen items with the cart, reapplies the coupon, recaps the wallet
// deduction at min(balance, amount after coupon), and derives the final price.
func (s *Service) recompute(ctx context.Context, tx pgx.Tx, draft *domain.Order, lines []pricing.Line, totals pricing.Totals, coupon *domain.Coupon) (*State, error) {
	if err := s.orders.ReplaceDraftItems(ctx, tx, draft.ID, draftItems(lines)); err != nil {
		return nil, err
	}

	var couponCode *string
	var couponDiscount int64
	if coupon != nil {
		couponCode = &coupon.Code
		couponDiscount = coupon.Discount(totals.ItemsTotalPaise)
	}

	afterCoupon := totals.GrandTotalPaise - couponDiscount
	if afterCoupon < 0 {
		afterCoupon = 0
	}

	var walletPaise int64
	if draft.WalletPaise > 0 {
		wallet, err := s.wallets.GetByUser(ctx, draft.UserID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if wallet != nil {
			walletPaise = min64(wallet.BalancePaise, afterCoupon)
		}
	}

	amounts := orderrepo.DraftAmounts{
		SubtotalPaise:       totals.SubtotalPaise,
		DiscountPaise:       totals.DiscountPaise,
		ShippingPaise:       totals.ShippingPaise,
		CouponCode:          couponCode,
		CouponDiscountPaise: couponDiscount,
		WalletPaise:         walletPaise,
		FinalPricePaise:     pricing.FinalPrice(totals.GrandTotalPaise, couponDiscount, walletPaise),
	}
	if err := s.orders.UpdateDraftAmounts(ctx, tx, draft.ID, amounts); err != nil {
		return nil, err
	}

	return &State{
		OrderID:             draft.OrderID,
		Totals:              totals,
		CouponCode:          couponCode,
		CouponDiscountPaise: couponDiscount,
		WalletPaise:         walletPaise,
		FinalPricePaise:     amounts.FinalPricePaise,
	}, nil
}

func draftItems(lines []pricing.Line) []orderrepo.DraftItem {
	items := make([]orderrepo.DraftItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, orderrepo.DraftItem{
			VariantID:            l.VariantID,
			ProductName:          l.ProductName,
			Size:                 l.Size,
			Quantity:             l.Quantity,
			PriceAtPurchasePaise: l.UnitPaise,
		})
	}
	return items
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
