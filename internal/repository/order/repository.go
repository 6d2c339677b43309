package order

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

// DraftItem is one frozen line for a draft order.
type DraftItem struct {
	VariantID            string
	ProductName          string
	Size                 string
	Quantity             int
	PriceAtPurchasePaise int64
}

// DraftAmounts is the recomputed money state written back to a draft on every
// coupon/wallet touch.
type DraftAmounts struct {
	SubtotalPaise       int64
	DiscountPaise       int64
	ShippingPaise       int64
	CouponCode          *string
	CouponDiscountPaise int64
	WalletPaise         int64
	FinalPricePaise     int64
}

type CreateDraftInput struct {
	UserID        string
	Address       domain.Address
	PaymentMethod domain.PaymentMethod
	Amounts       DraftAmounts
	ExpiresAt     time.Time
	Items         []DraftItem
}

type Repository interface {
	// CreateDraft inserts the draft order and its frozen items.
	CreateDraft(ctx context.Context, tx pgx.Tx, in CreateDraftInput) (*domain.Order, error)
	// DeleteExpiredDrafts removes the user's dead drafts; expired state is
	// never resurrected.
	DeleteExpiredDrafts(ctx context.Context, tx pgx.Tx, userID string, now time.Time) error
	// GetDraftForUpdate locks and returns the user's live draft, or
	// domain.ErrNotFound when none exists or it has expired.
	GetDraftForUpdate(ctx context.Context, tx pgx.Tx, userID string, now time.Time) (*domain.Order, error)
	// ReplaceDraftItems re-syncs the frozen lines after the cart changed.
	ReplaceDraftItems(ctx context.Context, tx pgx.Tx, orderID string, items []DraftItem) error
	UpdateDraftAmounts(ctx context.Context, tx pgx.Tx, orderID string, a DraftAmounts) error

	// SetGatewayOrderID stamps the provider's intent id. Runs on the pool:
	// intent creation happens outside any database transaction.
	SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error
	// GetByGatewayOrderIDForUpdate is the callback's session-independent
	// lookup and the serialization point for finalization.
	GetByGatewayOrderIDForUpdate(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (*domain.Order, error)
	// Promote flips draft -> pending, stamps payment fields, clears the TTL,
	// and moves all items to pending.
	Promote(ctx context.Context, tx pgx.Tx, orderID, gatewayPaymentID string) error

	// ListForUser returns the user's non-draft orders, newest first, without items.
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

	InsertPaymentFailure(ctx context.Context, f domain.PaymentFailure) error
	// MarkDraftFailed flips a draft matching the gateway intent to failed so
	// the user can retry payment.
	MarkDraftFailed(ctx context.Context, gatewayOrderID string) error
	// SweepExpiredDrafts deletes all expired drafts; run periodically.
	SweepExpiredDrafts(ctx context.Context, now time.Time) (int64, error)
}
