package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderDraft              OrderStatus = "draft"
	OrderPending            OrderStatus = "pending"
	OrderConfirmed          OrderStatus = "confirmed"
	OrderShipped            OrderStatus = "shipped"
	OrderOutForDelivery     OrderStatus = "out_for_delivery"
	OrderDelivered          OrderStatus = "delivered"
	OrderCancelled          OrderStatus = "cancelled"
	OrderPartiallyCancelled OrderStatus = "partially_cancelled"
	OrderReturned           OrderStatus = "returned"
	OrderPartiallyReturned  OrderStatus = "partially_returned"
	OrderFailed             OrderStatus = "failed"
)

type ItemStatus string

const (
	ItemDraft           ItemStatus = "draft"
	ItemPending         ItemStatus = "pending"
	ItemConfirmed       ItemStatus = "confirmed"
	ItemShipped         ItemStatus = "shipped"
	ItemOutForDelivery  ItemStatus = "out_for_delivery"
	ItemDelivered       ItemStatus = "delivered"
	ItemCancelled       ItemStatus = "cancelled"
	ItemReturnRequested ItemStatus = "return_requested"
	ItemReturnApproved  ItemStatus = "return_approved"
	ItemReturnRejected  ItemStatus = "return_rejected"
	ItemReturned        ItemStatus = "returned"
)

type PaymentMethod string

// PaymentGateway is the only supported payment method; checkout always runs
// through the hosted gateway, with the wallet as a partial deduction on top.
const PaymentGateway PaymentMethod = "gateway"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// orderTransitions is the strict allow-list of order status changes. Anything
// outside it is rejected, never coerced.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:              {OrderPending, OrderFailed},
	OrderPending:            {OrderConfirmed, OrderCancelled, OrderPartiallyCancelled},
	OrderConfirmed:          {OrderShipped, OrderCancelled, OrderPartiallyCancelled},
	OrderShipped:            {OrderOutForDelivery},
	OrderOutForDelivery:     {OrderDelivered},
	OrderDelivered:          {OrderReturned, OrderPartiallyReturned},
	OrderPartiallyCancelled: {OrderConfirmed, OrderShipped, OrderCancelled},
	OrderPartiallyReturned:  {OrderReturned},
	OrderFailed:             {OrderPending},
}

// CanTransition reports whether from -> to is on the allow-list.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cancellable statuses: anything prior to shipping.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderConfirmed || s == OrderPartiallyCancelled
}

// ReturnWindow is how long after delivery a return may be requested.
const ReturnWindow = 7 * 24 * time.Hour

// Order is a committed purchase, or (status draft) the time-boxed snapshot
// that freezes price/discount/wallet state while payment completes. Drafts
// carry ExpiresAt; any read that finds it in the past treats the draft as absent.
type Order struct {
	ID      string `json:"id"`
	OrderID string `json:"orderId"` // human-facing, e.g. ORD-20260831-7F3A2C
	UserID  string `json:"-"`

	ShippingName    string `json:"shippingName"`
	ShippingLine1   string `json:"shippingLine1"`
	ShippingCity    string `json:"shippingCity"`
	ShippingState   string `json:"shippingState"`
	ShippingPincode string `json:"shippingPincode"`
	ShippingPhone   string `json:"shippingPhone"`

	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`

	GatewayOrderID   *string `json:"-"`
	GatewayPaymentID *string `json:"-"`

	Status OrderStatus `json:"status"`

	SubtotalPaise       int64 `json:"subtotalPaise"`
	DiscountPaise       int64 `json:"discountPaise"`
	ShippingPaise       int64 `json:"shippingPaise"`
	CouponDiscountPaise int64 `json:"couponDiscountPaise"`
	WalletPaise         int64 `json:"walletPaise"`
	FinalPricePaise     int64 `json:"finalPricePaise"`

	CouponCode *string `json:"couponCode,omitempty"`

	ExpiresAt   *time.Time `json:"-"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`

	Items []OrderItem `json:"items,omitempty"`
}

// Expired reports whether a draft is past its TTL.
func (o Order) Expired(now time.Time) bool {
	return o.Status == OrderDraft && o.ExpiresAt != nil && now.After(*o.ExpiresAt)
}

// ItemsTotalPaise is the sum of item price_at_purchase * quantity. It is the
// base for coupon proration on refunds.
func (o Order) ItemsTotalPaise() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.TotalPaise()
	}
	return total
}

// OrderItem captures a line at purchase time, decoupled from live variant
// pricing. Each item carries its own status for partial cancellation/return.
type OrderItem struct {
	ID                   string     `json:"id"`
	OrderID              string     `json:"orderId"`
	VariantID            string     `json:"variantId"`
	ProductName          string     `json:"productName"`
	Size                 string     `json:"size"`
	Quantity             int        `json:"quantity"`
	PriceAtPurchasePaise int64      `json:"priceAtPurchasePaise"`
	Status               ItemStatus `json:"status"`
}

func (i OrderItem) TotalPaise() int64 {
	return i.PriceAtPurchasePaise * int64(i.Quantity)
}

type ReturnStatus string

const (
	ReturnRequested ReturnStatus = "return_requested"
	ReturnApproved  ReturnStatus = "return_approved"
	ReturnRejected  ReturnStatus = "return_rejected"
	ReturnReceived  ReturnStatus = "returned"
)

// ReturnRequest is the compensating-action record for a returned item.
type ReturnRequest struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"orderId"`
	OrderItemID string       `json:"orderItemId"`
	UserID      string       `json:"-"`
	Reason      string       `json:"reason"`
	Status      ReturnStatus `json:"status"`
	RefundPaise int64        `json:"refundPaise"`
	RequestedAt time.Time    `json:"requestedAt"`
}

// PaymentFailure records a gateway-reported failure for reconciliation.
type PaymentFailure struct {
	ID             string    `json:"id"`
	UserID         *string   `json:"-"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	AmountPaise    int64     `json:"amountPaise"`
	FailureType    string    `json:"failureType"`
	ErrorCode      string    `json:"errorCode,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Address is the shipping address snapshot source.
type Address struct {
	ID       string `json:"id"`
	UserID   string `json:"-"`
	FullName string `json:"fullName"`
	Line1    string `json:"line1"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Phone    string `json:"phone"`
}

// NewOrderID builds the human-facing order identifier.
func NewOrderID(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:6])
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}
