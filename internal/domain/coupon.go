package domain

import "time"

type CouponType string

const (
	CouponFixed      CouponType = "fixed"
	CouponPercentage CouponType = "percentage"
)

// Coupon is a user-entered code granting a fixed or percentage discount.
// Exactly one of AmountPaise/Percent is set, matching Type. TimesUsed is only
// ever incremented under a row lock at finalization time.
type Coupon struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Type             CouponType `json:"type"`
	AmountPaise      int64      `json:"amountPaise,omitempty"`
	Percent          int        `json:"percent,omitempty"`
	MinPurchasePaise int64      `json:"minPurchasePaise"`
	StartDate        time.Time  `json:"startDate"`
	EndDate          time.Time  `json:"endDate"`
	IsActive         bool       `json:"isActive"`
	UsageLimit       *int       `json:"usageLimit,omitempty"`
	TimesUsed        int        `json:"timesUsed"`
	OneTimePerUser   bool       `json:"oneTimePerUser"`
}

// Validate checks everything about the coupon that does not depend on the
// cart: active flag, window, and usage cap. Callers still check min purchase
// and per-user usage against their own state.
func (c Coupon) Validate(now time.Time) *CouponError {
	switch {
	case !c.IsActive:
		return &CouponError{Code: c.Code, Reason: CouponInactive}
	case now.Before(c.StartDate):
		return &CouponError{Code: c.Code, Reason: CouponNotStarted}
	case now.After(c.EndDate):
		return &CouponError{Code: c.Code, Reason: CouponExpired}
	case c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit:
		return &CouponError{Code: c.Code, Reason: CouponExhausted}
	}
	return nil
}

// Discount computes the coupon discount for the given items total, capped so
// the discount never exceeds what is being paid for.
func (c Coupon) Discount(itemsTotalPaise int64) int64 {
	var d int64
	switch c.Type {
	case CouponFixed:
		d = c.AmountPaise
	case CouponPercentage:
		d = itemsTotalPaise * int64(c.Percent) / 100
	}
	if d > itemsTotalPaise {
		d = itemsTotalPaise
	}
	if d < 0 {
		d = 0
	}
	return d
}

// CouponUsage is the per-(coupon, order) redemption record. The uniqueness of
// that pair makes redemption naturally idempotent against callback replays.
type CouponUsage struct {
	ID              string    `json:"id"`
	CouponID        string    `json:"couponId"`
	UserID          string    `json:"userId"`
	OrderID         string    `json:"orderId"`
	DiscountPaise   int64     `json:"discountPaise"`
	CartTotalPaise  int64     `json:"cartTotalPaise"`
	UsedAt          time.Time `json:"usedAt"`
}
