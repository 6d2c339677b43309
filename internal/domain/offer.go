package domain

import "time"

type OfferScope string

const (
	OfferScopeProduct  OfferScope = "product"
	OfferScopeCategory OfferScope = "category"
)

// Offer is an automatic percentage discount scoped to products or categories
// within an active window. Offers never stack: the best percentage wins.
type Offer struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Scope           OfferScope `json:"scope"`
	DiscountPercent int        `json:"discountPercent"`
	StartDate       time.Time  `json:"startDate"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	Active          bool       `json:"active"`
}

// ActiveAt reports whether the offer applies at the given instant.
func (o Offer) ActiveAt(now time.Time) bool {
	if !o.Active || now.Before(o.StartDate) {
		return false
	}
	return o.EndDate == nil || !now.After(*o.EndDate)
}
