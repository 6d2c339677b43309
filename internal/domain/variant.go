package domain

import "time"

// Variant is the purchasable unit: a product+size combination with its own
// stock and pricing. Stock is the single source of truth for availability;
// every debit or credit to it happens under a row-level lock.
type Variant struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"productId"`
	CategoryID      string    `json:"-"`
	ProductName     string    `json:"productName"`
	Size            string    `json:"size"`
	Stock           int       `json:"stock"`
	BasePricePaise  int64     `json:"basePricePaise"`
	OfferPricePaise *int64    `json:"offerPricePaise,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
