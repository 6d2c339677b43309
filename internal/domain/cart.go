package domain

import "time"

// Cart is the user's single mutable cart. Lines are destroyed on successful
// order finalization or explicit removal.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	Lines     []CartLine `json:"lines,omitempty"`
}

type CartLine struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cartId"`
	VariantID string    `json:"variantId"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}
