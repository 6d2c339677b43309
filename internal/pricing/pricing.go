// Package pricing computes line and cart prices. It is the single source of
// truth for what a customer sees and what they are charged: list pages, the
// cart aggregator, and draft orders all price through the same functions,
// parameterized by "now", so a price can never drift between display and charge.
package pricing

import "storefront/internal/domain"

// Line is a cart line annotated with live pricing.
type Line struct {
	CartLineID      string `json:"cartLineId"`
	VariantID       string `json:"variantId"`
	ProductName     string `json:"productName"`
	Size            string `json:"size"`
	Quantity        int    `json:"quantity"`
	BasePaise       int64  `json:"basePaise"`
	DiscountPercent int    `json:"discountPercent"`
	UnitPaise       int64  `json:"unitPaise"`
	TotalPaise      int64  `json:"totalPaise"`
}

// Totals is the cart-level money breakdown, before coupon and wallet.
type Totals struct {
	SubtotalPaise   int64 `json:"subtotalPaise"`   // sum of base prices
	ItemsTotalPaise int64 `json:"itemsTotalPaise"` // sum of discounted unit prices
	DiscountPaise   int64 `json:"discountPaise"`   // subtotal - items total
	ShippingPaise   int64 `json:"shippingPaise"`
	GrandTotalPaise int64 `json:"grandTotalPaise"` // items total + shipping
}

// UnitPrice computes the effective unit price for a variant given the best
// active offer percentage. A positive offer percentage beats the variant's
// static offer price; with no offer the static offer price applies if set.
func UnitPrice(v domain.Variant, bestPercent int) int64 {
	if bestPercent > 0 {
		price := v.BasePricePaise - v.BasePricePaise*int64(bestPercent)/100
		if price < 0 {
			price = 0
		}
		return price
	}
	if v.OfferPricePaise != nil {
		return *v.OfferPricePaise
	}
	return v.BasePricePaise
}

// BestPercent picks the winning discount among product- and category-scoped
// offers. Offers do not stack; the highest percentage wins.
func BestPercent(productPercent, categoryPercent int) int {
	if productPercent >= categoryPercent {
		return productPercent
	}
	return categoryPercent
}

// PriceLine annotates one cart line.
func PriceLine(line domain.CartLine, v domain.Variant, bestPercent int) Line {
	unit := UnitPrice(v, bestPercent)
	return Line{
		CartLineID:      line.ID,
		VariantID:       v.ID,
		ProductName:     v.ProductName,
		Size:            line.Size,
		Quantity:        line.Quantity,
		BasePaise:       v.BasePricePaise,
		DiscountPercent: bestPercent,
		UnitPaise:       unit,
		TotalPaise:      unit * int64(line.Quantity),
	}
}

// ComputeTotals derives the cart-level breakdown from priced lines.
func ComputeTotals(lines []Line, shippingPaise int64) Totals {
	var t Totals
	for _, l := range lines {
		t.SubtotalPaise += l.BasePaise * int64(l.Quantity)
		t.ItemsTotalPaise += l.TotalPaise
	}
	t.DiscountPaise = t.SubtotalPaise - t.ItemsTotalPaise
	t.ShippingPaise = shippingPaise
	t.GrandTotalPaise = t.ItemsTotalPaise + shippingPaise
	return t
}

// FinalPrice applies coupon and wallet deductions to a grand total, clamped
// at zero. All monetary mismatch checks elsewhere compare against this value.
func FinalPrice(grandTotalPaise, couponPaise, walletPaise int64) int64 {
	final := grandTotalPaise - couponPaise - walletPaise
	if final < 0 {
		final = 0
	}
	return final
}

// ProratedRefund computes an item's refund share: the item total minus its
// value-weighted share of the order's coupon discount. Integer division
// truncates toward zero, so the platform never refunds more than was paid.
func ProratedRefund(itemTotalPaise, couponDiscountPaise, itemsTotalPaise int64) int64 {
	if itemsTotalPaise <= 0 {
		return 0
	}
	refund := itemTotalPaise - couponDiscountPaise*itemTotalPaise/itemsTotalPaise
	if refund < 0 {
		refund = 0
	}
	return refund
}
