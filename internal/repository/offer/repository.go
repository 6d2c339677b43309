package offer

import "context"

// Percents maps product and category ids to the best active discount
// percentage for each. Offers never stack, so only the maximum is kept.
type Percents struct {
	ByProduct  map[string]int
	ByCategory map[string]int
}

// Best returns the winning percentage for a product in a category.
func (p Percents) Best(productID, categoryID string) int {
	prod := p.ByProduct[productID]
	cat := p.ByCategory[categoryID]
	if prod >= cat {
		return prod
	}
	return cat
}

type Repository interface {
	// ActivePercents loads the best discount percentage per product and per
	// category among offers active right now.
	ActivePercents(ctx context.Context) (Percents, error)
}
