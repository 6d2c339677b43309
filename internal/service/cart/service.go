// Package cart materializes the user's cart annotated with live pricing. It
// holds no discount state of its own: every view reprices through the pricing
// engine, so what the customer sees here is exactly what checkout will charge.
package cart

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/pricing"
	cartrepo "storefront/internal/repository/cart"
	offerrepo "storefront/internal/repository/offer"
)

type Service struct {
	repo          cartRepo
	variantRepo   variantRepo
	offerRepo     offerRepo
	shippingPaise int64
}

type cartRepo interface {
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	AddLine(ctx context.Context, userID, variantID, size string, quantity int) (*domain.CartLine, error)
	UpdateLineQuantity(ctx context.Context, userID, lineID string, quantity int) error
	RemoveLine(ctx context.Context, userID, lineID string) error
	LinesWithVariants(ctx context.Context, userID string) ([]cartrepo.LineWithVariant, error)
}

type variantRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Variant, error)
}

type offerRepo interface {
	ActivePercents(ctx context.Context) (offerrepo.Percents, error)
}

func New(repo cartrepo.Repository, variants variantRepo, offers offerRepo, shippingPaise int64) *Service {
	return &Service{repo: repo, variantRepo: variants, offerRepo: offers, shippingPaise: shippingPaise}
}

// View is the annotated cart.
type View struct {
	Lines  []pricing.Line `json:"lines"`
	Totals pricing.Totals `json:"totals"`
}

// View materializes the annotated cart. An empty cart is a normal state and
// yields an empty view; only the checkout mutations refuse to run on one.
func (s *Service) View(ctx context.Context, userID string) (*View, error) {
	lines, _, err := s.PricedLines(ctx, userID)
	if errors.Is(err, domain.ErrCartEmpty) {
		return &View{Lines: []pricing.Line{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return &View{
		Lines:  lines,
		Totals: pricing.ComputeTotals(lines, s.shippingPaise),
	}, nil
}

// PricedLines loads the cart lines with live variant data and annotates them
// with the best active offer. The variant data (including stock) is a stale
// read; finalization re-validates under lock.
func (s *Service) PricedLines(ctx context.Context, userID string) ([]pricing.Line, []cartrepo.LineWithVariant, error) {
	raw, err := s.repo.LinesWithVariants(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return nil, nil, domain.ErrCartEmpty
	}

	percents, err := s.offerRepo.ActivePercents(ctx)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]pricing.Line, 0, len(raw))
	for _, lv := range raw {
		best := percents.Best(lv.Variant.ProductID, lv.Variant.CategoryID)
		lines = append(lines, pricing.PriceLine(lv.Line, lv.Variant, best))
	}
	return lines, raw, nil
}

// CheckStock verifies every line against current stock levels. Stale by
// design: it keeps obviously dead checkouts out of the payment flow, while
// the finalization transaction remains the authority.
func (s *Service) CheckStock(raw []cartrepo.LineWithVariant) error {
	for _, lv := range raw {
		if lv.Line.Quantity > lv.Variant.Stock {
			return fmt.Errorf("%s (%s): %w", lv.Variant.ProductName, lv.Variant.Size, domain.ErrInsufficientStock)
		}
	}
	return nil
}

func (s *Service) AddLine(ctx context.Context, userID, variantID, size string, quantity int) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	v, err := s.variantRepo.GetByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if quantity > v.Stock {
		return nil, domain.ErrInsufficientStock
	}
	if size == "" {
		size = v.Size
	}
	return s.repo.AddLine(ctx, userID, variantID, size, quantity)
}

func (s *Service) UpdateLine(ctx context.Context, userID, lineID string, quantity int) error {
	return s.repo.UpdateLineQuantity(ctx, userID, lineID, quantity)
}

func (s *Service) RemoveLine(ctx context.Context, userID, lineID string) error {
	return s.repo.RemoveLine(ctx, userID, lineID)
}
