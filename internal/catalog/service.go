package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketplace/internal/logger"
	"marketplace/internal/models"
)

type DBLayer interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetActiveDiscounts(ctx context.Context, productID string, at time.Time) ([]models.Discount, error)
	ListVisibleProducts(ctx context.Context) ([]models.Product, error)
	IncrementViews(ctx context.Context, productID string) error
}

type Service struct {
	DB     DBLayer
	logger *logger.Logger
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, logger: log}
}

var oneHundred = decimal.NewFromInt(100)

// EffectivePrice applies the best active discount to the base price. Pure:
// the result depends only on the inputs. Ties between equal percentages are
// broken by the most recently created discount, so the choice is stable.
func EffectivePrice(price decimal.Decimal, discounts []models.Discount, at time.Time) decimal.Decimal {
	best := BestActiveDiscount(discounts, at)
	if best == nil {
		return price
	}
	discount := price.Mul(best.Percentage).Div(oneHundred)
	return price.Sub(discount)
}

// BestActiveDiscount picks the highest-percentage discount whose window
// contains at, preferring the most recently created on equal percentages.
// Returns nil when no discount is active.
func BestActiveDiscount(discounts []models.Discount, at time.Time) *models.Discount {
	var best *models.Discount
	for i := range discounts {
		d := &discounts[i]
		if !d.ActiveAt(at) {
			continue
		}
		if best == nil ||
			d.Percentage.GreaterThan(best.Percentage) ||
			(d.Percentage.Equal(best.Percentage) && d.CreatedAt.After(best.CreatedAt)) {
			best = d
		}
	}
	return best
}

// DiscountedPrice resolves the product's current unit price.
func (s *Service) DiscountedPrice(ctx context.Context, productID string, at time.Time) (decimal.Decimal, error) {
	product, err := s.DB.GetProductByID(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("product %s not found: %w", productID, err)
	}
	discounts, err := s.DB.GetActiveDiscounts(ctx, productID, at)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load discounts for product %s: %w", productID, err)
	}
	return EffectivePrice(product.Price, discounts, at), nil
}

// VisibleProducts lists what buyers may browse: approved products only.
func (s *Service) VisibleProducts(ctx context.Context) ([]models.Product, error) {
	return s.DB.ListVisibleProducts(ctx)
}

// RecordView bumps the product's view counter. Best effort.
func (s *Service) RecordView(ctx context.Context, productID string) {
	if err := s.DB.IncrementViews(ctx, productID); err != nil {
		s.logger.Warn("CATALOG", fmt.Sprintf("Failed to record view for product %s: %v", productID, err))
	}
}
