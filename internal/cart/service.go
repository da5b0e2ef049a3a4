package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
	"marketplace/internal/models"
)

type DBLayer interface {
	GetCartsByUser(ctx context.Context, userID string) ([]models.Cart, error)
	GetOrCreateCart(ctx context.Context, userID string) (*models.Cart, error)
	GetItems(ctx context.Context, cartID string) ([]models.CartItem, error)
	GetItem(ctx context.Context, cartID, productID string) (*models.CartItem, error)
	UpsertItem(ctx context.Context, item models.CartItem) error
	DeleteItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context, cartID string) error
	MergeCarts(ctx context.Context, target models.Cart, duplicates []models.Cart) error
}

type ProductReader interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
}

type Pricing interface {
	DiscountedPrice(ctx context.Context, productID string, at time.Time) (decimal.Decimal, error)
}

type Service struct {
	DB       DBLayer
	Products ProductReader
	Pricing  Pricing
	logger   *logger.Logger
}

func NewService(db DBLayer, products ProductReader, pricing Pricing, log *logger.Logger) *Service {
	return &Service{DB: db, Products: products, Pricing: pricing, logger: log}
}

// ActiveCart returns the user's single cart. If duplicate rows exist, all but
// the oldest are merged into it first; the merge is idempotent.
func (s *Service) ActiveCart(ctx context.Context, userID string) (*models.Cart, error) {
	carts, err := s.DB.GetCartsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load carts for user %s: %w", userID, err)
	}

	switch len(carts) {
	case 0:
		return s.DB.GetOrCreateCart(ctx, userID)
	case 1:
		return &carts[0], nil
	default:
		s.logger.Warn("CART", fmt.Sprintf("User %s has %d carts, merging into %s", userID, len(carts), carts[0].ID))
		if err := s.DB.MergeCarts(ctx, carts[0], carts[1:]); err != nil {
			return nil, fmt.Errorf("failed to merge carts for user %s: %w", userID, err)
		}
		return &carts[0], nil
	}
}

// AddItem puts one unit of the product in the cart, incrementing the
// quantity when the product is already there. Soft stock check only; the
// hard check happens at checkout.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return marketerr.Validationf("quantity must be positive, got %d", quantity)
	}

	product, err := s.Products.GetProductByID(ctx, productID)
	if err != nil {
		return marketerr.Validationf("product %s not found", productID)
	}
	if product.IsSoldOut() {
		return marketerr.Conflictf("product %s is sold out", productID)
	}

	cart, err := s.ActiveCart(ctx, userID)
	if err != nil {
		return err
	}

	item, err := s.DB.GetItem(ctx, cart.ID, productID)
	if err != nil {
		return fmt.Errorf("failed to read cart item: %w", err)
	}

	newQuantity := quantity
	itemID := uuid.NewString()
	if item != nil {
		newQuantity = item.Quantity + quantity
		itemID = item.ID
	}
	if newQuantity > product.Stock {
		return marketerr.Conflictf("insufficient stock for product %s: %d available", productID, product.Stock)
	}

	return s.DB.UpsertItem(ctx, models.CartItem{
		ID:        itemID,
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  newQuantity,
	})
}

// UpdateItem sets an item's quantity; zero removes it.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 0 {
		return marketerr.Validationf("quantity must not be negative, got %d", quantity)
	}

	cart, err := s.ActiveCart(ctx, userID)
	if err != nil {
		return err
	}
	item, err := s.DB.GetItem(ctx, cart.ID, productID)
	if err != nil {
		return fmt.Errorf("failed to read cart item: %w", err)
	}
	if item == nil {
		return marketerr.Validationf("product %s is not in the cart", productID)
	}

	if quantity == 0 {
		return s.DB.DeleteItem(ctx, item.ID)
	}

	product, err := s.Products.GetProductByID(ctx, productID)
	if err != nil {
		return marketerr.Validationf("product %s not found", productID)
	}
	if quantity > product.Stock {
		return marketerr.Conflictf("insufficient stock for product %s: %d available", productID, product.Stock)
	}

	item.Quantity = quantity
	return s.DB.UpsertItem(ctx, *item)
}

// Items lists the cart's contents.
func (s *Service) Items(ctx context.Context, cartID string) ([]models.CartItem, error) {
	return s.DB.GetItems(ctx, cartID)
}

// Subtotal sums quantity times the discounted unit price across the cart.
func (s *Service) Subtotal(ctx context.Context, cartID string, at time.Time) (decimal.Decimal, error) {
	items, err := s.DB.GetItems(ctx, cartID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load cart items: %w", err)
	}

	subtotal := decimal.Zero
	for _, item := range items {
		unit, err := s.Pricing.DiscountedPrice(ctx, item.ProductID, at)
		if err != nil {
			return decimal.Zero, err
		}
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return subtotal, nil
}

// Clear empties the cart. Called after a successful payment capture.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	return s.DB.ClearCart(ctx, cartID)
}
