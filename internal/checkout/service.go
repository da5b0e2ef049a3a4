package checkout

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
	CreateOrder(ctx context.Context, order models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	GetAddress(ctx context.Context, id, userID string) (*models.Address, error)
	GetShippingOption(ctx context.Context, id string) (*models.ShippingOption, error)
	GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
	IncrementPromoUsage(ctx context.Context, promoID string) error
	GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
}

type CartAccess interface {
	ActiveCart(ctx context.Context, userID string) (*models.Cart, error)
	Items(ctx context.Context, cartID string) ([]models.CartItem, error)
}

type ProductReader interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
}

type Pricing interface {
	DiscountedPrice(ctx context.Context, productID string, at time.Time) (decimal.Decimal, error)
}

type EventPublisher interface {
	PublishOrderCreated(order models.Order) error
}

type Service struct {
	DB       DBLayer
	Carts    CartAccess
	Products ProductReader
	Pricing  Pricing
	Events   EventPublisher
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(db DBLayer, carts CartAccess, products ProductReader, pricing Pricing, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Carts:    carts,
		Products: products,
		Pricing:  pricing,
		Events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// CheckoutRequest carries everything the buyer selected.
type CheckoutRequest struct {
	UserID           string
	AddressID        string
	ShippingOptionID string
	PaymentMethod    string
	PromoCode        string
}

// Checkout turns the user's cart into a pending order with immutable item
// snapshots, reserving stock in the same transaction. Every precondition is
// hard: any failure leaves no order and no stock mutation. The cart itself is
// cleared later, after payment capture succeeds.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	if req.PaymentMethod != models.PaymentMethodCard && req.PaymentMethod != models.PaymentMethodPayPal {
		return nil, marketerr.Validationf("unsupported payment method %q", req.PaymentMethod)
	}

	cart, err := s.Carts.ActiveCart(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.Carts.Items(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	if len(items) == 0 {
		return nil, marketerr.Validationf("cart is empty")
	}

	address, err := s.DB.GetAddress(ctx, req.AddressID, req.UserID)
	if err != nil {
		return nil, marketerr.Validationf("shipping address %s not found", req.AddressID)
	}
	option, err := s.DB.GetShippingOption(ctx, req.ShippingOptionID)
	if err != nil {
		return nil, marketerr.Validationf("shipping option %s not found", req.ShippingOptionID)
	}
	if !option.IsActive {
		return nil, marketerr.Validationf("shipping option %s is not active", option.ID)
	}

	now := s.now()
	orderID := uuid.NewString()
	subtotal := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		product, err := s.Products.GetProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, marketerr.Validationf("product %s not found", item.ProductID)
		}
		unit, err := s.Pricing.DiscountedPrice(ctx, item.ProductID, now)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
		orderItems = append(orderItems, models.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: product.ID,
			SellerID:  product.SellerID,
			Quantity:  item.Quantity,
			UnitPrice: unit,
		})
	}

	discount := decimal.Zero
	var promo *models.PromoCode
	if req.PromoCode != "" {
		promo, err = s.DB.GetPromoByCode(ctx, req.PromoCode)
		if err != nil {
			return nil, marketerr.Validationf("promo code %q not found", req.PromoCode)
		}
		if !promo.ValidAt(now) {
			return nil, marketerr.Validationf("promo code %q is expired or exhausted", req.PromoCode)
		}
		discount = subtotal.Mul(promo.Percentage).Div(decimal.NewFromInt(100))
	}

	total := subtotal.Add(option.Cost).Sub(discount)
	order := models.Order{
		ID:               orderID,
		UserID:           req.UserID,
		Subtotal:         subtotal,
		ShippingCost:     option.Cost,
		DiscountAmount:   discount,
		Total:            total,
		ShippingAddrID:   address.ID,
		ShippingOptionID: option.ID,
		Status:           models.OrderStatusPending,
		PaymentMethod:    req.PaymentMethod,
		CreatedAt:        now,
	}

	if err := s.DB.CreateOrder(ctx, order, orderItems); err != nil {
		return nil, err
	}
	s.logger.Info("CHECKOUT", fmt.Sprintf("Order %s created for user %s, total %s", order.ID, req.UserID, total.StringFixed(2)))

	if promo != nil {
		if err := s.DB.IncrementPromoUsage(ctx, promo.ID); err != nil {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Failed to record promo usage for %s: %v", promo.Code, err))
		}
	}

	if err := s.Events.PublishOrderCreated(order); err != nil {
		s.logger.Warn("CHECKOUT", fmt.Sprintf("Failed to publish order.created for %s: %v", order.ID, err))
	}

	return &order, nil
}

// statusTransitions lists the allowed forward moves of the order lifecycle.
var statusTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

// UpdateStatus moves an order along the lifecycle, rejecting invalid jumps.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) error {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return marketerr.Validationf("order %s not found", orderID)
	}
	for _, allowed := range statusTransitions[order.Status] {
		if allowed == status {
			return s.DB.UpdateOrderStatus(ctx, orderID, status)
		}
	}
	return marketerr.Conflictf("cannot move order %s from %s to %s", orderID, order.Status, status)
}

// Order loads one order with its item snapshots.
func (s *Service) Order(ctx context.Context, orderID string) (*models.Order, []models.OrderItem, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, marketerr.Validationf("order %s not found", orderID)
	}
	items, err := s.DB.GetItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load items for order %s: %w", orderID, err)
	}
	return order, items, nil
}

// OrdersByUser lists the user's orders, newest first.
func (s *Service) OrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.DB.GetOrdersByUser(ctx, userID)
}

// SellerShipments derives the per-seller fulfillment view from the order's
// item snapshots. Orders deliberately have no single seller of their own.
func (s *Service) SellerShipments(ctx context.Context, orderID string) ([]models.SellerShipment, error) {
	items, err := s.DB.GetItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items for order %s: %w", orderID, err)
	}

	bySeller := make(map[string]*models.SellerShipment)
	order := make([]string, 0)
	for _, item := range items {
		shipment, ok := bySeller[item.SellerID]
		if !ok {
			shipment = &models.SellerShipment{SellerID: item.SellerID, Subtotal: decimal.Zero}
			bySeller[item.SellerID] = shipment
			order = append(order, item.SellerID)
		}
		shipment.Items = append(shipment.Items, item)
		shipment.Subtotal = shipment.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	shipments := make([]models.SellerShipment, 0, len(bySeller))
	for _, sellerID := range order {
		shipments = append(shipments, *bySeller[sellerID])
	}
	return shipments, nil
}
