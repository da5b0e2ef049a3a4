package payment

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
	"marketplace/internal/models"
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	SetOrderCharge(ctx context.Context, orderID, chargeID string) error
}

type Locker interface {
	Acquire(ctx context.Context, orderID string) (token string, ok bool, err error)
	Release(ctx context.Context, orderID, token string) error
}

type CartAccess interface {
	ActiveCart(ctx context.Context, userID string) (*models.Cart, error)
	Clear(ctx context.Context, cartID string) error
}

type Notifier interface {
	Send(ctx context.Context, userID, notificationType, message, relatedID string) error
}

type EventPublisher interface {
	PublishPaymentCaptured(order models.Order) error
}

// Service drives payment capture against the configured rails.
type Service struct {
	DB       DBLayer
	Gateways map[string]Gateway
	Lock     Locker
	Carts    CartAccess
	Notify   Notifier
	Events   EventPublisher
	Currency string
	// Timeout bounds each outbound provider call. On timeout the order is
	// left pending and capture can be retried.
	Timeout time.Duration
	logger  *logger.Logger
}

func NewService(db DBLayer, gateways map[string]Gateway, lock Locker, carts CartAccess,
	notify Notifier, events EventPublisher, currency string, timeout time.Duration, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Gateways: gateways,
		Lock:     lock,
		Carts:    carts,
		Notify:   notify,
		Events:   events,
		Currency: currency,
		Timeout:  timeout,
		logger:   log,
	}
}

// Capture exchanges the order total for a charge reference on the rail
// matching the order's payment method. A charge reference already present
// means the order is captured: the call short-circuits and returns it, so a
// second capture never produces a second charge. On provider failure the
// order stays pending with no charge reference and stock is not rolled back.
func (s *Service) Capture(ctx context.Context, orderID, methodToken string) (string, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", marketerr.Validationf("order %s not found", orderID)
	}

	if order.ChargeID != "" {
		s.logger.Info("PAYMENT", fmt.Sprintf("Order %s already captured as %s", orderID, order.ChargeID))
		return order.ChargeID, nil
	}
	if order.Status != models.OrderStatusPending {
		return "", marketerr.Conflictf("order %s is %s, not pending", orderID, order.Status)
	}
	if methodToken == "" {
		return "", marketerr.Validationf("missing payment method token")
	}
	gateway, ok := s.Gateways[order.PaymentMethod]
	if !ok {
		return "", marketerr.Validationf("unsupported payment method %q", order.PaymentMethod)
	}

	token, acquired, err := s.Lock.Acquire(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("capture lock error: %w", err)
	}
	if !acquired {
		return "", marketerr.Conflictf("capture already in progress for order %s", orderID)
	}
	defer func() {
		if err := s.Lock.Release(ctx, orderID, token); err != nil {
			s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to release capture lock for order %s: %v", orderID, err))
		}
	}()

	// Re-read under the lock: a concurrent capture may have won the race
	// between the first read and the lock acquisition.
	order, err = s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to re-read order %s: %w", orderID, err)
	}
	if order.ChargeID != "" {
		return order.ChargeID, nil
	}

	user, err := s.DB.GetUserByID(ctx, order.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load buyer for order %s: %w", orderID, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	chargeRef, err := gateway.Capture(callCtx, CaptureRequest{
		OrderID:       order.ID,
		Amount:        order.Total,
		Currency:      s.Currency,
		CustomerEmail: user.Email,
		MethodToken:   methodToken,
	})
	if err != nil {
		// Order stays pending, charge_id stays empty: safe to retry.
		s.logger.Error("PAYMENT", fmt.Sprintf("Capture failed for order %s: %v", orderID, err))
		return "", err
	}

	if err := s.DB.SetOrderCharge(ctx, orderID, chargeRef); err != nil {
		return "", fmt.Errorf("failed to record charge %s on order %s: %w", chargeRef, orderID, err)
	}
	s.logger.Info("PAYMENT", fmt.Sprintf("Order %s captured, charge %s", orderID, chargeRef))

	s.clearCart(ctx, order.UserID)
	s.notifySellers(ctx, order)

	if err := s.Events.PublishPaymentCaptured(*order); err != nil {
		s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to publish payment.captured for %s: %v", orderID, err))
	}

	return chargeRef, nil
}

func (s *Service) clearCart(ctx context.Context, userID string) {
	cart, err := s.Carts.ActiveCart(ctx, userID)
	if err != nil {
		s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to load cart for user %s after capture: %v", userID, err))
		return
	}
	if err := s.Carts.Clear(ctx, cart.ID); err != nil {
		s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to clear cart %s after capture: %v", cart.ID, err))
	}
}

func (s *Service) notifySellers(ctx context.Context, order *models.Order) {
	items, err := s.DB.GetItemsByOrder(ctx, order.ID)
	if err != nil {
		s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to load items for order %s: %v", order.ID, err))
		return
	}

	notified := make(map[string]bool)
	for _, item := range items {
		if notified[item.SellerID] {
			continue
		}
		notified[item.SellerID] = true
		msg := fmt.Sprintf("A new order (%s) contains your product.", order.ID)
		if err := s.Notify.Send(ctx, item.SellerID, models.NotificationNewOrder, msg, order.ID); err != nil {
			s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to notify seller %s for order %s: %v", item.SellerID, order.ID, err))
		}
	}
}
