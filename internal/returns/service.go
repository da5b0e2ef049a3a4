package returns

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
	"marketplace/internal/models"
	"marketplace/internal/payment"
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetReturnByID(ctx context.Context, id string) (*models.ReturnRequest, error)
	GetReturnByOrderAndUser(ctx context.Context, orderID, userID string) (*models.ReturnRequest, error)
	GetReturnsByUser(ctx context.Context, userID string) ([]models.ReturnRequest, error)
	CreateReturn(ctx context.Context, req *models.ReturnRequest) error
	UpdateReturnStatus(ctx context.Context, id, status, rejectionReason string) error
	GetRefundByReturnID(ctx context.Context, returnRequestID string) (*models.Refund, error)
	RecordRefund(ctx context.Context, refund *models.Refund) error
}

type Notifier interface {
	Send(ctx context.Context, userID, notificationType, message, relatedID string) error
}

type EventPublisher interface {
	PublishReturnRequested(req models.ReturnRequest) error
	PublishReturnReviewed(req models.ReturnRequest) error
}

// Service runs the return and refund workflow. Refunds go back out on the
// same rail the payment came in on.
type Service struct {
	DB       DBLayer
	Gateways map[string]payment.Gateway
	Notify   Notifier
	Events   EventPublisher
	Currency string
	Timeout  time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(db DBLayer, gateways map[string]payment.Gateway, notify Notifier,
	events EventPublisher, currency string, timeout time.Duration, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Gateways: gateways,
		Notify:   notify,
		Events:   events,
		Currency: currency,
		Timeout:  timeout,
		logger:   log,
		now:      time.Now,
	}
}

// Create opens a return request for a delivered order. The window is
// measured from order creation and the boundary day counts as inside it.
func (s *Service) Create(ctx context.Context, orderID, userID, reason string) (*models.ReturnRequest, error) {
	if reason == "" {
		return nil, marketerr.Validationf("return reason is required")
	}

	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, marketerr.Validationf("order %s not found", orderID)
	}
	if order.UserID != userID {
		return nil, marketerr.Validationf("order %s does not belong to user %s", orderID, userID)
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, marketerr.Validationf("order %s is %s; only delivered orders can be returned", orderID, order.Status)
	}
	if s.now().After(order.CreatedAt.Add(models.ReturnWindow)) {
		return nil, marketerr.Validationf("return window for order %s has closed", orderID)
	}

	existing, err := s.DB.GetReturnByOrderAndUser(ctx, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing return for order %s: %w", orderID, err)
	}
	if existing != nil {
		return nil, marketerr.Conflictf("a return request already exists for order %s", orderID)
	}

	req := &models.ReturnRequest{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		UserID:    userID,
		Reason:    reason,
		Status:    models.ReturnStatusPending,
		CreatedAt: s.now(),
	}
	if err := s.DB.CreateReturn(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create return request: %w", err)
	}
	s.logger.Info("RETURNS", fmt.Sprintf("Return request %s opened for order %s", req.ID, orderID))

	s.notifySellers(ctx, order, req)

	if err := s.Events.PublishReturnRequested(*req); err != nil {
		s.logger.Warn("RETURNS", fmt.Sprintf("Failed to publish return.requested for %s: %v", req.ID, err))
	}
	return req, nil
}

func (s *Service) notifySellers(ctx context.Context, order *models.Order, req *models.ReturnRequest) {
	items, err := s.DB.GetItemsByOrder(ctx, order.ID)
	if err != nil {
		s.logger.Warn("RETURNS", fmt.Sprintf("Failed to load items for order %s: %v", order.ID, err))
		return
	}
	notified := make(map[string]bool)
	for _, item := range items {
		if notified[item.SellerID] {
			continue
		}
		notified[item.SellerID] = true
		msg := fmt.Sprintf("A return was requested for order %s.", order.ID)
		if err := s.Notify.Send(ctx, item.SellerID, models.NotificationReturnRequested, msg, req.ID); err != nil {
			s.logger.Warn("RETURNS", fmt.Sprintf("Failed to notify seller %s about return %s: %v", item.SellerID, req.ID, err))
		}
	}
}

// Reject closes a pending request without refunding.
func (s *Service) Reject(ctx context.Context, returnID, rejectionReason string) (*models.ReturnRequest, error) {
	req, err := s.DB.GetReturnByID(ctx, returnID)
	if err != nil {
		return nil, marketerr.Validationf("return request %s not found", returnID)
	}
	if req.Status != models.ReturnStatusPending {
		return nil, marketerr.Conflictf("return request %s is %s, not pending", returnID, req.Status)
	}
	if rejectionReason == "" {
		return nil, marketerr.Validationf("rejection reason is required")
	}

	if err := s.DB.UpdateReturnStatus(ctx, returnID, models.ReturnStatusRejected, rejectionReason); err != nil {
		return nil, fmt.Errorf("failed to reject return %s: %w", returnID, err)
	}
	req.Status = models.ReturnStatusRejected
	req.RejectionReason = rejectionReason
	s.logger.Info("RETURNS", fmt.Sprintf("Return request %s rejected", returnID))

	msg := fmt.Sprintf("Your return request for order %s was rejected: %s", req.OrderID, rejectionReason)
	if err := s.Notify.Send(ctx, req.UserID, models.NotificationReturnRejected, msg, req.ID); err != nil {
		s.logger.Warn("RETURNS", fmt.Sprintf("Failed to notify user %s about rejection: %v", req.UserID, err))
	}
	if err := s.Events.PublishReturnReviewed(*req); err != nil {
		s.logger.Warn("RETURNS", fmt.Sprintf("Failed to publish return.reviewed for %s: %v", req.ID, err))
	}
	return req, nil
}

// Approve accepts a pending or previously approved request and issues the
// refund for the order's full total. The refund method must match the
// order's payment method. A request left APPROVED by an earlier provider
// failure can be retried here; a request that already has a refund row is
// done and refuses to refund again.
func (s *Service) Approve(ctx context.Context, returnID, method string) (*models.Refund, error) {
	req, err := s.DB.GetReturnByID(ctx, returnID)
	if err != nil {
		return nil, marketerr.Validationf("return request %s not found", returnID)
	}
	if req.Status != models.ReturnStatusPending && req.Status != models.ReturnStatusApproved {
		return nil, marketerr.Conflictf("return request %s is %s and cannot be approved", returnID, req.Status)
	}

	order, err := s.DB.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s for return %s: %w", req.OrderID, returnID, err)
	}
	if method != order.PaymentMethod {
		return nil, marketerr.Validationf("refund method %q does not match order payment method %q", method, order.PaymentMethod)
	}
	if order.ChargeID == "" {
		return nil, marketerr.Fatalf("order %s has no charge reference; cannot refund", order.ID)
	}
	gateway, ok := s.Gateways[method]
	if !ok {
		return nil, marketerr.Fatalf("no refund rail for payment method %q", method)
	}

	existing, err := s.DB.GetRefundByReturnID(ctx, returnID)
	if err != nil {
		return nil, fmt.Errorf("failed to check refund for return %s: %w", returnID, err)
	}
	if existing != nil {
		return nil, marketerr.Conflictf("return request %s is already refunded", returnID)
	}

	if req.Status == models.ReturnStatusPending {
		if err := s.DB.UpdateReturnStatus(ctx, returnID, models.ReturnStatusApproved, ""); err != nil {
			return nil, fmt.Errorf("failed to approve return %s: %w", returnID, err)
		}
		req.Status = models.ReturnStatusApproved
	}

	callCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	txnRef, err := gateway.Refund(callCtx, payment.RefundRequest{
		ChargeID: order.ChargeID,
		Amount:   order.Total,
		Currency: s.Currency,
	})
	if err != nil {
		// The request stays APPROVED with no refund row and can be retried.
		s.logger.Error("RETURNS", fmt.Sprintf("Refund failed for return %s: %v", returnID, err))
		return nil, err
	}

	refund := &models.Refund{
		ID:              uuid.New().String(),
		ReturnRequestID: returnID,
		Amount:          order.Total,
		Method:          method,
		TransactionID:   txnRef,
		Status:          models.RefundStatusCompleted,
		CreatedAt:       s.now(),
	}
	if err := s.DB.RecordRefund(ctx, refund); err != nil {
		return nil, fmt.Errorf("failed to record refund for return %s: %w", returnID, err)
	}
	req.Status = models.ReturnStatusCompleted
	s.logger.Info("RETURNS", fmt.Sprintf("Return %s refunded, transaction %s", returnID, txnRef))

	msg := fmt.Sprintf("Your return for order %s was approved and %s %s refunded.", order.ID, order.Total.StringFixed(2), s.Currency)
	if err := s.Notify.Send(ctx, req.UserID, models.NotificationReturnApproved, msg, req.ID); err != nil {
		s.logger.Warn("RETURNS", fmt.Sprintf("Failed to notify user %s about refund: %v", req.UserID, err))
	}
	if err := s.Events.PublishReturnReviewed(*req); err != nil {
		s.logger.Warn("RETURNS", fmt.Sprintf("Failed to publish return.reviewed for %s: %v", req.ID, err))
	}
	return refund, nil
}

// ListByUser returns the user's return requests, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.ReturnRequest, error) {
	return s.DB.GetReturnsByUser(ctx, userID)
}
