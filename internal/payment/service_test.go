package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
	"marketplace/internal/models"
	"marketplace/internal/payment"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDBLayer) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderItem), args.Error(1)
}

func (m *MockDBLayer) SetOrderCharge(ctx context.Context, orderID, chargeID string) error {
	args := m.Called(ctx, orderID, chargeID)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, orderID string) (string, bool, error) {
	args := m.Called(ctx, orderID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLocker) Release(ctx context.Context, orderID, token string) error {
	args := m.Called(ctx, orderID, token)
	return args.Error(0)
}

type MockCartAccess struct {
	mock.Mock
}

func (m *MockCartAccess) ActiveCart(ctx context.Context, userID string) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartAccess) Clear(ctx context.Context, cartID string) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, userID, notificationType, message, relatedID string) error {
	args := m.Called(ctx, userID, notificationType, message, relatedID)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishPaymentCaptured(order models.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Capture(ctx context.Context, req payment.CaptureRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, req payment.RefundRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func pendingOrder(id string) *models.Order {
	return &models.Order{
		ID:            id,
		UserID:        "user1",
		Total:         decimal.NewFromInt(50),
		Status:        models.OrderStatusPending,
		PaymentMethod: models.PaymentMethodCard,
		CreatedAt:     time.Now(),
	}
}

func newTestService(db *MockDBLayer, lock *MockLocker, carts *MockCartAccess,
	notifier *MockNotifier, events *MockEventPublisher, gw *MockGateway) *payment.Service {
	return payment.NewService(
		db,
		map[string]payment.Gateway{models.PaymentMethodCard: gw},
		lock, carts, notifier, events,
		"eur", 5*time.Second,
		logger.NopLogger(),
	)
}

func TestCaptureSuccess(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	carts := new(MockCartAccess)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	gw := new(MockGateway)
	svc := newTestService(db, lock, carts, notifier, events, gw)

	order := pendingOrder("order1")
	db.On("GetOrderByID", mock.Anything, "order1").Return(order, nil)
	db.On("GetUserByID", mock.Anything, "user1").Return(&models.User{ID: "user1", Email: "buyer@example.com"}, nil)
	lock.On("Acquire", mock.Anything, "order1").Return("token", true, nil)
	lock.On("Release", mock.Anything, "order1", "token").Return(nil)
	gw.On("Capture", mock.Anything, mock.Anything).Return("ch_123", nil)
	db.On("SetOrderCharge", mock.Anything, "order1", "ch_123").Return(nil)
	carts.On("ActiveCart", mock.Anything, "user1").Return(&models.Cart{ID: "cart1", UserID: "user1"}, nil)
	carts.On("Clear", mock.Anything, "cart1").Return(nil)
	db.On("GetItemsByOrder", mock.Anything, "order1").Return([]models.OrderItem{
		{OrderID: "order1", SellerID: "sellerA", Quantity: 1},
		{OrderID: "order1", SellerID: "sellerA", Quantity: 2},
		{OrderID: "order1", SellerID: "sellerB", Quantity: 1},
	}, nil)
	notifier.On("Send", mock.Anything, "sellerA", models.NotificationNewOrder, mock.Anything, "order1").Return(nil)
	notifier.On("Send", mock.Anything, "sellerB", models.NotificationNewOrder, mock.Anything, "order1").Return(nil)
	events.On("PublishPaymentCaptured", mock.Anything).Return(nil)

	chargeRef, err := svc.Capture(context.Background(), "order1", "pm_tok")
	assert.NoError(t, err)
	assert.Equal(t, "ch_123", chargeRef)

	// One notification per distinct seller.
	notifier.AssertNumberOfCalls(t, "Send", 2)
	db.AssertCalled(t, "SetOrderCharge", mock.Anything, "order1", "ch_123")
	carts.AssertCalled(t, "Clear", mock.Anything, "cart1")
}

func TestCaptureAlreadyCapturedIsNoOp(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	carts := new(MockCartAccess)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	gw := new(MockGateway)
	svc := newTestService(db, lock, carts, notifier, events, gw)

	order := pendingOrder("order1")
	order.ChargeID = "ch_existing"
	order.Status = models.OrderStatusProcessing
	db.On("GetOrderByID", mock.Anything, "order1").Return(order, nil)

	chargeRef, err := svc.Capture(context.Background(), "order1", "pm_tok")
	assert.NoError(t, err)
	assert.Equal(t, "ch_existing", chargeRef)

	// No lock, no provider call, no second charge.
	lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
	db.AssertNotCalled(t, "SetOrderCharge", mock.Anything, mock.Anything, mock.Anything)
}

func TestCaptureConcurrentWinnerDetectedUnderLock(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	carts := new(MockCartAccess)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	gw := new(MockGateway)
	svc := newTestService(db, lock, carts, notifier, events, gw)

	first := pendingOrder("order1")
	captured := pendingOrder("order1")
	captured.ChargeID = "ch_won"
	db.On("GetOrderByID", mock.Anything, "order1").Return(first, nil).Once()
	db.On("GetOrderByID", mock.Anything, "order1").Return(captured, nil).Once()
	lock.On("Acquire", mock.Anything, "order1").Return("token", true, nil)
	lock.On("Release", mock.Anything, "order1", "token").Return(nil)

	chargeRef, err := svc.Capture(context.Background(), "order1", "pm_tok")
	assert.NoError(t, err)
	assert.Equal(t, "ch_won", chargeRef)
	gw.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestCaptureLockHeldReturnsConflict(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	carts := new(MockCartAccess)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	gw := new(MockGateway)
	svc := newTestService(db, lock, carts, notifier, events, gw)

	db.On("GetOrderByID", mock.Anything, "order1").Return(pendingOrder("order1"), nil)
	lock.On("Acquire", mock.Anything, "order1").Return("", false, nil)

	_, err := svc.Capture(context.Background(), "order1", "pm_tok")
	assert.True(t, marketerr.IsConflict(err))
	gw.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestCaptureProviderFailureLeavesOrderPending(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	carts := new(MockCartAccess)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	gw := new(MockGateway)
	svc := newTestService(db, lock, carts, notifier, events, gw)

	db.On("GetOrderByID", mock.Anything, "order1").Return(pendingOrder("order1"), nil)
	db.On("GetUserByID", mock.Anything, "user1").Return(&models.User{ID: "user1", Email: "buyer@example.com"}, nil)
	lock.On("Acquire", mock.Anything, "order1").Return("token", true, nil)
	lock.On("Release", mock.Anything, "order1", "token").Return(nil)
	gw.On("Capture", mock.Anything, mock.Anything).Return("", marketerr.Providerf("card declined"))

	_, err := svc.Capture(context.Background(), "order1", "pm_tok")
	assert.True(t, marketerr.IsProvider(err))

	// No barrier write, no cart clearing, no notifications.
	db.AssertNotCalled(t, "SetOrderCharge", mock.Anything, mock.Anything, mock.Anything)
	carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	lock.AssertCalled(t, "Release", mock.Anything, "order1", "token")
}

func TestCaptureValidation(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	carts := new(MockCartAccess)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	gw := new(MockGateway)
	svc := newTestService(db, lock, carts, notifier, events, gw)

	// Missing method token fails before any side effect.
	db.On("GetOrderByID", mock.Anything, "order1").Return(pendingOrder("order1"), nil)
	_, err := svc.Capture(context.Background(), "order1", "")
	assert.True(t, marketerr.IsValidation(err))

	// Unknown payment method fails the same way.
	odd := pendingOrder("order2")
	odd.PaymentMethod = "barter"
	db.On("GetOrderByID", mock.Anything, "order2").Return(odd, nil)
	_, err = svc.Capture(context.Background(), "order2", "pm_tok")
	assert.True(t, marketerr.IsValidation(err))

	// Non-pending orders are rejected.
	shipped := pendingOrder("order3")
	shipped.Status = models.OrderStatusShipped
	db.On("GetOrderByID", mock.Anything, "order3").Return(shipped, nil)
	_, err = svc.Capture(context.Background(), "order3", "pm_tok")
	assert.True(t, marketerr.IsConflict(err))

	lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
}

func TestCaptureUnknownOrder(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	carts := new(MockCartAccess)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	gw := new(MockGateway)
	svc := newTestService(db, lock, carts, notifier, events, gw)

	db.On("GetOrderByID", mock.Anything, "missing").Return(nil, errors.New("sql: no rows in result set"))

	_, err := svc.Capture(context.Background(), "missing", "pm_tok")
	assert.True(t, marketerr.IsValidation(err))
}
