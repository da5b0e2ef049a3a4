package moderation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
	"marketplace/internal/models"
	"marketplace/internal/moderation"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetReportByID(ctx context.Context, id string) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockDBLayer) CreateReport(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateReportStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDBLayer) ListOpenReports(ctx context.Context) ([]models.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *MockDBLayer) CountOpenReportsAgainst(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockDBLayer) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDBLayer) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockDBLayer) DeleteProduct(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDBLayer) SetUserActive(ctx context.Context, userID string, active bool) error {
	args := m.Called(ctx, userID, active)
	return args.Error(0)
}

func (m *MockDBLayer) ListStaffUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockDBLayer) CreateUserModeration(ctx context.Context, mod *models.UserModeration) error {
	args := m.Called(ctx, mod)
	return args.Error(0)
}

func (m *MockDBLayer) GetProductModeration(ctx context.Context, productID string) (*models.ProductModeration, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductModeration), args.Error(1)
}

func (m *MockDBLayer) CreateProductModeration(ctx context.Context, mod *models.ProductModeration) error {
	args := m.Called(ctx, mod)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateProductModeration(ctx context.Context, productID, moderatorID, status, reason string) error {
	args := m.Called(ctx, productID, moderatorID, status, reason)
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

func (m *MockEventPublisher) PublishReportCreated(report models.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishUserDeactivated(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func newTestService(db *MockDBLayer, notifier *MockNotifier, events *MockEventPublisher) *moderation.Service {
	return moderation.NewService(db, notifier, events, logger.NopLogger())
}

func TestCreateReportBelowThresholdDoesNotDeactivate(t *testing.T) {
	db := new(MockDBLayer)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	svc := newTestService(db, notifier, events)

	db.On("GetUserByID", mock.Anything, "target1").Return(&models.User{ID: "target1", IsActive: true}, nil)
	db.On("CreateReport", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Send", mock.Anything, "target1", models.NotificationReportReceived, mock.Anything, mock.Anything).Return(nil)
	events.On("PublishReportCreated", mock.Anything).Return(nil)
	db.On("CountOpenReportsAgainst", mock.Anything, "target1").Return(models.ReportThreshold-1, nil)

	report, err := svc.CreateReport(context.Background(), "reporter1", "target1", "", "spam", "")
	assert.NoError(t, err)
	assert.Equal(t, models.ReportStatusOpen, report.Status)

	db.AssertNotCalled(t, "SetUserActive", mock.Anything, mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "PublishUserDeactivated", mock.Anything)
}

func TestCreateReportAtThresholdDeactivates(t *testing.T) {
	db := new(MockDBLayer)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	svc := newTestService(db, notifier, events)

	db.On("GetUserByID", mock.Anything, "target1").Return(&models.User{ID: "target1", IsActive: true}, nil)
	db.On("CreateReport", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	events.On("PublishReportCreated", mock.Anything).Return(nil)
	db.On("CountOpenReportsAgainst", mock.Anything, "target1").Return(models.ReportThreshold, nil)
	db.On("SetUserActive", mock.Anything, "target1", false).Return(nil)
	db.On("ListStaffUsers", mock.Anything).Return([]models.User{
		{ID: "staff1", IsStaff: true},
		{ID: "staff2", IsStaff: true},
	}, nil)
	events.On("PublishUserDeactivated", "target1").Return(nil)

	_, err := svc.CreateReport(context.Background(), "reporter1", "target1", "", "spam", "")
	assert.NoError(t, err)

	db.AssertCalled(t, "SetUserActive", mock.Anything, "target1", false)
	events.AssertCalled(t, "PublishUserDeactivated", "target1")
	// Reported user notice, deactivation notice, two staff alerts.
	notifier.AssertNumberOfCalls(t, "Send", 4)
}

func TestCreateReportAgainstProductEscalatesToSeller(t *testing.T) {
	db := new(MockDBLayer)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	svc := newTestService(db, notifier, events)

	db.On("GetProductByID", mock.Anything, "prod1").Return(&models.Product{ID: "prod1", SellerID: "seller1"}, nil)
	db.On("CreateReport", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Send", mock.Anything, "seller1", models.NotificationReportReceived, mock.Anything, mock.Anything).Return(nil)
	events.On("PublishReportCreated", mock.Anything).Return(nil)
	db.On("CountOpenReportsAgainst", mock.Anything, "seller1").Return(1, nil)

	report, err := svc.CreateReport(context.Background(), "reporter1", "", "prod1", "counterfeit", "fake branding")
	assert.NoError(t, err)
	assert.Equal(t, "prod1", report.ProductID)
	assert.Empty(t, report.TargetUserID)

	db.AssertCalled(t, "CountOpenReportsAgainst", mock.Anything, "seller1")
}

func TestCreateReportValidation(t *testing.T) {
	svc := newTestService(new(MockDBLayer), new(MockNotifier), new(MockEventPublisher))
	ctx := context.Background()

	_, err := svc.CreateReport(ctx, "reporter1", "", "", "spam", "")
	assert.True(t, marketerr.IsValidation(err), "must target a user or a product")

	_, err = svc.CreateReport(ctx, "reporter1", "target1", "prod1", "spam", "")
	assert.True(t, marketerr.IsValidation(err), "cannot target both")

	_, err = svc.CreateReport(ctx, "reporter1", "reporter1", "", "spam", "")
	assert.True(t, marketerr.IsValidation(err), "cannot report yourself")
}

func TestAlreadyDeactivatedUserNotReprocessed(t *testing.T) {
	db := new(MockDBLayer)
	notifier := new(MockNotifier)
	events := new(MockEventPublisher)
	svc := newTestService(db, notifier, events)

	db.On("GetUserByID", mock.Anything, "target1").Return(&models.User{ID: "target1", IsActive: false}, nil)
	db.On("CreateReport", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	events.On("PublishReportCreated", mock.Anything).Return(nil)
	db.On("CountOpenReportsAgainst", mock.Anything, "target1").Return(models.ReportThreshold+3, nil)

	_, err := svc.CreateReport(context.Background(), "reporter1", "target1", "", "spam", "")
	assert.NoError(t, err)

	db.AssertNotCalled(t, "SetUserActive", mock.Anything, mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "PublishUserDeactivated", mock.Anything)
}

func TestModeratorActionOnTerminalReportConflicts(t *testing.T) {
	db := new(MockDBLayer)
	notifier := new(MockNotifier)
	svc := newTestService(db, notifier, new(MockEventPublisher))
	ctx := context.Background()

	resolved := &models.Report{ID: "rep1", ReporterID: "reporter1", TargetUserID: "target1", Status: models.ReportStatusResolved}
	db.On("GetReportByID", mock.Anything, "rep1").Return(resolved, nil)

	assert.True(t, marketerr.IsConflict(svc.Resolve(ctx, "rep1", "mod1")))
	assert.True(t, marketerr.IsConflict(svc.Dismiss(ctx, "rep1", "mod1")))
	assert.True(t, marketerr.IsConflict(svc.WarnSubject(ctx, "rep1", "mod1", "stop it")))
	assert.True(t, marketerr.IsConflict(svc.DeactivateSubject(ctx, "rep1", "mod1", "abuse")))

	// Terminal reports never re-fire notifications.
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDismissClosesReport(t *testing.T) {
	db := new(MockDBLayer)
	notifier := new(MockNotifier)
	svc := newTestService(db, notifier, new(MockEventPublisher))

	open := &models.Report{ID: "rep1", ReporterID: "reporter1", TargetUserID: "target1", Status: models.ReportStatusOpen}
	db.On("GetReportByID", mock.Anything, "rep1").Return(open, nil)
	db.On("UpdateReportStatus", mock.Anything, "rep1", models.ReportStatusDismissed).Return(nil)
	notifier.On("Send", mock.Anything, "reporter1", models.NotificationReportDismissed, mock.Anything, "rep1").Return(nil)

	assert.NoError(t, svc.Dismiss(context.Background(), "rep1", "mod1"))
}

func TestRemoveProductNotifiesSeller(t *testing.T) {
	db := new(MockDBLayer)
	notifier := new(MockNotifier)
	svc := newTestService(db, notifier, new(MockEventPublisher))

	open := &models.Report{ID: "rep1", ReporterID: "reporter1", ProductID: "prod1", Status: models.ReportStatusOpen}
	db.On("GetReportByID", mock.Anything, "rep1").Return(open, nil)
	db.On("GetProductByID", mock.Anything, "prod1").Return(&models.Product{ID: "prod1", SellerID: "seller1", Name: "Lamp"}, nil)
	db.On("DeleteProduct", mock.Anything, "prod1").Return(nil)
	db.On("UpdateReportStatus", mock.Anything, "rep1", models.ReportStatusResolved).Return(nil)
	notifier.On("Send", mock.Anything, "seller1", models.NotificationProductDeleted, mock.Anything, "rep1").Return(nil)
	notifier.On("Send", mock.Anything, "reporter1", models.NotificationReportResolved, mock.Anything, "rep1").Return(nil)

	assert.NoError(t, svc.RemoveProduct(context.Background(), "rep1", "mod1"))
	db.AssertCalled(t, "DeleteProduct", mock.Anything, "prod1")
}

func TestModerateProductDecisionIsFinal(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, new(MockNotifier), new(MockEventPublisher))
	ctx := context.Background()

	db.On("GetProductByID", mock.Anything, "prod1").Return(&models.Product{ID: "prod1", SellerID: "seller1"}, nil)
	db.On("GetProductModeration", mock.Anything, "prod1").Return(&models.ProductModeration{
		ProductID: "prod1", Status: models.ProductModerationApproved,
	}, nil)

	err := svc.ModerateProduct(ctx, "prod1", "mod1", false, "spam listing")
	assert.True(t, marketerr.IsConflict(err))
}

func TestModerateProductApprovesPending(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, new(MockNotifier), new(MockEventPublisher))

	db.On("GetProductByID", mock.Anything, "prod1").Return(&models.Product{ID: "prod1", SellerID: "seller1"}, nil)
	db.On("GetProductModeration", mock.Anything, "prod1").Return(&models.ProductModeration{
		ProductID: "prod1", Status: models.ProductModerationPending,
	}, nil)
	db.On("UpdateProductModeration", mock.Anything, "prod1", "mod1", models.ProductModerationApproved, "").Return(nil)

	assert.NoError(t, svc.ModerateProduct(context.Background(), "prod1", "mod1", true, ""))
}

func TestReactivateUser(t *testing.T) {
	db := new(MockDBLayer)
	notifier := new(MockNotifier)
	svc := newTestService(db, notifier, new(MockEventPublisher))
	ctx := context.Background()

	db.On("GetUserByID", mock.Anything, "target1").Return(&models.User{ID: "target1", IsActive: false}, nil)
	db.On("SetUserActive", mock.Anything, "target1", true).Return(nil)
	db.On("CreateUserModeration", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Send", mock.Anything, "target1", models.NotificationAccountReactivated, mock.Anything, "").Return(nil)

	assert.NoError(t, svc.ReactivateUser(ctx, "target1", "mod1", "appeal accepted"))

	db.On("GetUserByID", mock.Anything, "active1").Return(&models.User{ID: "active1", IsActive: true}, nil)
	err := svc.ReactivateUser(ctx, "active1", "mod1", "noop")
	assert.True(t, marketerr.IsConflict(err))
}
