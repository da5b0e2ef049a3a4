package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
	"marketplace/internal/models"
)

type DBLayer interface {
	GetReportByID(ctx context.Context, id string) (*models.Report, error)
	CreateReport(ctx context.Context, report *models.Report) error
	UpdateReportStatus(ctx context.Context, id, status string) error
	ListOpenReports(ctx context.Context) ([]models.Report, error)
	CountOpenReportsAgainst(ctx context.Context, userID string) (int, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SetUserActive(ctx context.Context, userID string, active bool) error
	ListStaffUsers(ctx context.Context) ([]models.User, error)
	CreateUserModeration(ctx context.Context, mod *models.UserModeration) error
	GetProductModeration(ctx context.Context, productID string) (*models.ProductModeration, error)
	CreateProductModeration(ctx context.Context, mod *models.ProductModeration) error
	UpdateProductModeration(ctx context.Context, productID, moderatorID, status, reason string) error
}

type Notifier interface {
	Send(ctx context.Context, userID, notificationType, message, relatedID string) error
}

type EventPublisher interface {
	PublishReportCreated(report models.Report) error
	PublishUserDeactivated(userID string) error
}

// Service handles user and product reports, the automatic escalation that
// deactivates heavily reported accounts, and staff moderation actions.
type Service struct {
	DB     DBLayer
	Notify Notifier
	Events EventPublisher
	logger *logger.Logger
	now    func() time.Time
}

func NewService(db DBLayer, notify Notifier, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		DB:     db,
		Notify: notify,
		Events: events,
		logger: log,
		now:    time.Now,
	}
}

// CreateReport files a report against a user or a product, never both. The
// reported party gets an anonymized notification. When the open-report count
// against the resolved target reaches the threshold, their account is
// deactivated automatically.
func (s *Service) CreateReport(ctx context.Context, reporterID, targetUserID, productID, reason, description string) (*models.Report, error) {
	if reason == "" {
		return nil, marketerr.Validationf("report reason is required")
	}
	if (targetUserID == "") == (productID == "") {
		return nil, marketerr.Validationf("a report must target exactly one user or one product")
	}

	var subjectID string
	if targetUserID != "" {
		if targetUserID == reporterID {
			return nil, marketerr.Validationf("you cannot report yourself")
		}
		if _, err := s.DB.GetUserByID(ctx, targetUserID); err != nil {
			return nil, marketerr.Validationf("reported user %s not found", targetUserID)
		}
		subjectID = targetUserID
	} else {
		product, err := s.DB.GetProductByID(ctx, productID)
		if err != nil {
			return nil, marketerr.Validationf("reported product %s not found", productID)
		}
		if product.SellerID == reporterID {
			return nil, marketerr.Validationf("you cannot report your own product")
		}
		subjectID = product.SellerID
	}

	report := &models.Report{
		ID:           uuid.New().String(),
		ReporterID:   reporterID,
		TargetUserID: targetUserID,
		ProductID:    productID,
		Reason:       reason,
		Description:  description,
		Status:       models.ReportStatusOpen,
		CreatedAt:    s.now(),
	}
	if err := s.DB.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	s.logger.Info("MODERATION", fmt.Sprintf("Report %s filed against user %s", report.ID, subjectID))

	// The reporter's identity is never part of the message.
	msg := "Your account or one of your listings has been reported. A moderator will review it."
	if err := s.Notify.Send(ctx, subjectID, models.NotificationReportReceived, msg, report.ID); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to notify reported user %s: %v", subjectID, err))
	}
	if err := s.Events.PublishReportCreated(*report); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to publish report.created for %s: %v", report.ID, err))
	}

	if err := s.escalateIfNeeded(ctx, subjectID); err != nil {
		s.logger.Error("MODERATION", fmt.Sprintf("Escalation check failed for user %s: %v", subjectID, err))
	}
	return report, nil
}

func (s *Service) escalateIfNeeded(ctx context.Context, userID string) error {
	count, err := s.DB.CountOpenReportsAgainst(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count reports against %s: %w", userID, err)
	}
	if count < models.ReportThreshold {
		return nil
	}

	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if !user.IsActive {
		// Already deactivated; do not re-fire notifications.
		return nil
	}

	if err := s.DB.SetUserActive(ctx, userID, false); err != nil {
		return fmt.Errorf("failed to deactivate user %s: %w", userID, err)
	}
	s.logger.Warn("MODERATION", fmt.Sprintf("User %s deactivated after %d open reports", userID, count))

	msg := "Your account has been deactivated after multiple reports. Contact support to appeal."
	if err := s.Notify.Send(ctx, userID, models.NotificationAccountDeactivation, msg, ""); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to notify deactivated user %s: %v", userID, err))
	}

	staff, err := s.DB.ListStaffUsers(ctx)
	if err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to list staff for deactivation alert: %v", err))
	} else {
		alert := fmt.Sprintf("User %s was automatically deactivated after %d open reports.", userID, count)
		for _, member := range staff {
			if err := s.Notify.Send(ctx, member.ID, models.NotificationDeactivationAlert, alert, userID); err != nil {
				s.logger.Warn("MODERATION", fmt.Sprintf("Failed to alert staff %s: %v", member.ID, err))
			}
		}
	}

	if err := s.Events.PublishUserDeactivated(userID); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to publish user.deactivated for %s: %v", userID, err))
	}
	return nil
}

func (s *Service) openReport(ctx context.Context, reportID string) (*models.Report, error) {
	report, err := s.DB.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, marketerr.Validationf("report %s not found", reportID)
	}
	if report.Terminal() {
		return nil, marketerr.Conflictf("report %s is already %s", reportID, report.Status)
	}
	return report, nil
}

// subject resolves who a report is about: the direct target, or the seller
// of the reported product.
func (s *Service) subject(ctx context.Context, report *models.Report) (string, error) {
	if report.TargetUserID != "" {
		return report.TargetUserID, nil
	}
	product, err := s.DB.GetProductByID(ctx, report.ProductID)
	if err != nil {
		return "", fmt.Errorf("failed to load reported product %s: %w", report.ProductID, err)
	}
	return product.SellerID, nil
}

// Dismiss closes a report with no action taken.
func (s *Service) Dismiss(ctx context.Context, reportID, moderatorID string) error {
	report, err := s.openReport(ctx, reportID)
	if err != nil {
		return err
	}
	if err := s.DB.UpdateReportStatus(ctx, reportID, models.ReportStatusDismissed); err != nil {
		return fmt.Errorf("failed to dismiss report %s: %w", reportID, err)
	}
	s.logger.Info("MODERATION", fmt.Sprintf("Report %s dismissed by %s", reportID, moderatorID))

	msg := "Your report was reviewed and dismissed."
	if err := s.Notify.Send(ctx, report.ReporterID, models.NotificationReportDismissed, msg, reportID); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to notify reporter %s: %v", report.ReporterID, err))
	}
	return nil
}

// Resolve closes a report as handled.
func (s *Service) Resolve(ctx context.Context, reportID, moderatorID string) error {
	report, err := s.openReport(ctx, reportID)
	if err != nil {
		return err
	}
	if err := s.DB.UpdateReportStatus(ctx, reportID, models.ReportStatusResolved); err != nil {
		return fmt.Errorf("failed to resolve report %s: %w", reportID, err)
	}
	s.logger.Info("MODERATION", fmt.Sprintf("Report %s resolved by %s", reportID, moderatorID))

	msg := "Your report was reviewed and action has been taken."
	if err := s.Notify.Send(ctx, report.ReporterID, models.NotificationReportResolved, msg, reportID); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to notify reporter %s: %v", report.ReporterID, err))
	}
	return nil
}

// WarnSubject sends a moderator-written warning to the reported party and
// resolves the report.
func (s *Service) WarnSubject(ctx context.Context, reportID, moderatorID, message string) error {
	if message == "" {
		return marketerr.Validationf("warning message is required")
	}
	report, err := s.openReport(ctx, reportID)
	if err != nil {
		return err
	}
	subjectID, err := s.subject(ctx, report)
	if err != nil {
		return err
	}

	if err := s.Notify.Send(ctx, subjectID, models.NotificationCustom, message, reportID); err != nil {
		return fmt.Errorf("failed to warn user %s: %w", subjectID, err)
	}
	mod := &models.UserModeration{
		ID:          uuid.New().String(),
		UserID:      subjectID,
		ModeratorID: moderatorID,
		Action:      models.ModerationActionWarn,
		Reason:      message,
		CreatedAt:   s.now(),
	}
	if err := s.DB.CreateUserModeration(ctx, mod); err != nil {
		return fmt.Errorf("failed to record warning for user %s: %w", subjectID, err)
	}
	return s.Resolve(ctx, reportID, moderatorID)
}

// RemoveProduct deletes the reported listing and resolves the report.
func (s *Service) RemoveProduct(ctx context.Context, reportID, moderatorID string) error {
	report, err := s.openReport(ctx, reportID)
	if err != nil {
		return err
	}
	if report.ProductID == "" {
		return marketerr.Validationf("report %s does not target a product", reportID)
	}
	product, err := s.DB.GetProductByID(ctx, report.ProductID)
	if err != nil {
		return marketerr.Validationf("reported product %s not found", report.ProductID)
	}

	if err := s.DB.DeleteProduct(ctx, product.ID); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", product.ID, err)
	}
	s.logger.Info("MODERATION", fmt.Sprintf("Product %s removed by %s for report %s", product.ID, moderatorID, reportID))

	msg := fmt.Sprintf("Your listing %q was removed by a moderator.", product.Name)
	if err := s.Notify.Send(ctx, product.SellerID, models.NotificationProductDeleted, msg, reportID); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to notify seller %s: %v", product.SellerID, err))
	}
	return s.Resolve(ctx, reportID, moderatorID)
}

// DeactivateSubject bans the reported party, records the action, and
// resolves the report.
func (s *Service) DeactivateSubject(ctx context.Context, reportID, moderatorID, reason string) error {
	if reason == "" {
		return marketerr.Validationf("deactivation reason is required")
	}
	report, err := s.openReport(ctx, reportID)
	if err != nil {
		return err
	}
	subjectID, err := s.subject(ctx, report)
	if err != nil {
		return err
	}

	if err := s.DB.SetUserActive(ctx, subjectID, false); err != nil {
		return fmt.Errorf("failed to deactivate user %s: %w", subjectID, err)
	}
	mod := &models.UserModeration{
		ID:          uuid.New().String(),
		UserID:      subjectID,
		ModeratorID: moderatorID,
		Action:      models.ModerationActionBan,
		Reason:      reason,
		CreatedAt:   s.now(),
	}
	if err := s.DB.CreateUserModeration(ctx, mod); err != nil {
		return fmt.Errorf("failed to record ban for user %s: %w", subjectID, err)
	}
	s.logger.Warn("MODERATION", fmt.Sprintf("User %s deactivated by %s for report %s", subjectID, moderatorID, reportID))

	msg := fmt.Sprintf("Your account has been deactivated: %s", reason)
	if err := s.Notify.Send(ctx, subjectID, models.NotificationAccountDeactivation, msg, reportID); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to notify user %s: %v", subjectID, err))
	}
	if err := s.Events.PublishUserDeactivated(subjectID); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to publish user.deactivated for %s: %v", subjectID, err))
	}
	return s.Resolve(ctx, reportID, moderatorID)
}

// ReactivateUser lifts a deactivation. It is independent of any report.
func (s *Service) ReactivateUser(ctx context.Context, userID, moderatorID, reason string) error {
	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		return marketerr.Validationf("user %s not found", userID)
	}
	if user.IsActive {
		return marketerr.Conflictf("user %s is already active", userID)
	}

	if err := s.DB.SetUserActive(ctx, userID, true); err != nil {
		return fmt.Errorf("failed to reactivate user %s: %w", userID, err)
	}
	mod := &models.UserModeration{
		ID:          uuid.New().String(),
		UserID:      userID,
		ModeratorID: moderatorID,
		Action:      models.ModerationActionUnban,
		Reason:      reason,
		CreatedAt:   s.now(),
	}
	if err := s.DB.CreateUserModeration(ctx, mod); err != nil {
		return fmt.Errorf("failed to record reactivation for user %s: %w", userID, err)
	}
	s.logger.Info("MODERATION", fmt.Sprintf("User %s reactivated by %s", userID, moderatorID))

	msg := "Your account has been reactivated."
	if err := s.Notify.Send(ctx, userID, models.NotificationAccountReactivated, msg, ""); err != nil {
		s.logger.Warn("MODERATION", fmt.Sprintf("Failed to notify user %s: %v", userID, err))
	}
	return nil
}

// ModerateProduct decides a pending listing. Decided listings are final.
func (s *Service) ModerateProduct(ctx context.Context, productID, moderatorID string, approve bool, reason string) error {
	if _, err := s.DB.GetProductByID(ctx, productID); err != nil {
		return marketerr.Validationf("product %s not found", productID)
	}

	mod, err := s.DB.GetProductModeration(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to load moderation for product %s: %w", productID, err)
	}
	if mod != nil && mod.Status != models.ProductModerationPending {
		return marketerr.Conflictf("product %s is already %s", productID, mod.Status)
	}

	status := models.ProductModerationRejected
	if approve {
		status = models.ProductModerationApproved
	} else if reason == "" {
		return marketerr.Validationf("rejection reason is required")
	}

	if mod == nil {
		row := &models.ProductModeration{
			ID:          uuid.New().String(),
			ProductID:   productID,
			ModeratorID: moderatorID,
			Status:      status,
			Reason:      reason,
			CreatedAt:   s.now(),
		}
		if status == models.ProductModerationApproved {
			row.ApprovedAt = s.now()
		}
		if err := s.DB.CreateProductModeration(ctx, row); err != nil {
			return fmt.Errorf("failed to record moderation for product %s: %w", productID, err)
		}
	} else if err := s.DB.UpdateProductModeration(ctx, productID, moderatorID, status, reason); err != nil {
		return fmt.Errorf("failed to update moderation for product %s: %w", productID, err)
	}

	s.logger.Info("MODERATION", fmt.Sprintf("Product %s %s by %s", productID, status, moderatorID))
	return nil
}

// OpenReports lists reports still waiting on a moderator, oldest first.
func (s *Service) OpenReports(ctx context.Context) ([]models.Report, error) {
	return s.DB.ListOpenReports(ctx)
}
