package notify

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
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotificationsByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAllRead(ctx context.Context, userID string) error
}

// Service persists notifications and layers best-effort delivery on top:
// a realtime push to connected clients and a cached unread counter. The
// database row is the source of truth; everything else may lag or miss.
type Service struct {
	DB      DBLayer
	Emitter *Emitter
	Cache   UnreadCache
	logger  *logger.Logger
	now     func() time.Time
}

func NewService(db DBLayer, emitter *Emitter, cache UnreadCache, log *logger.Logger) *Service {
	return &Service{
		DB:      db,
		Emitter: emitter,
		Cache:   cache,
		logger:  log,
		now:     time.Now,
	}
}

// Send stores the notification and then pushes it. The store is the only
// step that can fail the call.
func (s *Service) Send(ctx context.Context, userID, notificationType, message, relatedID string) error {
	if userID == "" {
		return marketerr.Validationf("notification recipient is required")
	}
	if message == "" {
		return marketerr.Validationf("notification message is required")
	}

	n := &models.Notification{
		ID:              uuid.New().String(),
		UserID:          userID,
		Type:            notificationType,
		Message:         message,
		RelatedObjectID: relatedID,
		CreatedAt:       s.now(),
	}
	if err := s.DB.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification for user %s: %w", userID, err)
	}

	s.Emitter.Emit(*n)

	if err := s.Cache.Increment(ctx, userID); err != nil {
		s.logger.Warn("NOTIFY", fmt.Sprintf("Failed to bump unread count for user %s: %v", userID, err))
	}
	return nil
}

// UnreadCount serves from the cache and recomputes from the database on a
// miss, warming the cache for the next read.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, ok, err := s.Cache.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("NOTIFY", fmt.Sprintf("Unread cache read failed for user %s: %v", userID, err))
	} else if ok {
		return count, nil
	}

	count, err = s.DB.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for user %s: %w", userID, err)
	}
	if err := s.Cache.Set(ctx, userID, count); err != nil {
		s.logger.Warn("NOTIFY", fmt.Sprintf("Failed to warm unread cache for user %s: %v", userID, err))
	}
	return count, nil
}

// MarkAllRead flips every unread row and zeroes the cached counter.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.DB.MarkAllRead(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark notifications read for user %s: %w", userID, err)
	}
	if err := s.Cache.Reset(ctx, userID); err != nil {
		s.logger.Warn("NOTIFY", fmt.Sprintf("Failed to reset unread cache for user %s: %v", userID, err))
	}
	return nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	return s.DB.GetNotificationsByUser(ctx, userID, limit)
}

// Subscribe opens a realtime stream of the user's notifications.
func (s *Service) Subscribe(ctx context.Context, userID string) chan models.Notification {
	return s.Emitter.Subscribe(ctx, userID)
}
