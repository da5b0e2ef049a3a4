package db

import (
	"context"

	"github.com/uptrace/bun"

	"marketplace/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := d.Bun.NewInsert().
		Model(n).
		Exec(ctx)
	return err
}

func (d *DB) GetNotificationsByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	q := d.Bun.NewSelect().
		Model(&notifications).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (d *DB) CountUnread(ctx context.Context, userID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Notification)(nil)).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Count(ctx)
}

func (d *DB) MarkAllRead(ctx context.Context, userID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Exec(ctx)
	return err
}
