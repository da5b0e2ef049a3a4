package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"marketplace/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SetOrderCharge records the charge reference and marks the order
// processing. This is the commit barrier write: it happens only after the
// gateway confirmed the capture.
func (d *DB) SetOrderCharge(ctx context.Context, orderID, chargeID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("charge_id = ?", chargeID).
		Set("status = ?", models.OrderStatusProcessing).
		Set("updated_at = current_timestamp").
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

func (d *DB) SetSubscriptionState(ctx context.Context, stripeSubID string, active bool, endDate time.Time) error {
	q := d.Bun.NewUpdate().
		Model((*models.Subscription)(nil)).
		Set("active = ?", active).
		Where("stripe_subscription_id = ?", stripeSubID)
	if !endDate.IsZero() {
		q = q.Set("end_date = ?", endDate)
	}
	_, err := q.Exec(ctx)
	return err
}
