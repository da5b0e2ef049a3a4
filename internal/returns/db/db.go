package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

func (d *DB) GetReturnByID(ctx context.Context, id string) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	err := d.Bun.NewSelect().
		Model(&req).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetReturnByOrderAndUser returns nil, nil when no request exists yet.
func (d *DB) GetReturnByOrderAndUser(ctx context.Context, orderID, userID string) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	err := d.Bun.NewSelect().
		Model(&req).
		Where("order_id = ?", orderID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (d *DB) GetReturnsByUser(ctx context.Context, userID string) ([]models.ReturnRequest, error) {
	var reqs []models.ReturnRequest
	err := d.Bun.NewSelect().
		Model(&reqs).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (d *DB) CreateReturn(ctx context.Context, req *models.ReturnRequest) error {
	_, err := d.Bun.NewInsert().
		Model(req).
		Exec(ctx)
	return err
}

func (d *DB) UpdateReturnStatus(ctx context.Context, id, status, rejectionReason string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.ReturnRequest)(nil)).
		Set("status = ?", status).
		Set("rejection_reason = ?", rejectionReason).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("return request %s not found", id)
	}
	return err
}

// GetRefundByReturnID returns nil, nil when no refund has been issued.
func (d *DB) GetRefundByReturnID(ctx context.Context, returnRequestID string) (*models.Refund, error) {
	var refund models.Refund
	err := d.Bun.NewSelect().
		Model(&refund).
		Where("return_request_id = ?", returnRequestID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// RecordRefund inserts the refund row and marks the request completed in one
// transaction. The unique index on return_request_id makes a second insert
// for the same request fail, no matter how the callers raced.
func (d *DB) RecordRefund(ctx context.Context, refund *models.Refund) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(refund).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert refund: %w", err)
		}
		_, err := tx.NewUpdate().
			Model((*models.ReturnRequest)(nil)).
			Set("status = ?", models.ReturnStatusCompleted).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", refund.ReturnRequestID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to complete return request: %w", err)
		}
		return nil
	})
}
