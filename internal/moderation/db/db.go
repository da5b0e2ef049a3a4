package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"marketplace/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetReportByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := d.Bun.NewSelect().
		Model(&report).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (d *DB) CreateReport(ctx context.Context, report *models.Report) error {
	_, err := d.Bun.NewInsert().
		Model(report).
		Exec(ctx)
	return err
}

func (d *DB) UpdateReportStatus(ctx context.Context, id, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Report)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) ListOpenReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	err := d.Bun.NewSelect().
		Model(&reports).
		Where("status = ?", models.ReportStatusOpen).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// CountOpenReportsAgainst counts open reports that hit the user directly or
// through one of their product listings.
func (d *DB) CountOpenReportsAgainst(ctx context.Context, userID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Report)(nil)).
		Where("status = ?", models.ReportStatusOpen).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("target_user_id = ?", userID).
				WhereOr("product_id IN (SELECT id FROM products WHERE seller_id = ?)", userID)
		}).
		Count(ctx)
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

func (d *DB) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := d.Bun.NewSelect().
		Model(&product).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *DB) DeleteProduct(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Product)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) SetUserActive(ctx context.Context, userID string, active bool) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_active = ?", active).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (d *DB) ListStaffUsers(ctx context.Context) ([]models.User, error) {
	var staff []models.User
	err := d.Bun.NewSelect().
		Model(&staff).
		Where("is_staff = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (d *DB) CreateUserModeration(ctx context.Context, mod *models.UserModeration) error {
	_, err := d.Bun.NewInsert().
		Model(mod).
		Exec(ctx)
	return err
}

// GetProductModeration returns nil, nil when the product has no moderation
// row yet.
func (d *DB) GetProductModeration(ctx context.Context, productID string) (*models.ProductModeration, error) {
	var mod models.ProductModeration
	err := d.Bun.NewSelect().
		Model(&mod).
		Where("product_id = ?", productID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mod, nil
}

func (d *DB) CreateProductModeration(ctx context.Context, mod *models.ProductModeration) error {
	_, err := d.Bun.NewInsert().
		Model(mod).
		Exec(ctx)
	return err
}

func (d *DB) UpdateProductModeration(ctx context.Context, productID, moderatorID, status, reason string) error {
	q := d.Bun.NewUpdate().
		Model((*models.ProductModeration)(nil)).
		Set("moderator_id = ?", moderatorID).
		Set("status = ?", status).
		Set("reason = ?", reason).
		Where("product_id = ?", productID)
	if status == models.ProductModerationApproved {
		q = q.Set("approved_at = ?", time.Now())
	}
	_, err := q.Exec(ctx)
	return err
}
