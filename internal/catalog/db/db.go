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

// GetActiveDiscounts returns the discounts whose window contains at,
// highest percentage first, most recently created first on ties.
func (d *DB) GetActiveDiscounts(ctx context.Context, productID string, at time.Time) ([]models.Discount, error) {
	var discounts []models.Discount
	err := d.Bun.NewSelect().
		Model(&discounts).
		Where("product_id = ?", productID).
		Where("is_active = ?", true).
		Where("start_date <= ?", at).
		Where("end_date >= ?", at).
		Order("percentage DESC", "created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return discounts, nil
}

// ListVisibleProducts returns products buyers may see: only those whose
// moderation status is approved, regardless of stock or sold flags.
func (d *DB) ListVisibleProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := d.Bun.NewSelect().
		Model(&products).
		Join("JOIN product_moderations pm ON pm.product_id = product.id").
		Where("pm.status = ?", models.ProductModerationApproved).
		Order("product.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (d *DB) IncrementViews(ctx context.Context, productID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Product)(nil)).
		Set("views = views + 1").
		Where("id = ?", productID).
		Exec(ctx)
	return err
}
