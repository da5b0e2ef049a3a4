package database

import (
	"context"

	"github.com/uptrace/bun"

	"marketplace/internal/models"
)

// CreateTables builds the full schema from the bun models. Local runs and the
// sqlite-backed tests use this; production schemas come from the versioned
// migration files (see migrations.Runner).
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Address)(nil),
		(*models.Category)(nil),
		(*models.Product)(nil),
		(*models.Discount)(nil),
		(*models.Cart)(nil),
		(*models.CartItem)(nil),
		(*models.ShippingOption)(nil),
		(*models.PromoCode)(nil),
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.ReturnRequest)(nil),
		(*models.Refund)(nil),
		(*models.Report)(nil),
		(*models.UserModeration)(nil),
		(*models.ProductModeration)(nil),
		(*models.Notification)(nil),
		(*models.Subscription)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
