package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"marketplace/internal/marketerr"
	"marketplace/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreateOrder inserts the order and its item snapshots and decrements stock,
// all in one transaction. Each product row is re-read under a row lock and
// its stock compared to the requested quantity; any shortfall aborts the
// whole transaction, leaving no order and no stock mutation.
func (d *DB) CreateOrder(ctx context.Context, order models.Order, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, item := range items {
			var product models.Product
			q := tx.NewSelect().
				Model(&product).
				Where("id = ?", item.ProductID)
			// sqlite serializes writers; the row lock is a Postgres concern
			if d.Bun.Dialect().Name() == dialect.PG {
				q = q.For("UPDATE")
			}
			if err := q.Scan(ctx); err != nil {
				return fmt.Errorf("failed to lock product %s: %w", item.ProductID, err)
			}

			if product.IsSoldOut() || product.Stock < item.Quantity {
				return marketerr.Conflictf("insufficient stock for product %s: %d requested, %d available",
					item.ProductID, item.Quantity, product.Stock)
			}

			_, err := tx.NewUpdate().
				Model((*models.Product)(nil)).
				Set("stock = stock - ?", item.Quantity).
				Set("sales_count = sales_count + ?", item.Quantity).
				Where("id = ?", item.ProductID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to decrement stock for product %s: %w", item.ProductID, err)
			}
		}

		if _, err := tx.NewInsert().Model(&order).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		for i := range items {
			if _, err := tx.NewInsert().Model(&items[i]).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
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

func (d *DB) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = current_timestamp").
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

func (d *DB) GetAddress(ctx context.Context, id, userID string) (*models.Address, error) {
	var address models.Address
	err := d.Bun.NewSelect().
		Model(&address).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (d *DB) GetShippingOption(ctx context.Context, id string) (*models.ShippingOption, error) {
	var option models.ShippingOption
	err := d.Bun.NewSelect().
		Model(&option).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &option, nil
}

func (d *DB) GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (d *DB) IncrementPromoUsage(ctx context.Context, promoID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("usage_count = usage_count + 1").
		Where("id = ?", promoID).
		Exec(ctx)
	return err
}

func (d *DB) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
