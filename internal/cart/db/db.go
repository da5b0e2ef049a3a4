package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"marketplace/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetCartsByUser returns every cart row for the user, oldest first. Under the
// unique index there is at most one; the service merges if more show up.
func (d *DB) GetCartsByUser(ctx context.Context, userID string) ([]models.Cart, error) {
	var carts []models.Cart
	err := d.Bun.NewSelect().
		Model(&carts).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// GetOrCreateCart returns the user's cart, creating it atomically when
// missing. The insert ignores unique-index conflicts so concurrent callers
// converge on one row.
func (d *DB) GetOrCreateCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart := models.Cart{ID: uuid.NewString(), UserID: userID}
	_, err := d.Bun.NewInsert().
		Model(&cart).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	var existing models.Cart
	err = d.Bun.NewSelect().
		Model(&existing).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (d *DB) GetItems(ctx context.Context, cartID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("cart_id = ?", cartID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (d *DB) GetItem(ctx context.Context, cartID, productID string) (*models.CartItem, error) {
	var item models.CartItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("cart_id = ?", cartID).
		Where("product_id = ?", productID).
		Limit(1).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *DB) UpsertItem(ctx context.Context, item models.CartItem) error {
	_, err := d.Bun.NewInsert().
		Model(&item).
		On("CONFLICT (cart_id, product_id) DO UPDATE").
		Set("quantity = EXCLUDED.quantity").
		Exec(ctx)
	return err
}

func (d *DB) DeleteItem(ctx context.Context, itemID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.CartItem)(nil)).
		Where("id = ?", itemID).
		Exec(ctx)
	return err
}

func (d *DB) ClearCart(ctx context.Context, cartID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.CartItem)(nil)).
		Where("cart_id = ?", cartID).
		Exec(ctx)
	return err
}

// MergeCarts folds every duplicate cart into target: same-product items are
// combined by summing quantities, then the duplicate rows are removed.
// Running it again is a no-op.
func (d *DB) MergeCarts(ctx context.Context, target models.Cart, duplicates []models.Cart) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, dup := range duplicates {
			var items []models.CartItem
			err := tx.NewSelect().
				Model(&items).
				Where("cart_id = ?", dup.ID).
				Scan(ctx)
			if err != nil {
				return err
			}

			for _, item := range items {
				var existing models.CartItem
				err := tx.NewSelect().
					Model(&existing).
					Where("cart_id = ?", target.ID).
					Where("product_id = ?", item.ProductID).
					Limit(1).
					Scan(ctx)
				switch {
				case err == sql.ErrNoRows:
					moved := models.CartItem{
						ID:        uuid.NewString(),
						CartID:    target.ID,
						ProductID: item.ProductID,
						Quantity:  item.Quantity,
					}
					if _, err := tx.NewInsert().Model(&moved).Exec(ctx); err != nil {
						return err
					}
				case err != nil:
					return err
				default:
					existing.Quantity += item.Quantity
					_, err := tx.NewUpdate().
						Model(&existing).
						Column("quantity").
						Where("id = ?", existing.ID).
						Exec(ctx)
					if err != nil {
						return err
					}
				}
			}

			if _, err := tx.NewDelete().
				Model((*models.CartItem)(nil)).
				Where("cart_id = ?", dup.ID).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDelete().
				Model((*models.Cart)(nil)).
				Where("id = ?", dup.ID).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
