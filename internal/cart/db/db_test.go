package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"marketplace/internal/cart/db"
	"marketplace/internal/models"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{(*models.Cart)(nil), (*models.CartItem)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}
	return &db.DB{Bun: bunDB}, bunDB
}

func TestGetOrCreateCartIsIdempotent(t *testing.T) {
	cartDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	first, err := cartDB.GetOrCreateCart(ctx, "user1")
	assert.NoError(t, err)
	second, err := cartDB.GetOrCreateCart(ctx, "user1")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	carts, err := cartDB.GetCartsByUser(ctx, "user1")
	assert.NoError(t, err)
	assert.Len(t, carts, 1)
}

func insertCart(t *testing.T, bunDB *bun.DB, userID string, createdAt time.Time) models.Cart {
	cart := models.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: createdAt}
	_, err := bunDB.NewInsert().Model(&cart).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to insert cart: %v", err)
	}
	return cart
}

func insertItem(t *testing.T, bunDB *bun.DB, cartID, productID string, qty int) {
	item := models.CartItem{ID: uuid.NewString(), CartID: cartID, ProductID: productID, Quantity: qty}
	_, err := bunDB.NewInsert().Model(&item).Exec(context.Background())
	assert.NoError(t, err)
}

func TestMergeCartsSumsQuantities(t *testing.T) {
	cartDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	target := insertCart(t, bunDB, "user-a", time.Now().Add(-time.Hour))
	dup := insertCart(t, bunDB, "user-b", time.Now())

	insertItem(t, bunDB, target.ID, "prod1", 2)
	insertItem(t, bunDB, dup.ID, "prod1", 3)
	insertItem(t, bunDB, dup.ID, "prod2", 1)

	err := cartDB.MergeCarts(ctx, target, []models.Cart{dup})
	assert.NoError(t, err)

	items, err := cartDB.GetItems(ctx, target.ID)
	assert.NoError(t, err)
	assert.Len(t, items, 2)

	byProduct := map[string]int{}
	for _, item := range items {
		byProduct[item.ProductID] = item.Quantity
	}
	assert.Equal(t, 5, byProduct["prod1"])
	assert.Equal(t, 1, byProduct["prod2"])

	dupItems, err := cartDB.GetItems(ctx, dup.ID)
	assert.NoError(t, err)
	assert.Empty(t, dupItems)
}

func TestMergeCartsIsIdempotent(t *testing.T) {
	cartDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	target := insertCart(t, bunDB, "user-a", time.Now().Add(-time.Hour))
	dup := insertCart(t, bunDB, "user-b", time.Now())
	insertItem(t, bunDB, target.ID, "prod1", 2)
	insertItem(t, bunDB, dup.ID, "prod1", 3)

	assert.NoError(t, cartDB.MergeCarts(ctx, target, []models.Cart{dup}))
	// Second merge with the duplicate already gone must change nothing.
	assert.NoError(t, cartDB.MergeCarts(ctx, target, []models.Cart{dup}))

	items, err := cartDB.GetItems(ctx, target.ID)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestUpsertItemReplacesQuantity(t *testing.T) {
	cartDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	cart, err := cartDB.GetOrCreateCart(ctx, "user1")
	assert.NoError(t, err)

	assert.NoError(t, cartDB.UpsertItem(ctx, models.CartItem{
		ID: uuid.NewString(), CartID: cart.ID, ProductID: "prod1", Quantity: 2,
	}))
	assert.NoError(t, cartDB.UpsertItem(ctx, models.CartItem{
		ID: uuid.NewString(), CartID: cart.ID, ProductID: "prod1", Quantity: 7,
	}))

	items, err := cartDB.GetItems(ctx, cart.ID)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
}
