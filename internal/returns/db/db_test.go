package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"marketplace/internal/models"
	"marketplace/internal/returns/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{(*models.ReturnRequest)(nil), (*models.Refund)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}
	return &db.DB{Bun: bunDB}, bunDB
}

func pendingRequest(orderID, userID string) *models.ReturnRequest {
	return &models.ReturnRequest{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		Reason:    "damaged",
		Status:    models.ReturnStatusPending,
		CreatedAt: time.Now(),
	}
}

func TestOneReturnPerOrderAndUser(t *testing.T) {
	returnsDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	assert.NoError(t, returnsDB.CreateReturn(ctx, pendingRequest("order1", "user1")))

	// Same order and user violates the composite unique index.
	err := returnsDB.CreateReturn(ctx, pendingRequest("order1", "user1"))
	assert.Error(t, err)

	// A different user on the same order is fine.
	assert.NoError(t, returnsDB.CreateReturn(ctx, pendingRequest("order1", "user2")))
}

func TestRecordRefundEnforcesSingleRefund(t *testing.T) {
	returnsDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	req := pendingRequest("order1", "user1")
	assert.NoError(t, returnsDB.CreateReturn(ctx, req))

	refund := &models.Refund{
		ID:              uuid.NewString(),
		ReturnRequestID: req.ID,
		Amount:          decimal.NewFromInt(80),
		Method:          models.PaymentMethodCard,
		TransactionID:   "re_1",
		Status:          models.RefundStatusCompleted,
		CreatedAt:       time.Now(),
	}
	assert.NoError(t, returnsDB.RecordRefund(ctx, refund))

	saved, err := returnsDB.GetReturnByID(ctx, req.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.ReturnStatusCompleted, saved.Status)

	// A second refund for the same request must fail on the unique index,
	// whatever the application layer thought it knew.
	second := &models.Refund{
		ID:              uuid.NewString(),
		ReturnRequestID: req.ID,
		Amount:          decimal.NewFromInt(80),
		Method:          models.PaymentMethodCard,
		TransactionID:   "re_2",
		Status:          models.RefundStatusCompleted,
		CreatedAt:       time.Now(),
	}
	assert.Error(t, returnsDB.RecordRefund(ctx, second))

	existing, err := returnsDB.GetRefundByReturnID(ctx, req.ID)
	assert.NoError(t, err)
	assert.Equal(t, "re_1", existing.TransactionID)
}

func TestGetRefundByReturnIDMissingIsNil(t *testing.T) {
	returnsDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	refund, err := returnsDB.GetRefundByReturnID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, refund)
}
