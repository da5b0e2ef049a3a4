package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	ReturnStatusPending   = "PENDING"
	ReturnStatusApproved  = "APPROVED"
	ReturnStatusRejected  = "REJECTED"
	ReturnStatusCompleted = "COMPLETED"
)

const (
	RefundStatusPending   = "PENDING"
	RefundStatusCompleted = "COMPLETED"
	RefundStatusFailed    = "FAILED"
)

// ReturnWindow is how long after order creation a return may be requested.
// The boundary day is inclusive.
const ReturnWindow = 30 * 24 * time.Hour

type ReturnRequest struct {
	bun.BaseModel `bun:"table:return_requests"`

	ID              string    `bun:"id,pk" json:"id"`
	OrderID         string    `bun:"order_id,notnull,unique:order_user" json:"order_id"`
	UserID          string    `bun:"user_id,notnull,unique:order_user" json:"user_id"`
	Reason          string    `bun:"reason,notnull" json:"reason"`
	Status          string    `bun:"status,notnull" json:"status"`
	RejectionReason string    `bun:"rejection_reason,nullzero" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Refund is one-to-one with a ReturnRequest; the unique index on
// return_request_id is the authoritative guard against double refunds.
type Refund struct {
	bun.BaseModel `bun:"table:refunds"`

	ID              string          `bun:"id,pk" json:"id"`
	ReturnRequestID string          `bun:"return_request_id,unique,notnull" json:"return_request_id"`
	Amount          decimal.Decimal `bun:"amount,notnull" json:"amount"`
	Method          string          `bun:"method,notnull" json:"method"`
	TransactionID   string          `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	Status          string          `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
