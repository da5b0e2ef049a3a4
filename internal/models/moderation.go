package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ReportStatusOpen      = "open"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

// ReportThreshold is the number of open reports against one user that
// triggers automatic account deactivation.
const ReportThreshold = 10

type Report struct {
	bun.BaseModel `bun:"table:reports"`

	ID           string    `bun:"id,pk" json:"id"`
	ReporterID   string    `bun:"reporter_id,notnull" json:"reporter_id"`
	TargetUserID string    `bun:"target_user_id,nullzero" json:"target_user_id,omitempty"`
	ProductID    string    `bun:"product_id,nullzero" json:"product_id,omitempty"`
	Reason       string    `bun:"reason,notnull" json:"reason"`
	Description  string    `bun:"description,nullzero" json:"description,omitempty"`
	Status       string    `bun:"status,notnull" json:"status"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Terminal reports whether the report is in a final state. Moderator actions
// on terminal reports are rejected so notifications never re-fire.
func (r *Report) Terminal() bool {
	return r.Status == ReportStatusResolved || r.Status == ReportStatusDismissed
}

const (
	ModerationActionBan   = "ban"
	ModerationActionWarn  = "warn"
	ModerationActionUnban = "unban"
)

type UserModeration struct {
	bun.BaseModel `bun:"table:user_moderations"`

	ID          string    `bun:"id,pk" json:"id"`
	UserID      string    `bun:"user_id,notnull" json:"user_id"`
	ModeratorID string    `bun:"moderator_id,notnull" json:"moderator_id"`
	Action      string    `bun:"action,notnull" json:"action"`
	Reason      string    `bun:"reason,notnull" json:"reason"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

const (
	ProductModerationPending  = "pending"
	ProductModerationApproved = "approved"
	ProductModerationRejected = "rejected"
)

// ProductModeration gates listing visibility: only approved products are
// shown to buyers, regardless of stock or sold flags.
type ProductModeration struct {
	bun.BaseModel `bun:"table:product_moderations"`

	ID          string    `bun:"id,pk" json:"id"`
	ProductID   string    `bun:"product_id,unique,notnull" json:"product_id"`
	ModeratorID string    `bun:"moderator_id,nullzero" json:"moderator_id,omitempty"`
	Status      string    `bun:"status,notnull" json:"status"`
	Reason      string    `bun:"reason,nullzero" json:"reason,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	ApprovedAt  time.Time `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
}
