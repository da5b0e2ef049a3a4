package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	NotificationNewOrder            = "new_order"
	NotificationReturnRequested     = "return_request"
	NotificationReturnApproved      = "return_approved"
	NotificationReturnRejected      = "return_rejected"
	NotificationReportReceived      = "report_received"
	NotificationReportResolved      = "report_resolved"
	NotificationReportDismissed     = "report_dismissed"
	NotificationProductDeleted      = "product_deleted"
	NotificationAccountDeactivation = "account_deactivation"
	NotificationDeactivationAlert   = "account_deactivation_alert"
	NotificationAccountReactivated  = "account_reactivated"
	NotificationCustom              = "custom_notification"
)

// Notification is the durable record; the realtime push is a best-effort
// convenience layered on top of it.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID              string    `bun:"id,pk" json:"id"`
	UserID          string    `bun:"user_id,notnull" json:"user_id"`
	Type            string    `bun:"notification_type,notnull" json:"notification_type"`
	Message         string    `bun:"message,notnull" json:"message"`
	RelatedObjectID string    `bun:"related_object_id,nullzero" json:"related_object_id,omitempty"`
	IsRead          bool      `bun:"is_read,notnull,default:false" json:"is_read"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
