package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	SubscriptionPlanFree  = "free"
	SubscriptionPlanBasic = "basic"
	SubscriptionPlanPro   = "pro"
)

// Subscription tracks a seller's plan; its active flag follows webhook-driven
// provider events rather than local writes.
type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions"`

	ID                   string    `bun:"id,pk" json:"id"`
	UserID               string    `bun:"user_id,unique,notnull" json:"user_id"`
	Plan                 string    `bun:"plan,notnull" json:"plan"`
	StripeSubscriptionID string    `bun:"stripe_subscription_id,nullzero" json:"stripe_subscription_id,omitempty"`
	Active               bool      `bun:"active,notnull,default:false" json:"active"`
	StartDate            time.Time `bun:"start_date,notnull,default:current_timestamp" json:"start_date"`
	EndDate              time.Time `bun:"end_date,nullzero" json:"end_date,omitempty"`
}
