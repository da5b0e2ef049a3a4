package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

const (
	PaymentMethodCard   = "card"
	PaymentMethodPayPal = "paypal"
)

// Order is buyer-scoped. There is deliberately no seller column: a basket may
// span sellers, so fulfillment is derived per seller from the item snapshots.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string          `bun:"id,pk" json:"id"`
	UserID           string          `bun:"user_id,notnull" json:"user_id"`
	Subtotal         decimal.Decimal `bun:"subtotal,notnull" json:"subtotal"`
	ShippingCost     decimal.Decimal `bun:"shipping_cost,notnull" json:"shipping_cost"`
	DiscountAmount   decimal.Decimal `bun:"discount_amount,notnull" json:"discount_amount"`
	Total            decimal.Decimal `bun:"total,notnull" json:"total"`
	ShippingAddrID   string          `bun:"shipping_address_id,nullzero" json:"shipping_address_id,omitempty"`
	ShippingOptionID string          `bun:"shipping_option_id,nullzero" json:"shipping_option_id,omitempty"`
	Status           string          `bun:"status,notnull" json:"status"`
	PaymentMethod    string          `bun:"payment_method,notnull" json:"payment_method"`
	ChargeID         string          `bun:"charge_id,nullzero" json:"charge_id,omitempty"`
	CreatedAt        time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// OrderItem is an immutable snapshot taken at purchase time. UnitPrice is
// never recomputed, even if the product price changes later.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID        string          `bun:"id,pk" json:"id"`
	OrderID   string          `bun:"order_id,notnull" json:"order_id"`
	ProductID string          `bun:"product_id,notnull" json:"product_id"`
	SellerID  string          `bun:"seller_id,notnull" json:"seller_id"`
	Quantity  int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice decimal.Decimal `bun:"unit_price,notnull" json:"unit_price"`
}

type ShippingOption struct {
	bun.BaseModel `bun:"table:shipping_options"`

	ID            string          `bun:"id,pk" json:"id"`
	Name          string          `bun:"name,notnull" json:"name"`
	Cost          decimal.Decimal `bun:"cost,notnull" json:"cost"`
	EstimatedDays int             `bun:"estimated_days,notnull" json:"estimated_days"`
	IsActive      bool            `bun:"is_active,notnull,default:true" json:"is_active"`
}

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	ID         string          `bun:"id,pk" json:"id"`
	Code       string          `bun:"code,unique,notnull" json:"code"`
	Percentage decimal.Decimal `bun:"percentage,notnull" json:"percentage"`
	ValidFrom  time.Time       `bun:"valid_from,notnull" json:"valid_from"`
	ValidUntil time.Time       `bun:"valid_until,notnull" json:"valid_until"`
	MaxUsage   int             `bun:"max_usage,notnull,default:0" json:"max_usage"`
	UsageCount int             `bun:"usage_count,notnull,default:0" json:"usage_count"`
}

// ValidAt reports whether the code is usable at t.
func (c *PromoCode) ValidAt(t time.Time) bool {
	if t.Before(c.ValidFrom) || t.After(c.ValidUntil) {
		return false
	}
	if c.MaxUsage > 0 && c.UsageCount >= c.MaxUsage {
		return false
	}
	return true
}

// SellerShipment is the per-seller fulfillment view over an order's items.
type SellerShipment struct {
	SellerID string          `json:"seller_id"`
	Items    []OrderItem     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}
