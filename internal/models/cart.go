package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Cart is the per-user basket. The unique index on user_id enforces one cart
// per user; the cart service merges rows if duplicates slip in anyway.
type Cart struct {
	bun.BaseModel `bun:"table:carts"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,unique,notnull" json:"user_id"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type CartItem struct {
	bun.BaseModel `bun:"table:cart_items"`

	ID        string `bun:"id,pk" json:"id"`
	CartID    string `bun:"cart_id,notnull,unique:cart_product" json:"cart_id"`
	ProductID string `bun:"product_id,notnull,unique:cart_product" json:"product_id"`
	Quantity  int    `bun:"quantity,notnull" json:"quantity"`
}
