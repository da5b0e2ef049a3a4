package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID   string `bun:"id,pk" json:"id"`
	Name string `bun:"name,unique,notnull" json:"name"`
	Slug string `bun:"slug,unique,notnull" json:"slug"`
}

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID          string          `bun:"id,pk" json:"id"`
	SellerID    string          `bun:"seller_id,notnull" json:"seller_id"`
	CategoryID  string          `bun:"category_id,nullzero" json:"category_id,omitempty"`
	Name        string          `bun:"name,notnull" json:"name"`
	Description string          `bun:"description,nullzero" json:"description,omitempty"`
	Price       decimal.Decimal `bun:"price,notnull" json:"price"`
	Stock       int             `bun:"stock,notnull" json:"stock"`
	IsSold      bool            `bun:"is_sold,notnull,default:false" json:"is_sold"`
	SoldOut     bool            `bun:"sold_out,notnull,default:false" json:"sold_out"`
	Views       int             `bun:"views,notnull,default:0" json:"views"`
	SalesCount  int             `bun:"sales_count,notnull,default:0" json:"sales_count"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// IsSoldOut reports whether the product can no longer be purchased.
// Holds exactly when stock is exhausted or a sold flag is set.
func (p *Product) IsSoldOut() bool {
	return p.Stock == 0 || p.IsSold || p.SoldOut
}

type Discount struct {
	bun.BaseModel `bun:"table:discounts"`

	ID         string          `bun:"id,pk" json:"id"`
	ProductID  string          `bun:"product_id,notnull" json:"product_id"`
	Percentage decimal.Decimal `bun:"percentage,notnull" json:"percentage"`
	StartDate  time.Time       `bun:"start_date,notnull" json:"start_date"`
	EndDate    time.Time       `bun:"end_date,notnull" json:"end_date"`
	IsActive   bool            `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// ActiveAt reports whether the discount window contains t.
func (d *Discount) ActiveAt(t time.Time) bool {
	return d.IsActive && !t.Before(d.StartDate) && !t.After(d.EndDate)
}
