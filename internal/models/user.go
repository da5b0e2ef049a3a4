package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `bun:"id,pk" json:"id"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	Username  string    `bun:"username,unique,notnull" json:"username"`
	IsActive  bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	IsStaff   bool      `bun:"is_staff,notnull,default:false" json:"is_staff"`
	IsSeller  bool      `bun:"is_seller,notnull,default:false" json:"is_seller"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Address struct {
	bun.BaseModel `bun:"table:addresses"`

	ID            string `bun:"id,pk" json:"id"`
	UserID        string `bun:"user_id,notnull" json:"user_id"`
	FullName      string `bun:"full_name,notnull" json:"full_name"`
	StreetAddress string `bun:"street_address,notnull" json:"street_address"`
	City          string `bun:"city,notnull" json:"city"`
	PostalCode    string `bun:"postal_code,notnull" json:"postal_code"`
	Country       string `bun:"country,notnull" json:"country"`
	PhoneNumber   string `bun:"phone_number,nullzero" json:"phone_number,omitempty"`
	IsDefault     bool   `bun:"is_default,notnull,default:false" json:"is_default"`
}
