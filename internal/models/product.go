package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog entry.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	ImageURL    string          `json:"image_url"`
	InStock     bool            `json:"in_stock" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName pins the table name used by the change feed.
func (Product) TableName() string {
	return "products"
}

// ProductPayload carries the mutable fields of a product for create and update.
type ProductPayload struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	InStock     bool
}

// Validate checks the invariants every stored product must satisfy.
func (p ProductPayload) Validate() error {
	switch {
	case p.Name == "":
		return &ValidationError{Fields: map[string]string{"name": "name is required"}}
	case p.Description == "":
		return &ValidationError{Fields: map[string]string{"description": "description is required"}}
	case p.Price.IsNegative():
		return &ValidationError{Fields: map[string]string{"price": "price must not be negative"}, Cause: ErrInvalidPrice}
	}
	return nil
}

// Apply copies the payload onto p, leaving identity and timestamps alone.
func (p *Product) Apply(payload ProductPayload) {
	p.Name = payload.Name
	p.Description = payload.Description
	p.Price = payload.Price
	p.ImageURL = payload.ImageURL
	p.InStock = payload.InStock
}
