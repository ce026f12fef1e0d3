package models

import (
	"errors"
	"time"
)

// Product represents a catalog product. Catalog management lives outside this
// module; products are read here for cart snapshots and stock checks.
type Product struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Price      int       `json:"price" db:"price"` // Unit price in cents
	ImageURL   string    `json:"image_url" db:"image_url"`
	CategoryID int       `json:"category_id" db:"category_id"`
	Stock      int       `json:"stock" db:"stock"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Validate validates the product data
func (p *Product) Validate() error {
	if p.Name == "" {
		return errors.New("product name is required")
	}

	if p.Price < 0 {
		return errors.New("product price cannot be negative")
	}

	if p.Stock < 0 {
		return errors.New("product stock cannot be negative")
	}

	return nil
}

// HasStockFor returns true if the product has at least quantity units left
func (p *Product) HasStockFor(quantity int) bool {
	return quantity > 0 && p.Stock >= quantity
}
