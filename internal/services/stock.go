package services

import (
	"fmt"

	"online-storefront/internal/models"
)

// ProductStockRepository is the inventory lookup and reservation interface
// consumed by the stock guard
type ProductStockRepository interface {
	GetAvailableStock(productID int) (int, error)
	ReserveStock(productID, quantity int) error
	ReleaseStock(productID, quantity int) error
}

// StockGuard validates requested quantities against available inventory
// before cart or order state is mutated
type StockGuard struct {
	products ProductStockRepository
}

// NewStockGuard creates a new stock guard
func NewStockGuard(products ProductStockRepository) *StockGuard {
	return &StockGuard{products: products}
}

// Authorize checks that the requested absolute quantity is available. This is
// a read-only check used for cart mutations; the durable reservation at
// checkout goes through Reserve.
func (g *StockGuard) Authorize(productID, quantity int) error {
	if quantity < 1 {
		return &models.ValidationError{Message: "quantity must be at least 1"}
	}

	available, err := g.products.GetAvailableStock(productID)
	if err != nil {
		return err
	}

	if quantity > available {
		return &models.ConflictError{
			Message: fmt.Sprintf("out of stock: %d requested, %d available", quantity, available),
		}
	}

	return nil
}

// Reserve atomically takes quantity units of stock. The underlying
// conditional update rejects the reservation when concurrent orders have
// drained the stock since the last Authorize.
func (g *StockGuard) Reserve(productID, quantity int) error {
	if quantity < 1 {
		return &models.ValidationError{Message: "quantity must be at least 1"}
	}
	return g.products.ReserveStock(productID, quantity)
}

// Release returns previously reserved units
func (g *StockGuard) Release(productID, quantity int) error {
	return g.products.ReleaseStock(productID, quantity)
}
