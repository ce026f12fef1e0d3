package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"online-storefront/internal/models"
)

// ProductRepository handles product reads and stock mutations. Catalog
// management (create/update/media) is out of scope here.
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID retrieves a product by ID
func (r *ProductRepository) GetByID(id int) (*models.Product, error) {
	product := &models.Product{}
	err := r.db.QueryRow(`
		SELECT id, name, price, image_url, category_id, stock, created_at, updated_at
		FROM products WHERE id = $1`, id,
	).Scan(
		&product.ID, &product.Name, &product.Price, &product.ImageURL,
		&product.CategoryID, &product.Stock, &product.CreatedAt, &product.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

// GetAvailableStock returns the current stock for a product
func (r *ProductRepository) GetAvailableStock(productID int) (int, error) {
	var stock int
	err := r.db.QueryRow("SELECT stock FROM products WHERE id = $1", productID).Scan(&stock)
	if err == sql.ErrNoRows {
		return 0, models.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get product stock: %w", err)
	}

	return stock, nil
}

// ReserveStock atomically decrements stock if enough is available. The
// conditional update closes the check-then-act window between a stock read
// and the decrement; two concurrent checkouts cannot both take the last unit.
func (r *ProductRepository) ReserveStock(productID, quantity int) error {
	result, err := r.db.Exec(`
		UPDATE products
		SET stock = stock - $2, updated_at = $3
		WHERE id = $1 AND stock >= $2`,
		productID, quantity, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetAvailableStock(productID); err != nil {
			return err
		}
		return &models.ConflictError{Message: "insufficient stock"}
	}

	return nil
}

// ReleaseStock returns previously reserved units, used when order placement
// fails partway through
func (r *ProductRepository) ReleaseStock(productID, quantity int) error {
	_, err := r.db.Exec(`
		UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1`,
		productID, quantity, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	return nil
}
