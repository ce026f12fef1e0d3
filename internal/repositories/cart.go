package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"online-storefront/internal/models"
)

// CartRepository handles cart data operations
type CartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// GetOrCreateByUser returns the user's cart, creating an empty one if the
// user has none yet
func (r *CartRepository) GetOrCreateByUser(userID int) (*models.Cart, error) {
	now := time.Now()
	_, err := r.db.Exec(`
		INSERT INTO carts (user_id, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return r.GetByUser(userID)
}

// GetByUser retrieves a user's cart with its items
func (r *CartRepository) GetByUser(userID int) (*models.Cart, error) {
	cart := &models.Cart{}
	err := r.db.QueryRow(`
		SELECT id, user_id, applied_offer_id, subtotal_amount, discount_amount, total_amount,
			created_at, updated_at
		FROM carts WHERE user_id = $1`, userID,
	).Scan(
		&cart.ID, &cart.UserID, &cart.AppliedOfferID,
		&cart.SubtotalAmount, &cart.DiscountAmount, &cart.TotalAmount,
		&cart.CreatedAt, &cart.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	items, err := r.loadItems(cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

// UpsertItem inserts a cart line or, if the product is already in the cart,
// replaces its quantity with the given absolute value
func (r *CartRepository) UpsertItem(cartID int, item *models.CartItem) error {
	_, err := r.db.Exec(`
		INSERT INTO cart_items (cart_id, product_id, product_name, unit_price, image_url, category_id, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity`,
		cartID, item.ProductID, item.ProductName, item.UnitPrice,
		item.ImageURL, item.CategoryID, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

// RemoveItem drops a cart line
func (r *CartRepository) RemoveItem(cartID, productID int) error {
	result, err := r.db.Exec(
		"DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2",
		cartID, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return models.ErrProductNotFound
	}

	return nil
}

// ClearItems removes all lines from a cart
func (r *CartRepository) ClearItems(cartID int) error {
	if _, err := r.db.Exec("DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// SaveTotals persists the cart's applied offer and recomputed amounts
func (r *CartRepository) SaveTotals(cart *models.Cart) error {
	_, err := r.db.Exec(`
		UPDATE carts
		SET applied_offer_id = $2, subtotal_amount = $3, discount_amount = $4,
			total_amount = $5, updated_at = $6
		WHERE id = $1`,
		cart.ID, cart.AppliedOfferID, cart.SubtotalAmount,
		cart.DiscountAmount, cart.TotalAmount, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save cart totals: %w", err)
	}
	return nil
}

func (r *CartRepository) loadItems(cartID int) ([]models.CartItem, error) {
	rows, err := r.db.Query(`
		SELECT id, cart_id, product_id, product_name, unit_price, image_url, category_id, quantity
		FROM cart_items WHERE cart_id = $1 ORDER BY id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.ProductName,
			&item.UnitPrice, &item.ImageURL, &item.CategoryID, &item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
