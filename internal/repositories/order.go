package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"online-storefront/internal/models"
)

// OrderRepository handles order data operations
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, order_number, shipping_address, payment_method, total_amount,
	status, is_paid, paid_at, is_delivered, delivered_at, gateway_payment_id,
	billing_email, billing_name, created_at, updated_at`

// Create inserts an order and its items in one transaction
func (r *OrderRepository) Create(order *models.Order) (*models.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, &models.ValidationError{Message: err.Error()}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Ensure order number is unique (retry if collision)
	orderNumber := order.OrderNumber
	for i := 0; i < 5; i++ {
		var exists bool
		err = tx.QueryRow("SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)", orderNumber).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check order number uniqueness: %w", err)
		}
		if !exists {
			break
		}
		orderNumber = models.GenerateOrderNumber()
	}

	now := time.Now()
	created := &models.Order{}
	err = tx.QueryRow(`
		INSERT INTO orders (user_id, order_number, shipping_address, payment_method, total_amount,
			status, is_paid, is_delivered, gateway_payment_id, billing_email, billing_name,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, FALSE, '', $7, $8, $9, $9)
		RETURNING `+orderColumns,
		order.UserID, orderNumber, order.ShippingAddress, order.PaymentMethod,
		order.TotalAmount, order.Status, order.BillingEmail, order.BillingName, now,
	).Scan(scanOrderDest(created)...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		var itemID int
		err = tx.QueryRow(`
			INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			created.ID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity,
		).Scan(&itemID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}

		item.ID = itemID
		item.OrderID = created.ID
		created.Items = append(created.Items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	return created, nil
}

// GetByID retrieves an order with its items
func (r *OrderRepository) GetByID(id int) (*models.Order, error) {
	return r.getByID(context.Background(), id)
}

func (r *OrderRepository) getByID(ctx context.Context, id int) (*models.Order, error) {
	order := &models.Order{}
	err := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id).
		Scan(scanOrderDest(order)...)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// GetByUser retrieves a user's orders, newest first, with a total count
func (r *OrderRepository) GetByUser(userID, limit, offset int) ([]*models.Order, int, error) {
	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM orders WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := r.db.Query(
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(scanOrderDest(order)...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, order := range orders {
		items, err := r.loadItems(context.Background(), order.ID)
		if err != nil {
			return nil, 0, err
		}
		order.Items = items
	}

	return orders, total, nil
}

// MarkPaid transitions an order awaiting payment to paid. Returns false when
// the order did not transition: it was already paid (duplicate webhook
// deliveries land here and must not trigger side effects a second time) or it
// has left the awaiting-payment state. Cancelled is terminal; a late payment
// confirmation never resurrects a cancelled order.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID int, gatewayPaymentID string, paidAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET is_paid = TRUE, paid_at = $2, gateway_payment_id = $3, status = $4, updated_at = $2
		WHERE id = $1 AND is_paid = FALSE AND status = $5`,
		orderID, paidAt, gatewayPaymentID, models.OrderPaid, models.OrderCreated,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		if _, err := r.getByID(ctx, orderID); err != nil {
			return false, err
		}
		return false, nil // already paid, or no longer awaiting payment
	}

	return true, nil
}

// MarkDelivered sets the fulfillment flags and status
func (r *OrderRepository) MarkDelivered(orderID int, deliveredAt time.Time) error {
	result, err := r.db.Exec(`
		UPDATE orders
		SET is_delivered = TRUE, delivered_at = $2, status = $3, updated_at = $2
		WHERE id = $1`,
		orderID, deliveredAt, models.OrderDelivered,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order delivered: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return models.ErrOrderNotFound
	}

	return nil
}

// UpdateStatus updates the order status
func (r *OrderRepository) UpdateStatus(orderID int, status models.OrderStatus) error {
	result, err := r.db.Exec(
		"UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1",
		orderID, status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return models.ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID int) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID,
			&item.ProductName, &item.UnitPrice, &item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func scanOrderDest(order *models.Order) []interface{} {
	return []interface{}{
		&order.ID, &order.UserID, &order.OrderNumber, &order.ShippingAddress,
		&order.PaymentMethod, &order.TotalAmount, &order.Status,
		&order.IsPaid, &order.PaidAt, &order.IsDelivered, &order.DeliveredAt,
		&order.GatewayPaymentID, &order.BillingEmail, &order.BillingName,
		&order.CreatedAt, &order.UpdatedAt,
	}
}
