package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderPaid      OrderStatus = "paid"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Order represents a placed checkout. Items are an immutable snapshot of the
// cart at checkout time; later cart mutation never alters a placed order.
// Orders are never deleted; cancellation is a status.
type Order struct {
	ID               int         `json:"id" db:"id"`
	UserID           int         `json:"user_id" db:"user_id"`
	OrderNumber      string      `json:"order_number" db:"order_number"`
	Items            []OrderItem `json:"items"`
	ShippingAddress  string      `json:"shipping_address" db:"shipping_address"`
	PaymentMethod    string      `json:"payment_method" db:"payment_method"`
	TotalAmount      int         `json:"total_amount" db:"total_amount"` // In cents
	Status           OrderStatus `json:"status" db:"status"`
	IsPaid           bool        `json:"is_paid" db:"is_paid"`
	PaidAt           *time.Time  `json:"paid_at,omitempty" db:"paid_at"`
	IsDelivered      bool        `json:"is_delivered" db:"is_delivered"`
	DeliveredAt      *time.Time  `json:"delivered_at,omitempty" db:"delivered_at"`
	GatewayPaymentID string      `json:"gateway_payment_id" db:"gateway_payment_id"` // Dedup key for at-least-once webhook delivery
	BillingEmail     string      `json:"billing_email" db:"billing_email"`
	BillingName      string      `json:"billing_name" db:"billing_name"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderItem represents a purchased line, copied by value from the cart
type OrderItem struct {
	ID          int    `json:"id" db:"id"`
	OrderID     int    `json:"order_id" db:"order_id"`
	ProductID   int    `json:"product_id" db:"product_id"`
	ProductName string `json:"product_name" db:"product_name"`
	UnitPrice   int    `json:"unit_price" db:"unit_price"` // In cents
	Quantity    int    `json:"quantity" db:"quantity"`
}

// LineTotal returns the line's contribution to the order total
func (i *OrderItem) LineTotal() int {
	return i.UnitPrice * i.Quantity
}

var (
	// Order number format: ORD-YYYYMMDD-XXXXXX (e.g., ORD-20240101-123456)
	orderNumberRegex = regexp.MustCompile(`^ORD-\d{8}-\d{6}$`)
	orderEmailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Validate validates the order data
func (o *Order) Validate() error {
	if o.OrderNumber == "" {
		return errors.New("order number is required")
	}

	if !orderNumberRegex.MatchString(o.OrderNumber) {
		return errors.New("order number format is invalid")
	}

	if len(o.Items) == 0 {
		return errors.New("order must contain at least one item")
	}

	if err := validateOrderTotalAmount(o.TotalAmount); err != nil {
		return err
	}

	if err := validateOrderStatus(o.Status); err != nil {
		return err
	}

	if strings.TrimSpace(o.ShippingAddress) == "" {
		return errors.New("shipping address is required")
	}

	if o.PaymentMethod == "" {
		return errors.New("payment method is required")
	}

	return validateOrderBillingInfo(o.BillingEmail, o.BillingName)
}

// validateOrderTotalAmount validates an order total amount
func validateOrderTotalAmount(totalAmount int) error {
	if totalAmount < 0 {
		return errors.New("total amount cannot be negative")
	}

	// Maximum order amount of $100,000 (10,000,000 cents)
	if totalAmount > 10000000 {
		return errors.New("total amount cannot exceed $100,000")
	}

	return nil
}

// validateOrderStatus validates an order status
func validateOrderStatus(status OrderStatus) error {
	switch status {
	case OrderCreated, OrderPaid, OrderDelivered, OrderCancelled:
		return nil
	default:
		return errors.New("invalid order status")
	}
}

// validateOrderBillingInfo validates order billing information
func validateOrderBillingInfo(billingEmail, billingName string) error {
	if billingEmail == "" {
		return errors.New("billing email is required")
	}

	if billingName == "" {
		return errors.New("billing name is required")
	}

	if len(billingEmail) > 255 {
		return errors.New("billing email must be less than 255 characters")
	}

	if len(billingName) > 255 {
		return errors.New("billing name must be less than 255 characters")
	}

	if !orderEmailRegex.MatchString(billingEmail) {
		return errors.New("billing email format is invalid")
	}

	if strings.TrimSpace(billingName) == "" {
		return errors.New("billing name cannot be only whitespace")
	}

	return nil
}

// GenerateOrderNumber generates a unique order number
func GenerateOrderNumber() string {
	now := time.Now()
	dateStr := now.Format("20060102")

	// Generate a 6-digit random number using crypto/rand for better uniqueness
	max := big.NewInt(1000000)
	randomNum, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fallback to timestamp-based generation if crypto/rand fails
		timestamp := now.UnixNano()
		randomPart := timestamp % 1000000
		return fmt.Sprintf("ORD-%s-%06d", dateStr, randomPart)
	}

	return fmt.Sprintf("ORD-%s-%06d", dateStr, randomNum.Int64())
}

// IsCancelled returns true if the order is cancelled
func (o *Order) IsCancelled() bool {
	return o.Status == OrderCancelled
}

// CanBeCancelled returns true if the order can still be cancelled. Paid and
// delivered orders can only be undone through a refund flow, never cancelled.
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderCreated && !o.IsPaid
}

// TotalAmountInCurrency returns the total amount in the main currency unit
func (o *Order) TotalAmountInCurrency() float64 {
	return float64(o.TotalAmount) / 100.0
}

// GetStatusDisplayName returns a human-readable status name
func (o *Order) GetStatusDisplayName() string {
	switch o.Status {
	case OrderCreated:
		return "Awaiting Payment"
	case OrderPaid:
		return "Paid"
	case OrderDelivered:
		return "Delivered"
	case OrderCancelled:
		return "Cancelled"
	default:
		return string(o.Status)
	}
}
