package services

import (
	"context"

	"online-storefront/internal/models"
)

// CartServiceInterface defines the interface for cart pricing operations
type CartServiceInterface interface {
	GetCart(userID int) (*models.Cart, error)
	AddItem(userID, productID, quantity int) (*models.Cart, error)
	UpdateQuantity(userID, productID, quantity int) (*models.Cart, error)
	RemoveItem(userID, productID int) (*models.Cart, error)
	ApplyOffer(userID, offerID int) (*models.Cart, error)
	RemoveOffer(userID int) (*models.Cart, error)
	Clear(userID int) (*models.Cart, error)
	Checkout(userID int, fn func(cart *models.Cart) error) error
}

// OrderServiceInterface defines the interface for order lifecycle operations
type OrderServiceInterface interface {
	Place(userID int, req *PlaceOrderRequest) (*models.Order, error)
	GetOrderByID(orderID int, requester *models.User) (*models.Order, error)
	GetUserOrders(userID int, requester *models.User, limit, offset int) ([]*models.Order, int, error)
	MarkPaid(ctx context.Context, orderID int, gatewayPaymentID string) (*models.Order, error)
	MarkDelivered(orderID int, requester *models.User) (*models.Order, error)
	Cancel(orderID int, requester *models.User) error
	Reorder(orderID int, requester *models.User) (*models.Order, error)
}

// PlaceOrderRequest carries the checkout input for placing an order
type PlaceOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	BillingEmail    string `json:"billing_email"`
	BillingName     string `json:"billing_name"`
}

// EmailServiceInterface defines the interface for outbound notifications.
// Failures are logged by callers and never fail the triggering transition.
type EmailServiceInterface interface {
	SendOrderConfirmation(order *models.Order, invoicePDF []byte, invoiceRef string) error
	SendOrderStatusUpdate(order *models.Order, subject, body string) error
}

// InvoiceServiceInterface defines the interface for invoice rendering
type InvoiceServiceInterface interface {
	RenderInvoice(order *models.Order) ([]byte, string, error)
}

// EventPublisherInterface defines the interface for order status-change events
type EventPublisherInterface interface {
	PublishStatusChange(ctx context.Context, orderID int, orderNumber string, status models.OrderStatus) error
}
