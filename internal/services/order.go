package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"online-storefront/internal/models"
)

// OrderRepository interface for order data operations
type OrderRepository interface {
	Create(order *models.Order) (*models.Order, error)
	GetByID(id int) (*models.Order, error)
	GetByUser(userID, limit, offset int) ([]*models.Order, int, error)
	MarkPaid(ctx context.Context, orderID int, gatewayPaymentID string, paidAt time.Time) (bool, error)
	MarkDelivered(orderID int, deliveredAt time.Time) error
	UpdateStatus(orderID int, status models.OrderStatus) error
}

// OrderOfferRepository interface for consuming offer usage at checkout
type OrderOfferRepository interface {
	IncrementUsage(id int) error
}

// OrderService drives the order lifecycle: Created -> Paid -> Delivered, with
// Cancelled reachable only from Created. Transitions emit side effects
// (emails, invoices, status events) as fire-and-forget commands; their
// failure is logged and never rolls back a transition.
type OrderService struct {
	orderRepo  OrderRepository
	offerRepo  OrderOfferRepository
	carts      CartServiceInterface
	stockGuard *StockGuard
	email      EmailServiceInterface
	invoices   InvoiceServiceInterface
	events     EventPublisherInterface
	logger     zerolog.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orderRepo OrderRepository,
	offerRepo OrderOfferRepository,
	carts CartServiceInterface,
	stockGuard *StockGuard,
	email EmailServiceInterface,
	invoices InvoiceServiceInterface,
	events EventPublisherInterface,
	logger zerolog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		offerRepo:  offerRepo,
		carts:      carts,
		stockGuard: stockGuard,
		email:      email,
		invoices:   invoices,
		events:     events,
		logger:     logger,
	}
}

// Place converts the user's cart into a new order in the Created state. The
// whole flow runs inside the cart's checkout critical section, so a cart
// mutation that arrives mid-checkout waits and survives into the emptied
// cart rather than being wiped. Cart items are copied by value so later cart
// mutation never alters the order. Stock is reserved per line through the
// optimistic conditional update; any failure releases what was already taken
// and aborts with no order created and the cart intact.
func (s *OrderService) Place(userID int, req *PlaceOrderRequest) (*models.Order, error) {
	if req == nil {
		return nil, &models.ValidationError{Message: "order request is required"}
	}

	var created *models.Order
	err := s.carts.Checkout(userID, func(cart *models.Cart) error {
		if cart.IsEmpty() {
			return &models.ValidationError{Message: "cart is empty"}
		}

		reserved, err := s.reserveLines(cartLines(cart))
		if err != nil {
			return err
		}

		if cart.AppliedOfferID != nil {
			if err := s.offerRepo.IncrementUsage(*cart.AppliedOfferID); err != nil {
				s.releaseLines(reserved)
				return err
			}
		}

		items := make([]models.OrderItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			items = append(items, models.OrderItem{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				UnitPrice:   line.UnitPrice,
				Quantity:    line.Quantity,
			})
		}

		order := &models.Order{
			UserID:          userID,
			OrderNumber:     models.GenerateOrderNumber(),
			Items:           items,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			TotalAmount:     cart.TotalAmount,
			Status:          models.OrderCreated,
			BillingEmail:    req.BillingEmail,
			BillingName:     req.BillingName,
		}

		created, err = s.orderRepo.Create(order)
		if err != nil {
			s.releaseLines(reserved)
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatus(created)
	s.dispatch("order placed notification", created.ID, func() error {
		return s.email.SendOrderStatusUpdate(created,
			fmt.Sprintf("Order %s received", created.OrderNumber),
			"We have received your order and are awaiting payment confirmation.")
	})

	return created, nil
}

// GetOrderByID retrieves an order; only the owner or an admin may see it
func (s *OrderService) GetOrderByID(orderID int, requester *models.User) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}

	if requester == nil || (order.UserID != requester.ID && !requester.IsAdmin()) {
		return nil, &models.AuthorizationError{}
	}

	return order, nil
}

// GetUserOrders retrieves a user's orders with pagination
func (s *OrderService) GetUserOrders(userID int, requester *models.User, limit, offset int) ([]*models.Order, int, error) {
	if requester == nil || (userID != requester.ID && !requester.IsAdmin()) {
		return nil, 0, &models.AuthorizationError{}
	}

	return s.orderRepo.GetByUser(userID, limit, offset)
}

// MarkPaid records payment confirmation. It is idempotent: a duplicate
// confirmation for an already-paid order is a no-op and emits no second
// invoice or email. The payment gateway delivers notifications at least once,
// so this is the normal path, not an error. A confirmation for a cancelled
// order is likewise ignored: Cancelled is terminal, the stock released at
// cancellation is gone, and the order must not come back as paid. In both
// cases the untouched order is returned so the webhook can still be
// acknowledged.
func (s *OrderService) MarkPaid(ctx context.Context, orderID int, gatewayPaymentID string) (*models.Order, error) {
	transitioned, err := s.orderRepo.MarkPaid(ctx, orderID, gatewayPaymentID, time.Now())
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}

	if !transitioned {
		if order.Status == models.OrderCancelled {
			s.logger.Warn().Int("order_id", orderID).Str("gateway_payment_id", gatewayPaymentID).
				Msg("payment confirmation for cancelled order ignored")
		} else {
			s.logger.Info().Int("order_id", orderID).Str("gateway_payment_id", gatewayPaymentID).
				Msg("duplicate payment confirmation ignored")
		}
		return order, nil
	}

	s.publishStatus(order)
	s.dispatch("invoice delivery", order.ID, func() error {
		pdf, ref, err := s.invoices.RenderInvoice(order)
		if err != nil {
			return err
		}
		return s.email.SendOrderConfirmation(order, pdf, ref)
	})

	return order, nil
}

// MarkDelivered records fulfillment. Admin only. Delivery is deliberately not
// gated on payment; an admin may mark an unpaid order delivered.
func (s *OrderService) MarkDelivered(orderID int, requester *models.User) (*models.Order, error) {
	if requester == nil || !requester.IsAdmin() {
		return nil, &models.AuthorizationError{}
	}

	if err := s.orderRepo.MarkDelivered(orderID, time.Now()); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}

	s.publishStatus(order)
	s.dispatch("delivery notification", order.ID, func() error {
		return s.email.SendOrderStatusUpdate(order,
			fmt.Sprintf("Order %s delivered", order.OrderNumber),
			"Your order has been delivered.")
	})

	return order, nil
}

// Cancel cancels an unpaid order. The owner may always cancel; admins may
// deliberately also cancel orders they do not own, for support flows. A paid
// order can never be cancelled, whatever the requester's role; refunds are a
// separate flow. Reserved stock is returned.
func (s *OrderService) Cancel(orderID int, requester *models.User) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}

	if requester == nil || (order.UserID != requester.ID && !requester.IsAdmin()) {
		return &models.AuthorizationError{}
	}

	if order.IsPaid {
		return &models.ConflictError{Message: "a paid order cannot be cancelled"}
	}
	if !order.CanBeCancelled() {
		return &models.ConflictError{Message: fmt.Sprintf("order cannot be cancelled in status %q", order.Status)}
	}

	if err := s.orderRepo.UpdateStatus(orderID, models.OrderCancelled); err != nil {
		return err
	}

	for _, item := range order.Items {
		if err := s.stockGuard.Release(item.ProductID, item.Quantity); err != nil {
			s.logger.Error().Err(err).Int("order_id", orderID).Int("product_id", item.ProductID).
				Msg("failed to release stock for cancelled order")
		}
	}

	order.Status = models.OrderCancelled
	s.publishStatus(order)
	s.dispatch("cancellation notification", order.ID, func() error {
		return s.email.SendOrderStatusUpdate(order,
			fmt.Sprintf("Order %s cancelled", order.OrderNumber),
			"Your order has been cancelled.")
	})

	return nil
}

// Reorder creates a brand-new order in the Created state duplicating the
// source order's items, shipping address and payment method. Payment and
// fulfillment flags are never copied; the source order's status does not
// matter. Only the owning requester may reorder.
func (s *OrderService) Reorder(orderID int, requester *models.User) (*models.Order, error) {
	source, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}

	if requester == nil || source.UserID != requester.ID {
		return nil, &models.AuthorizationError{}
	}

	items := make([]models.OrderItem, 0, len(source.Items))
	total := 0
	for _, item := range source.Items {
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
		total += item.LineTotal()
	}

	reserved, err := s.reserveLines(items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          source.UserID,
		OrderNumber:     models.GenerateOrderNumber(),
		Items:           items,
		ShippingAddress: source.ShippingAddress,
		PaymentMethod:   source.PaymentMethod,
		TotalAmount:     total,
		Status:          models.OrderCreated,
		BillingEmail:    source.BillingEmail,
		BillingName:     source.BillingName,
	}

	created, err := s.orderRepo.Create(order)
	if err != nil {
		s.releaseLines(reserved)
		return nil, err
	}

	s.publishStatus(created)
	return created, nil
}

type stockLine struct {
	productID int
	quantity  int
}

func cartLines(cart *models.Cart) []models.OrderItem {
	lines := make([]models.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, models.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// reserveLines reserves stock for every line, releasing everything already
// taken if any line fails
func (s *OrderService) reserveLines(items []models.OrderItem) ([]stockLine, error) {
	var reserved []stockLine
	for _, item := range items {
		if err := s.stockGuard.Reserve(item.ProductID, item.Quantity); err != nil {
			s.releaseLines(reserved)
			return nil, err
		}
		reserved = append(reserved, stockLine{productID: item.ProductID, quantity: item.Quantity})
	}
	return reserved, nil
}

func (s *OrderService) releaseLines(reserved []stockLine) {
	for _, line := range reserved {
		if err := s.stockGuard.Release(line.productID, line.quantity); err != nil {
			s.logger.Error().Err(err).Int("product_id", line.productID).Msg("failed to release reserved stock")
		}
	}
}

// dispatch runs a side-effect command without blocking the transition.
// Failures are logged, never propagated.
func (s *OrderService) dispatch(what string, orderID int, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			s.logger.Error().Err(err).Int("order_id", orderID).Str("command", what).
				Msg("side-effect command failed")
		}
	}()
}

func (s *OrderService) publishStatus(order *models.Order) {
	if s.events == nil {
		return
	}

	orderID, orderNumber, status := order.ID, order.OrderNumber, order.Status
	s.dispatch("status event", orderID, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.events.PublishStatusChange(ctx, orderID, orderNumber, status)
	})
}
