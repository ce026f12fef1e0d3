package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"online-storefront/internal/models"
)

// mockOrderRepo is an in-memory OrderRepository
type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[int]*models.Order
	nextID int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[int]*models.Order), nextID: 1}
}

func (r *mockOrderRepo) Create(order *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *order
	clone.ID = r.nextID
	r.nextID++
	clone.Items = append([]models.OrderItem(nil), order.Items...)
	for idx := range clone.Items {
		clone.Items[idx].OrderID = clone.ID
	}
	clone.CreatedAt = time.Now()
	r.orders[clone.ID] = &clone
	result := clone
	return &result, nil
}

func (r *mockOrderRepo) GetByID(id int) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	clone := *order
	clone.Items = append([]models.OrderItem(nil), order.Items...)
	return &clone, nil
}

func (r *mockOrderRepo) GetByUser(userID, limit, offset int) ([]*models.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var owned []*models.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			clone := *order
			owned = append(owned, &clone)
		}
	}
	total := len(owned)
	if offset > len(owned) {
		offset = len(owned)
	}
	owned = owned[offset:]
	if limit > 0 && limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, total, nil
}

func (r *mockOrderRepo) MarkPaid(ctx context.Context, orderID int, gatewayPaymentID string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return false, models.ErrOrderNotFound
	}
	if order.IsPaid || order.Status != models.OrderCreated {
		return false, nil
	}
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.Status = models.OrderPaid
	order.GatewayPaymentID = gatewayPaymentID
	return true, nil
}

func (r *mockOrderRepo) MarkDelivered(orderID int, deliveredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	order.IsDelivered = true
	order.DeliveredAt = &deliveredAt
	order.Status = models.OrderDelivered
	return nil
}

func (r *mockOrderRepo) UpdateStatus(orderID int, status models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

// mockUsageRepo counts offer usage increments and can simulate exhaustion
type mockUsageRepo struct {
	mu         sync.Mutex
	increments map[int]int
	failWith   error
}

func newMockUsageRepo() *mockUsageRepo {
	return &mockUsageRepo{increments: make(map[int]int)}
}

func (r *mockUsageRepo) IncrementUsage(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.increments[id]++
	return nil
}

func (r *mockUsageRepo) count(id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.increments[id]
}

// mockEmailService counts sends so idempotency can be asserted
type mockEmailService struct {
	mu            sync.Mutex
	confirmations int
	statusUpdates int
	lastInvoice   []byte
	lastRef       string
}

func (m *mockEmailService) SendOrderConfirmation(order *models.Order, invoicePDF []byte, invoiceRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations++
	m.lastInvoice = invoicePDF
	m.lastRef = invoiceRef
	return nil
}

func (m *mockEmailService) SendOrderStatusUpdate(order *models.Order, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusUpdates++
	return nil
}

func (m *mockEmailService) confirmationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmations
}

type mockInvoiceService struct {
	mu      sync.Mutex
	renders int
}

func (m *mockInvoiceService) RenderInvoice(order *models.Order) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders++
	return []byte("%PDF-1.4 test"), "INV-test", nil
}

func (m *mockInvoiceService) renderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders
}

type mockEventPublisher struct {
	mu     sync.Mutex
	events []models.OrderStatus
}

func (m *mockEventPublisher) PublishStatusChange(ctx context.Context, orderID int, orderNumber string, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, status)
	return nil
}

func (m *mockEventPublisher) published() []models.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderStatus(nil), m.events...)
}

type orderTestDeps struct {
	orders   *mockOrderRepo
	usage    *mockUsageRepo
	carts    *CartService
	cartRepo *mockCartRepo
	products *mockProductRepo
	email    *mockEmailService
	invoices *mockInvoiceService
	events   *mockEventPublisher
}

func newTestOrderService(products *mockProductRepo, offers *mockOfferRepo) (*OrderService, *orderTestDeps) {
	deps := &orderTestDeps{
		orders:   newMockOrderRepo(),
		usage:    newMockUsageRepo(),
		products: products,
		email:    &mockEmailService{},
		invoices: &mockInvoiceService{},
		events:   &mockEventPublisher{},
	}
	deps.carts, deps.cartRepo = newTestCartService(products, offers)

	svc := NewOrderService(
		deps.orders,
		deps.usage,
		deps.carts,
		NewStockGuard(products),
		deps.email,
		deps.invoices,
		deps.events,
		zerolog.Nop(),
	)
	return svc, deps
}

func placeRequest() *PlaceOrderRequest {
	return &PlaceOrderRequest{
		ShippingAddress: "1 Test Street, Cape Town",
		PaymentMethod:   "payfast",
		BillingEmail:    "ada@example.com",
		BillingName:     "Ada Lovelace",
	}
}

func owner() *models.User {
	return &models.User{ID: 7, Email: "ada@example.com", Role: models.RoleUser}
}

func admin() *models.User {
	return &models.User{ID: 1, Email: "admin@example.com", Role: models.RoleAdmin}
}

func stranger() *models.User {
	return &models.User{ID: 99, Email: "eve@example.com", Role: models.RoleUser}
}

func TestOrderService_Place(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	svc, deps := newTestOrderService(products, newMockOfferRepo())

	_, err := deps.carts.AddItem(7, 1, 3)
	require.NoError(t, err)

	order, err := svc.Place(7, placeRequest())
	require.NoError(t, err)

	assert.Equal(t, models.OrderCreated, order.Status)
	assert.False(t, order.IsPaid)
	assert.Regexp(t, `^ORD-\d{8}-\d{6}$`, order.OrderNumber)
	assert.Equal(t, 15000, order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)

	// Stock was reserved at checkout
	remaining, err := products.GetAvailableStock(1)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)

	// The cart was emptied and its offer cleared
	cart, err := deps.carts.GetCart(7)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Nil(t, cart.AppliedOfferID)
}

func TestOrderService_Place_EmptyCart(t *testing.T) {
	products := newMockProductRepo()
	svc, _ := newTestOrderService(products, newMockOfferRepo())

	_, err := svc.Place(7, placeRequest())
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestOrderService_Place_InsufficientStockReleasesReservations(t *testing.T) {
	products := newMockProductRepo(
		&models.Product{ID: 1, Name: "Mug", Price: 1000, Stock: 10},
		&models.Product{ID: 2, Name: "Poster", Price: 2000, Stock: 5},
	)
	svc, deps := newTestOrderService(products, newMockOfferRepo())

	_, err := deps.carts.AddItem(7, 1, 4)
	require.NoError(t, err)
	_, err = deps.carts.AddItem(7, 2, 5)
	require.NoError(t, err)

	// Another checkout drains product 2 between cart add and order placement
	require.NoError(t, products.ReserveStock(2, 3))

	_, err = svc.Place(7, placeRequest())
	require.Error(t, err)
	assert.True(t, models.IsConflict(err))

	// The reservation for product 1 was rolled back
	remaining, err := products.GetAvailableStock(1)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)

	// And the cart survives for another attempt
	cart, err := deps.carts.GetCart(7)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestOrderService_Place_ConsumesOfferUsage(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	offer := activeOffer(20)
	offer.ID = 11
	svc, deps := newTestOrderService(products, newMockOfferRepo(offer))

	_, err := deps.carts.AddItem(7, 1, 2)
	require.NoError(t, err)
	_, err = deps.carts.ApplyOffer(7, 11)
	require.NoError(t, err)

	order, err := svc.Place(7, placeRequest())
	require.NoError(t, err)

	// Discounted total carries over, usage consumed exactly once
	assert.Equal(t, 8000, order.TotalAmount)
	assert.Equal(t, 1, deps.usage.count(11))
}

func TestOrderService_Place_OfferExhaustedRollsBackStock(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	offer := activeOffer(20)
	offer.ID = 11
	svc, deps := newTestOrderService(products, newMockOfferRepo(offer))

	_, err := deps.carts.AddItem(7, 1, 2)
	require.NoError(t, err)
	_, err = deps.carts.ApplyOffer(7, 11)
	require.NoError(t, err)

	deps.usage.failWith = &models.ConflictError{Message: "offer usage limit reached"}

	_, err = svc.Place(7, placeRequest())
	require.Error(t, err)
	assert.True(t, models.IsConflict(err))

	remaining, err := products.GetAvailableStock(1)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
}

// gatedOrderRepo pauses inside Create so a competing cart mutation can be
// scheduled while a checkout is in flight
type gatedOrderRepo struct {
	*mockOrderRepo
	entered chan struct{}
	release chan struct{}
}

func (r *gatedOrderRepo) Create(order *models.Order) (*models.Order, error) {
	close(r.entered)
	<-r.release
	return r.mockOrderRepo.Create(order)
}

func TestOrderService_Place_ConcurrentAddSurvivesCheckout(t *testing.T) {
	products := newMockProductRepo(
		&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10},
		&models.Product{ID: 2, Name: "Poster", Price: 2000, Stock: 5},
	)
	carts, _ := newTestCartService(products, newMockOfferRepo())
	gated := &gatedOrderRepo{
		mockOrderRepo: newMockOrderRepo(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	svc := NewOrderService(gated, newMockUsageRepo(), carts, NewStockGuard(products),
		&mockEmailService{}, &mockInvoiceService{}, &mockEventPublisher{}, zerolog.Nop())

	_, err := carts.AddItem(7, 1, 1)
	require.NoError(t, err)

	placeDone := make(chan struct{})
	var placed *models.Order
	var placeErr error
	go func() {
		defer close(placeDone)
		placed, placeErr = svc.Place(7, placeRequest())
	}()

	<-gated.entered

	// This add lands mid-checkout; it must wait for the cart lock instead of
	// slipping between the snapshot and the clear
	addDone := make(chan error, 1)
	go func() {
		_, err := carts.AddItem(7, 2, 1)
		addDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	close(gated.release)

	<-placeDone
	require.NoError(t, placeErr)
	require.NoError(t, <-addDone)

	// The placed order holds exactly the pre-checkout snapshot
	require.Len(t, placed.Items, 1)
	assert.Equal(t, 1, placed.Items[0].ProductID)

	// The concurrent add survived into the emptied cart; nothing was lost
	cart, err := carts.GetCart(7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].ProductID)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestOrderService_MarkPaid_Idempotent(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	svc, deps := newTestOrderService(products, newMockOfferRepo())

	_, err := deps.carts.AddItem(7, 1, 1)
	require.NoError(t, err)
	placed, err := svc.Place(7, placeRequest())
	require.NoError(t, err)

	paid, err := svc.MarkPaid(context.Background(), placed.ID, "pf-12345")
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, models.OrderPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, "pf-12345", paid.GatewayPaymentID)

	firstPaidAt := *paid.PaidAt

	// At-least-once delivery: the same confirmation arrives again
	again, err := svc.MarkPaid(context.Background(), placed.ID, "pf-12345")
	require.NoError(t, err)
	assert.True(t, again.IsPaid)
	assert.Equal(t, firstPaidAt, *again.PaidAt)

	// Exactly one invoice was rendered and emailed despite two confirmations
	assert.Eventually(t, func() bool {
		return deps.invoices.renderCount() == 1 && deps.email.confirmationCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give any stray duplicate dispatch a moment to surface
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, deps.invoices.renderCount())
	assert.Equal(t, 1, deps.email.confirmationCount())
}

func TestOrderService_MarkPaid_UnknownOrder(t *testing.T) {
	products := newMockProductRepo()
	svc, _ := newTestOrderService(products, newMockOfferRepo())

	_, err := svc.MarkPaid(context.Background(), 404, "pf-1")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestOrderService_MarkPaid_CancelledOrderStaysCancelled(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	svc, deps := newTestOrderService(products, newMockOfferRepo())

	_, err := deps.carts.AddItem(7, 1, 2)
	require.NoError(t, err)
	placed, err := svc.Place(7, placeRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(placed.ID, owner()))

	// A late gateway confirmation arrives after the order was cancelled
	order, err := svc.MarkPaid(context.Background(), placed.ID, "pf-late-1")
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.False(t, order.IsPaid)
	assert.Nil(t, order.PaidAt)
	assert.Empty(t, order.GatewayPaymentID)

	// The stock released at cancellation stays released
	remaining, err := products.GetAvailableStock(1)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)

	// No invoice or confirmation email for the ignored notification
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, deps.invoices.renderCount())
	assert.Equal(t, 0, deps.email.confirmationCount())
}

func TestOrderService_MarkDelivered(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	svc, deps := newTestOrderService(products, newMockOfferRepo())

	_, err := deps.carts.AddItem(7, 1, 1)
	require.NoError(t, err)
	placed, err := svc.Place(7, placeRequest())
	require.NoError(t, err)

	t.Run("owner cannot mark delivered", func(t *testing.T) {
		_, err := svc.MarkDelivered(placed.ID, owner())
		require.Error(t, err)
		assert.True(t, models.IsAuthorization(err))
	})

	t.Run("admin may deliver an unpaid order", func(t *testing.T) {
		order, err := svc.MarkDelivered(placed.ID, admin())
		require.NoError(t, err)
		assert.True(t, order.IsDelivered)
		assert.Equal(t, models.OrderDelivered, order.Status)
		assert.False(t, order.IsPaid)
	})
}

func TestOrderService_Cancel(t *testing.T) {
	newPlacedOrder := func(t *testing.T) (*OrderService, *orderTestDeps, *models.Order, *mockProductRepo) {
		t.Helper()
		products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
		svc, deps := newTestOrderService(products, newMockOfferRepo())
		_, err := deps.carts.AddItem(7, 1, 2)
		require.NoError(t, err)
		placed, err := svc.Place(7, placeRequest())
		require.NoError(t, err)
		return svc, deps, placed, products
	}

	t.Run("owner cancels unpaid order and stock returns", func(t *testing.T) {
		svc, deps, placed, products := newPlacedOrder(t)

		require.NoError(t, svc.Cancel(placed.ID, owner()))

		order, err := deps.orders.GetByID(placed.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderCancelled, order.Status)

		remaining, err := products.GetAvailableStock(1)
		require.NoError(t, err)
		assert.Equal(t, 10, remaining)
	})

	t.Run("admin may cancel another user's unpaid order", func(t *testing.T) {
		svc, _, placed, _ := newPlacedOrder(t)
		require.NoError(t, svc.Cancel(placed.ID, admin()))
	})

	t.Run("stranger may not cancel", func(t *testing.T) {
		svc, _, placed, _ := newPlacedOrder(t)
		err := svc.Cancel(placed.ID, stranger())
		require.Error(t, err)
		assert.True(t, models.IsAuthorization(err))
		assert.Equal(t, "not authorized", err.Error())
	})

	t.Run("paid order cannot be cancelled even by admin", func(t *testing.T) {
		svc, _, placed, products := newPlacedOrder(t)
		_, err := svc.MarkPaid(context.Background(), placed.ID, "pf-1")
		require.NoError(t, err)

		err = svc.Cancel(placed.ID, admin())
		require.Error(t, err)
		assert.True(t, models.IsConflict(err))
		assert.Equal(t, "a paid order cannot be cancelled", err.Error())

		// Reserved stock stays taken
		remaining, stockErr := products.GetAvailableStock(1)
		require.NoError(t, stockErr)
		assert.Equal(t, 8, remaining)
	})

	t.Run("cancelled order cannot be cancelled again", func(t *testing.T) {
		svc, _, placed, _ := newPlacedOrder(t)
		require.NoError(t, svc.Cancel(placed.ID, owner()))
		err := svc.Cancel(placed.ID, owner())
		require.Error(t, err)
		assert.True(t, models.IsConflict(err))
	})
}

func TestOrderService_Reorder(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	svc, deps := newTestOrderService(products, newMockOfferRepo())

	_, err := deps.carts.AddItem(7, 1, 2)
	require.NoError(t, err)
	source, err := svc.Place(7, placeRequest())
	require.NoError(t, err)
	_, err = svc.MarkPaid(context.Background(), source.ID, "pf-1")
	require.NoError(t, err)

	t.Run("creates a fresh unpaid order", func(t *testing.T) {
		reordered, err := svc.Reorder(source.ID, owner())
		require.NoError(t, err)

		assert.NotEqual(t, source.ID, reordered.ID)
		assert.NotEqual(t, source.OrderNumber, reordered.OrderNumber)
		assert.Equal(t, models.OrderCreated, reordered.Status)
		assert.False(t, reordered.IsPaid)
		assert.False(t, reordered.IsDelivered)
		assert.Empty(t, reordered.GatewayPaymentID)
		assert.Equal(t, source.ShippingAddress, reordered.ShippingAddress)
		assert.Equal(t, source.PaymentMethod, reordered.PaymentMethod)
		require.Len(t, reordered.Items, 1)
		assert.Equal(t, source.Items[0].ProductID, reordered.Items[0].ProductID)
		assert.Equal(t, 10000, reordered.TotalAmount)

		// Reorder reserved its own stock: 2 for the source, 2 for the copy
		remaining, err := products.GetAvailableStock(1)
		require.NoError(t, err)
		assert.Equal(t, 6, remaining)
	})

	t.Run("only the owner may reorder", func(t *testing.T) {
		_, err := svc.Reorder(source.ID, admin())
		require.Error(t, err)
		assert.True(t, models.IsAuthorization(err))
	})

	t.Run("insufficient stock aborts", func(t *testing.T) {
		require.NoError(t, products.ReserveStock(1, 5))
		_, err := svc.Reorder(source.ID, owner())
		require.Error(t, err)
		assert.True(t, models.IsConflict(err))
	})
}

func TestOrderService_GetOrderByID_Authorization(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	svc, deps := newTestOrderService(products, newMockOfferRepo())

	_, err := deps.carts.AddItem(7, 1, 1)
	require.NoError(t, err)
	placed, err := svc.Place(7, placeRequest())
	require.NoError(t, err)

	if _, err := svc.GetOrderByID(placed.ID, owner()); err != nil {
		t.Errorf("owner read failed: %v", err)
	}
	if _, err := svc.GetOrderByID(placed.ID, admin()); err != nil {
		t.Errorf("admin read failed: %v", err)
	}
	if _, err := svc.GetOrderByID(placed.ID, stranger()); !models.IsAuthorization(err) {
		t.Errorf("stranger read: error = %v, want AuthorizationError", err)
	}
	if _, err := svc.GetOrderByID(404, owner()); !models.IsNotFound(err) {
		t.Errorf("unknown order: error = %v, want not-found", err)
	}
}

func TestOrderService_StatusEventsPublished(t *testing.T) {
	products := newMockProductRepo(&models.Product{ID: 1, Name: "Mug", Price: 5000, Stock: 10})
	svc, deps := newTestOrderService(products, newMockOfferRepo())

	_, err := deps.carts.AddItem(7, 1, 1)
	require.NoError(t, err)
	placed, err := svc.Place(7, placeRequest())
	require.NoError(t, err)
	_, err = svc.MarkPaid(context.Background(), placed.ID, "pf-1")
	require.NoError(t, err)
	_, err = svc.MarkDelivered(placed.ID, admin())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(deps.events.published()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t,
		[]models.OrderStatus{models.OrderCreated, models.OrderPaid, models.OrderDelivered},
		deps.events.published())
}
