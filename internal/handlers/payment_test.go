package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"online-storefront/internal/config"
	"online-storefront/internal/models"
	"online-storefront/internal/services"
)

// stubOrderService records MarkPaid calls; other operations are unused here
type stubOrderService struct {
	mu            sync.Mutex
	markPaidCalls []string
	markPaidErr   error
	order         *models.Order
}

func (s *stubOrderService) Place(userID int, req *services.PlaceOrderRequest) (*models.Order, error) {
	return nil, nil
}

func (s *stubOrderService) GetOrderByID(orderID int, requester *models.User) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, models.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *stubOrderService) GetUserOrders(userID int, requester *models.User, limit, offset int) ([]*models.Order, int, error) {
	return nil, 0, nil
}

func (s *stubOrderService) MarkPaid(ctx context.Context, orderID int, gatewayPaymentID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markPaidErr != nil {
		return nil, s.markPaidErr
	}
	s.markPaidCalls = append(s.markPaidCalls, gatewayPaymentID)
	return &models.Order{ID: orderID, Status: models.OrderPaid, IsPaid: true}, nil
}

func (s *stubOrderService) MarkDelivered(orderID int, requester *models.User) (*models.Order, error) {
	return nil, nil
}

func (s *stubOrderService) Cancel(orderID int, requester *models.User) error {
	return nil
}

func (s *stubOrderService) Reorder(orderID int, requester *models.User) (*models.Order, error) {
	return nil, nil
}

func (s *stubOrderService) paidCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.markPaidCalls...)
}

func newNotifyServer(t *testing.T, orders *stubOrderService) (*httptest.Server, *services.PayFastService) {
	t.Helper()

	payfast := services.NewPayFastService(config.PayFastConfig{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  "secret-phrase",
		ProcessURL:  "https://sandbox.payfast.co.za/eng/process",
	})

	handler := NewPaymentHandler(payfast, orders, zerolog.Nop())
	router := chi.NewRouter()
	handler.WebhookRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, payfast
}

func signedNotification(payfast *services.PayFastService, status string) url.Values {
	fields := map[string]string{
		services.FieldPaymentID:        "42",
		services.FieldGatewayPaymentID: "pf-abc-123",
		services.FieldPaymentStatus:    status,
		services.FieldAmountGross:      "180.00",
		services.FieldAmountFee:        "0.00",
		services.FieldAmountNet:        "180.00",
	}
	fields[services.FieldSignature] = payfast.Sign(fields)

	form := url.Values{}
	for key, value := range fields {
		form.Set(key, value)
	}
	return form
}

func postNotification(t *testing.T, server *httptest.Server, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/payment/notify", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNotify_CompleteMarksOrderPaid(t *testing.T) {
	orders := &stubOrderService{}
	server, payfast := newNotifyServer(t, orders)

	resp := postNotification(t, server, signedNotification(payfast, services.PaymentStatusComplete))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, orders.paidCalls(), 1)
	assert.Equal(t, "pf-abc-123", orders.paidCalls()[0])
}

func TestNotify_InvalidSignatureChangesNothing(t *testing.T) {
	orders := &stubOrderService{}
	server, payfast := newNotifyServer(t, orders)

	form := signedNotification(payfast, services.PaymentStatusComplete)
	form.Set(services.FieldAmountGross, "1.00")

	resp := postNotification(t, server, form)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, orders.paidCalls())
}

func TestNotify_MissingSignatureRejected(t *testing.T) {
	orders := &stubOrderService{}
	server, _ := newNotifyServer(t, orders)

	form := url.Values{}
	form.Set(services.FieldPaymentID, "42")
	form.Set(services.FieldPaymentStatus, services.PaymentStatusComplete)

	resp := postNotification(t, server, form)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, orders.paidCalls())
}

func TestNotify_NonCompleteStatusAcknowledgedWithoutTransition(t *testing.T) {
	orders := &stubOrderService{}
	server, payfast := newNotifyServer(t, orders)

	for _, status := range []string{"FAILED", "PENDING", "CANCELLED"} {
		resp := postNotification(t, server, signedNotification(payfast, status))
		assert.Equal(t, http.StatusOK, resp.StatusCode, "status %s", status)
	}
	assert.Empty(t, orders.paidCalls())
}

func TestNotify_MalformedPaymentReference(t *testing.T) {
	orders := &stubOrderService{}
	server, payfast := newNotifyServer(t, orders)

	fields := map[string]string{
		services.FieldPaymentID:     "not-a-number",
		services.FieldPaymentStatus: services.PaymentStatusComplete,
	}
	fields[services.FieldSignature] = payfast.Sign(fields)
	form := url.Values{}
	for key, value := range fields {
		form.Set(key, value)
	}

	resp := postNotification(t, server, form)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, orders.paidCalls())
}

func TestNotify_DuplicateDeliveryIsAcknowledged(t *testing.T) {
	orders := &stubOrderService{}
	server, payfast := newNotifyServer(t, orders)

	form := signedNotification(payfast, services.PaymentStatusComplete)
	first := postNotification(t, server, form)
	second := postNotification(t, server, form)

	// Both deliveries are acknowledged; deduplication happens downstream
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Len(t, orders.paidCalls(), 2)
}

func TestNotify_DownstreamFailureSurfaces(t *testing.T) {
	orders := &stubOrderService{markPaidErr: models.ErrOrderNotFound}
	server, payfast := newNotifyServer(t, orders)

	resp := postNotification(t, server, signedNotification(payfast, services.PaymentStatusComplete))

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBuildCheckout_AlreadyPaidRejected(t *testing.T) {
	orders := &stubOrderService{
		order: &models.Order{
			ID: 42, UserID: 7, OrderNumber: "ORD-20240101-123456",
			TotalAmount: 18000, Status: models.OrderPaid, IsPaid: true,
		},
	}
	payfast := services.NewPayFastService(config.PayFastConfig{
		MerchantID: "10000100", MerchantKey: "46f0cd694581a",
	})
	handler := NewPaymentHandler(payfast, orders, zerolog.Nop())

	router := chi.NewRouter()
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/payment/checkout/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
