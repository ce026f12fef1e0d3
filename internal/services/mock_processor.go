package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"online-storefront/internal/models"
)

// GatewayPayment represents a payment held by the mock card processor
type GatewayPayment struct {
	ID             string            `json:"id"`
	OrderReference string            `json:"order_reference"` // m_payment_id of the originating request
	Amount         string            `json:"amount"`          // Formatted amount string, reused verbatim in notifications
	Status         string            `json:"status"`          // "pending", "complete", "failed"
	Payload        map[string]string `json:"payload"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// paymentStore is the processor's private key-value store. It is created with
// the processor and dies with it; nothing else shares it.
type paymentStore struct {
	mu       sync.RWMutex
	payments map[string]*GatewayPayment
}

func newPaymentStore() *paymentStore {
	return &paymentStore{payments: make(map[string]*GatewayPayment)}
}

func (s *paymentStore) put(p *GatewayPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

func (s *paymentStore) get(id string) (*GatewayPayment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	return p, ok
}

// MockCardProcessor is a stand-in payment gateway for development and tests.
// It accepts signed payment requests and produces signed asynchronous
// notifications through the same signer the real gateway would use.
type MockCardProcessor struct {
	signer *PayFastService
	store  *paymentStore
	logger zerolog.Logger
}

// NewMockCardProcessor creates a mock processor with its own payment store
func NewMockCardProcessor(signer *PayFastService, logger zerolog.Logger) *MockCardProcessor {
	return &MockCardProcessor{
		signer: signer,
		store:  newPaymentStore(),
		logger: logger,
	}
}

// CreatePayment accepts an outbound payment request payload, verifying its
// signature the way the gateway would before holding the payment as pending
func (p *MockCardProcessor) CreatePayment(payload map[string]string) (*GatewayPayment, error) {
	if err := p.signer.VerifyNotification(payload); err != nil {
		return nil, err
	}

	reference := payload[FieldPaymentID]
	amount := payload[FieldAmount]
	if reference == "" || amount == "" {
		return nil, &models.ValidationError{Message: "payment request is missing m_payment_id or amount"}
	}

	now := time.Now()
	payment := &GatewayPayment{
		ID:             uuid.NewString(),
		OrderReference: reference,
		Amount:         amount,
		Status:         "pending",
		Payload:        payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.store.put(payment)

	p.logger.Info().Str("payment_id", payment.ID).Str("order_reference", reference).
		Str("amount", amount).Msg("mock processor: payment created")

	return payment, nil
}

// GetPayment returns a held payment by ID
func (p *MockCardProcessor) GetPayment(paymentID string) (*GatewayPayment, error) {
	payment, ok := p.store.get(paymentID)
	if !ok {
		return nil, &models.NotFoundError{Resource: "payment"}
	}
	return payment, nil
}

// CompletePayment marks a payment complete and returns the signed
// notification the gateway would POST to the notify URL. amount_gross reuses
// the exact formatted string from the original request.
func (p *MockCardProcessor) CompletePayment(paymentID string) (map[string]string, error) {
	return p.settle(paymentID, "complete", PaymentStatusComplete)
}

// FailPayment marks a payment failed and returns the corresponding signed
// notification
func (p *MockCardProcessor) FailPayment(paymentID string) (map[string]string, error) {
	return p.settle(paymentID, "failed", "FAILED")
}

func (p *MockCardProcessor) settle(paymentID, status, notificationStatus string) (map[string]string, error) {
	payment, ok := p.store.get(paymentID)
	if !ok {
		return nil, &models.NotFoundError{Resource: "payment"}
	}

	payment.Status = status
	payment.UpdatedAt = time.Now()
	p.store.put(payment)

	notification := map[string]string{
		FieldPaymentID:        payment.OrderReference,
		FieldGatewayPaymentID: payment.ID,
		FieldPaymentStatus:    notificationStatus,
		FieldAmountGross:      payment.Amount,
		FieldAmountFee:        "0.00",
		FieldAmountNet:        payment.Amount,
	}
	notification[FieldSignature] = p.signer.Sign(notification)

	p.logger.Info().Str("payment_id", payment.ID).Str("status", notificationStatus).
		Msg(fmt.Sprintf("mock processor: payment %s", status))

	return notification, nil
}
