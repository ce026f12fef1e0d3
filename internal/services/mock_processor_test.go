package services

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"online-storefront/internal/models"
)

func newTestProcessor(t *testing.T) (*MockCardProcessor, *PayFastService) {
	t.Helper()
	signer := NewPayFastService(payfastTestConfig("secret-phrase"))
	return NewMockCardProcessor(signer, zerolog.Nop()), signer
}

func TestMockCardProcessor_CreatePayment(t *testing.T) {
	processor, signer := newTestProcessor(t)

	payload := signer.BuildRequest(testOrder(), testBuyer())

	payment, err := processor.CreatePayment(payload)
	require.NoError(t, err)

	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, "42", payment.OrderReference)
	assert.Equal(t, "180.00", payment.Amount)
	assert.Equal(t, "pending", payment.Status)

	held, err := processor.GetPayment(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, held.ID)
}

func TestMockCardProcessor_CreatePayment_RejectsBadSignature(t *testing.T) {
	processor, signer := newTestProcessor(t)

	payload := signer.BuildRequest(testOrder(), testBuyer())
	payload["amount"] = "0.01"

	_, err := processor.CreatePayment(payload)
	require.Error(t, err)
	assert.True(t, models.IsSignature(err))
}

func TestMockCardProcessor_CreatePayment_RequiresReferenceAndAmount(t *testing.T) {
	processor, signer := newTestProcessor(t)

	payload := map[string]string{
		FieldMerchantID: "10000100",
		FieldItemName:   "Online Storefront Purchase",
	}
	payload[FieldSignature] = signer.Sign(payload)

	_, err := processor.CreatePayment(payload)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestMockCardProcessor_CompletePayment(t *testing.T) {
	processor, signer := newTestProcessor(t)

	payment, err := processor.CreatePayment(signer.BuildRequest(testOrder(), testBuyer()))
	require.NoError(t, err)

	notification, err := processor.CompletePayment(payment.ID)
	require.NoError(t, err)

	// The notification round-trips through the same verifier the webhook uses
	require.NoError(t, signer.VerifyNotification(notification))

	assert.Equal(t, PaymentStatusComplete, notification[FieldPaymentStatus])
	assert.Equal(t, "42", notification[FieldPaymentID])
	assert.Equal(t, payment.ID, notification[FieldGatewayPaymentID])
	assert.Equal(t, "180.00", notification[FieldAmountGross])
	assert.Equal(t, "0.00", notification[FieldAmountFee])
	assert.Equal(t, "180.00", notification[FieldAmountNet])

	held, err := processor.GetPayment(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "complete", held.Status)
}

func TestMockCardProcessor_FailPayment(t *testing.T) {
	processor, signer := newTestProcessor(t)

	payment, err := processor.CreatePayment(signer.BuildRequest(testOrder(), testBuyer()))
	require.NoError(t, err)

	notification, err := processor.FailPayment(payment.ID)
	require.NoError(t, err)

	require.NoError(t, signer.VerifyNotification(notification))
	assert.Equal(t, "FAILED", notification[FieldPaymentStatus])

	held, err := processor.GetPayment(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", held.Status)
}

func TestMockCardProcessor_UnknownPayment(t *testing.T) {
	processor, _ := newTestProcessor(t)

	_, err := processor.GetPayment("missing")
	assert.True(t, models.IsNotFound(err))

	_, err = processor.CompletePayment("missing")
	assert.True(t, models.IsNotFound(err))

	_, err = processor.FailPayment("missing")
	assert.True(t, models.IsNotFound(err))
}
