package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"online-storefront/internal/middleware"
	"online-storefront/internal/models"
	"online-storefront/internal/services"
)

// notifyTimeout bounds webhook processing so the gateway always gets a
// prompt acknowledgment
const notifyTimeout = 10 * time.Second

// PaymentHandler handles payment gateway requests and callbacks
type PaymentHandler struct {
	payfast      *services.PayFastService
	orderService services.OrderServiceInterface
	logger       zerolog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payfast *services.PayFastService, orderService services.OrderServiceInterface, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payfast:      payfast,
		orderService: orderService,
		logger:       logger,
	}
}

// Routes mounts the authenticated payment routes
func (h *PaymentHandler) Routes(r chi.Router) {
	r.Get("/payment/checkout/{orderID}", h.BuildCheckout)
}

// WebhookRoutes mounts the unauthenticated gateway callback routes. The
// notification is authenticated by its signature, not by transport.
func (h *PaymentHandler) WebhookRoutes(r chi.Router) {
	r.Post("/payment/notify", h.Notify)
}

// BuildCheckout returns the signed payload the buyer's browser posts to the
// gateway's process URL
func (h *PaymentHandler) BuildCheckout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := h.orderService.GetOrderByID(orderID, user)
	if err != nil {
		writeError(w, err)
		return
	}

	if order.IsPaid {
		writeError(w, &models.ConflictError{Message: "order is already paid"})
		return
	}

	payload := h.payfast.BuildRequest(order, user)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"process_url": h.payfast.ProcessURL(),
		"fields":      payload,
	})
}

// Notify handles the gateway's asynchronous payment notification. The
// signature is verified before anything else; a mismatch changes no state
// and is logged as a security event. Delivery is at least once, so the paid
// transition downstream is idempotent.
func (h *PaymentHandler) Notify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), notifyTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid notification body"})
		return
	}

	fields := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}

	if err := h.payfast.VerifyNotification(fields); err != nil {
		h.logger.Warn().Str("remote", r.RemoteAddr).
			Str("m_payment_id", fields[services.FieldPaymentID]).
			Msg("security: payment notification failed signature verification")
		writeError(w, err)
		return
	}

	orderID, err := strconv.Atoi(fields[services.FieldPaymentID])
	if err != nil {
		writeError(w, &models.ValidationError{Message: "invalid m_payment_id"})
		return
	}

	status := fields[services.FieldPaymentStatus]
	if status != services.PaymentStatusComplete {
		// Verified but not a completion; acknowledge and leave the order untouched
		h.logger.Info().Int("order_id", orderID).Str("payment_status", status).
			Msg("payment notification ignored: status not complete")
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.orderService.MarkPaid(ctx, orderID, fields[services.FieldGatewayPaymentID]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
