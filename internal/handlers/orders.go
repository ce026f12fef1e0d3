package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"online-storefront/internal/middleware"
	"online-storefront/internal/models"
	"online-storefront/internal/services"
)

// OrderHandler handles checkout and order lifecycle requests
type OrderHandler struct {
	orderService services.OrderServiceInterface
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService services.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// Routes mounts the order routes
func (h *OrderHandler) Routes(r chi.Router) {
	r.Post("/orders", h.Place)
	r.Get("/orders", h.List)
	r.Get("/orders/{orderID}", h.Get)
	r.Post("/orders/{orderID}/cancel", h.Cancel)
	r.Post("/orders/{orderID}/reorder", h.Reorder)
}

// AdminRoutes mounts admin-only order routes
func (h *OrderHandler) AdminRoutes(r chi.Router) {
	r.Post("/orders/{orderID}/deliver", h.MarkDelivered)
}

// Place converts the user's cart into an order at checkout
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req services.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid request body"})
		return
	}

	order, err := h.orderService.Place(user.ID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// List returns the current user's orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	limit, offset := paginationParams(r)
	orders, total, err := h.orderService.GetUserOrders(user.ID, user, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
	})
}

// Get returns a single order
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, order)
}

// Cancel cancels an unpaid order owned by the requester
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.orderService.Cancel(orderID, user); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.OrderCancelled)})
}

// Reorder duplicates a past order into a fresh one awaiting payment
func (h *OrderHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := h.orderService.Reorder(orderID, user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// MarkDelivered records fulfillment of an order (admin only)
func (h *OrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := h.orderService.MarkDelivered(orderID, user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func orderIDParam(r *http.Request) (int, error) {
	orderID, err := strconv.Atoi(chi.URLParam(r, "orderID"))
	if err != nil {
		return 0, &models.ValidationError{Message: "invalid order ID"}
	}
	return orderID, nil
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
