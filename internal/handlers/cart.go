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

// CartHandler handles shopping cart requests
type CartHandler struct {
	cartService services.CartServiceInterface
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService services.CartServiceInterface) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// Routes mounts the cart routes
func (h *CartHandler) Routes(r chi.Router) {
	r.Get("/cart", h.GetCart)
	r.Post("/cart/items", h.AddItem)
	r.Put("/cart/items/{productID}", h.UpdateQuantity)
	r.Delete("/cart/items/{productID}", h.RemoveItem)
	r.Delete("/cart/items", h.Clear)
	r.Post("/cart/offer", h.ApplyOffer)
	r.Delete("/cart/offer", h.RemoveOffer)
}

// GetCart returns the current user's cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	cart, err := h.cartService.GetCart(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// AddItem adds a product to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid request body"})
		return
	}

	cart, err := h.cartService.AddItem(user.ID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantity sets the absolute quantity of a cart line
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	productID, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, &models.ValidationError{Message: "invalid product ID"})
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid request body"})
		return
	}

	cart, err := h.cartService.UpdateQuantity(user.ID, productID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// RemoveItem drops a line from the cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	productID, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, &models.ValidationError{Message: "invalid product ID"})
		return
	}

	cart, err := h.cartService.RemoveItem(user.ID, productID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// Clear empties the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	cart, err := h.cartService.Clear(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

type applyOfferRequest struct {
	OfferID int `json:"offerId"`
}

// ApplyOffer applies a promotional offer to the cart. The response carries
// the updated cart with appliedOffer, discountAmount, subtotalPrice and
// totalPrice.
func (h *CartHandler) ApplyOffer(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req applyOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid request body"})
		return
	}

	if req.OfferID <= 0 {
		writeError(w, &models.ValidationError{Message: "offerId is required"})
		return
	}

	cart, err := h.cartService.ApplyOffer(user.ID, req.OfferID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cartWithOfferResponse(cart))
}

// RemoveOffer clears the applied offer
func (h *CartHandler) RemoveOffer(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	cart, err := h.cartService.RemoveOffer(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cartWithOfferResponse(cart))
}

func cartWithOfferResponse(cart *models.Cart) map[string]interface{} {
	return map[string]interface{}{
		"appliedOffer":   cart.AppliedOfferID,
		"discountAmount": cart.DiscountAmount,
		"subtotalPrice":  cart.SubtotalAmount,
		"totalPrice":     cart.TotalAmount,
		"items":          cart.Items,
	}
}
