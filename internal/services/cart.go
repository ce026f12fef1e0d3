package services

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"online-storefront/internal/models"
)

// CartRepository interface for cart data operations
type CartRepository interface {
	GetOrCreateByUser(userID int) (*models.Cart, error)
	UpsertItem(cartID int, item *models.CartItem) error
	RemoveItem(cartID, productID int) error
	ClearItems(cartID int) error
	SaveTotals(cart *models.Cart) error
}

// CartProductRepository interface for product lookups during cart mutation
type CartProductRepository interface {
	GetByID(id int) (*models.Product, error)
}

// CartOfferRepository interface for offer lookups during cart mutation
type CartOfferRepository interface {
	GetByID(id int) (*models.Offer, error)
}

// CartService owns cart line items and totals. Every mutation is followed by
// a full recompute: subtotal is the sum of line totals, total is subtotal
// minus discount, and discount is zero unless an offer is applied.
//
// Offer revalidation is lazy: removing items may leave an applied offer whose
// minimum purchase amount is no longer met. The offer stays applied (with its
// discount recomputed against the smaller subtotal) until ApplyOffer or
// RemoveOffer is called again. This is a deliberate trade-off, not a bug.
type CartService struct {
	cartRepo    CartRepository
	productRepo CartProductRepository
	offerRepo   CartOfferRepository
	stockGuard  *StockGuard
	evaluator   *OfferService
	logger      zerolog.Logger

	// Per-user cart locks; operations on the same cart are linearized so
	// concurrent AddItem calls cannot lose updates.
	mu        sync.Mutex
	cartLocks map[int]*sync.Mutex
}

// NewCartService creates a new cart service
func NewCartService(
	cartRepo CartRepository,
	productRepo CartProductRepository,
	offerRepo CartOfferRepository,
	stockGuard *StockGuard,
	evaluator *OfferService,
	logger zerolog.Logger,
) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		offerRepo:   offerRepo,
		stockGuard:  stockGuard,
		evaluator:   evaluator,
		logger:      logger,
		cartLocks:   make(map[int]*sync.Mutex),
	}
}

// lockCart acquires the per-user cart lock and returns the unlock func
func (s *CartService) lockCart(userID int) func() {
	s.mu.Lock()
	lock, ok := s.cartLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.cartLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// GetCart returns the user's cart, creating an empty one if needed
func (s *CartService) GetCart(userID int) (*models.Cart, error) {
	return s.cartRepo.GetOrCreateByUser(userID)
}

// AddItem adds a product to the cart or increases the quantity of an existing
// line. The resulting quantity (existing plus requested) is authorized
// against current stock, not just the delta. New lines snapshot the product's
// current name, price, image and category.
func (s *CartService) AddItem(userID, productID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, &models.ValidationError{Message: "quantity must be at least 1"}
	}

	unlock := s.lockCart(userID)
	defer unlock()

	cart, err := s.cartRepo.GetOrCreateByUser(userID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}

	newQuantity := quantity
	existing := cart.FindItem(productID)
	if existing != nil {
		newQuantity = existing.Quantity + quantity
	}

	if err := s.stockGuard.Authorize(productID, newQuantity); err != nil {
		return nil, err
	}

	var line models.CartItem
	if existing != nil {
		// Keep the add-time snapshot; only the quantity changes
		line = *existing
		line.Quantity = newQuantity
	} else {
		line = models.CartItem{
			CartID:      cart.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			ImageURL:    product.ImageURL,
			CategoryID:  product.CategoryID,
			Quantity:    newQuantity,
		}
	}

	if err := s.cartRepo.UpsertItem(cart.ID, &line); err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Quantity = newQuantity
	} else {
		cart.Items = append(cart.Items, line)
	}

	return s.recompute(cart)
}

// UpdateQuantity sets the absolute quantity of an existing line, authorized
// against current stock
func (s *CartService) UpdateQuantity(userID, productID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, &models.ValidationError{Message: "quantity must be at least 1"}
	}

	unlock := s.lockCart(userID)
	defer unlock()

	cart, err := s.cartRepo.GetOrCreateByUser(userID)
	if err != nil {
		return nil, err
	}

	existing := cart.FindItem(productID)
	if existing == nil {
		return nil, models.ErrProductNotFound
	}

	if err := s.stockGuard.Authorize(productID, quantity); err != nil {
		return nil, err
	}

	line := *existing
	line.Quantity = quantity
	if err := s.cartRepo.UpsertItem(cart.ID, &line); err != nil {
		return nil, err
	}
	existing.Quantity = quantity

	return s.recompute(cart)
}

// RemoveItem drops a line from the cart. An applied offer is not removed even
// if the shrunken subtotal no longer meets its minimum purchase amount (lazy
// revalidation).
func (s *CartService) RemoveItem(userID, productID int) (*models.Cart, error) {
	unlock := s.lockCart(userID)
	defer unlock()

	cart, err := s.cartRepo.GetOrCreateByUser(userID)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.RemoveItem(cart.ID, productID); err != nil {
		return nil, err
	}

	for idx := range cart.Items {
		if cart.Items[idx].ProductID == productID {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			break
		}
	}

	return s.recompute(cart)
}

// ApplyOffer applies an offer to the cart after validating it against the
// cart's current subtotal
func (s *CartService) ApplyOffer(userID, offerID int) (*models.Cart, error) {
	unlock := s.lockCart(userID)
	defer unlock()

	cart, err := s.cartRepo.GetOrCreateByUser(userID)
	if err != nil {
		return nil, err
	}

	offer, err := s.offerRepo.GetByID(offerID)
	if err != nil {
		return nil, err
	}

	if err := s.evaluator.ValidateForCart(offer, time.Now(), cart.ItemsSubtotal()); err != nil {
		return nil, err
	}

	cart.AppliedOfferID = &offer.ID
	return s.recompute(cart)
}

// RemoveOffer clears the applied offer; the total returns to the subtotal
func (s *CartService) RemoveOffer(userID int) (*models.Cart, error) {
	unlock := s.lockCart(userID)
	defer unlock()

	cart, err := s.cartRepo.GetOrCreateByUser(userID)
	if err != nil {
		return nil, err
	}

	cart.AppliedOfferID = nil
	return s.recompute(cart)
}

// Checkout runs fn against the cart while holding its lock, then empties the
// cart and clears its offer when fn succeeds. Concurrent mutations block for
// the whole flow, so an item added during checkout lands in the cart
// afterwards instead of being wiped by the post-checkout clear.
func (s *CartService) Checkout(userID int, fn func(cart *models.Cart) error) error {
	unlock := s.lockCart(userID)
	defer unlock()

	cart, err := s.cartRepo.GetOrCreateByUser(userID)
	if err != nil {
		return err
	}

	if err := fn(cart); err != nil {
		return err
	}

	// fn has committed its work; failing to empty the cart must not undo it
	if err := s.cartRepo.ClearItems(cart.ID); err != nil {
		s.logger.Error().Err(err).Int("cart_id", cart.ID).Msg("failed to clear cart after checkout")
		return nil
	}
	cart.Items = nil
	cart.AppliedOfferID = nil
	if _, err := s.recompute(cart); err != nil {
		s.logger.Error().Err(err).Int("cart_id", cart.ID).Msg("failed to reset cart totals after checkout")
	}

	return nil
}

// Clear empties the cart. Same lazy revalidation policy as RemoveItem: an
// applied offer stays referenced, its discount recomputes to zero.
func (s *CartService) Clear(userID int) (*models.Cart, error) {
	unlock := s.lockCart(userID)
	defer unlock()

	cart, err := s.cartRepo.GetOrCreateByUser(userID)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.ClearItems(cart.ID); err != nil {
		return nil, err
	}
	cart.Items = nil

	return s.recompute(cart)
}

// recompute derives subtotal, discount and total from current items and the
// applied offer, then persists the totals. Totals are never hand-set.
func (s *CartService) recompute(cart *models.Cart) (*models.Cart, error) {
	cart.SubtotalAmount = cart.ItemsSubtotal()
	cart.DiscountAmount = 0

	if cart.AppliedOfferID != nil {
		offer, err := s.offerRepo.GetByID(*cart.AppliedOfferID)
		if err != nil {
			return nil, err
		}
		cart.DiscountAmount = s.evaluator.ComputeDiscount(offer, cart.SubtotalAmount)
	}

	cart.TotalAmount = cart.SubtotalAmount - cart.DiscountAmount

	if err := s.cartRepo.SaveTotals(cart); err != nil {
		return nil, err
	}

	return cart, nil
}
