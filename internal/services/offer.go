package services

import (
	"time"

	"online-storefront/internal/models"
)

// OfferService decides whether a promotional offer applies and computes the
// resulting discount
type OfferService struct{}

// NewOfferService creates a new offer service
func NewOfferService() *OfferService {
	return &OfferService{}
}

// IsApplicable reports whether an offer applies to a cart subtotal and an
// optional target product/category at the given instant. All rules must hold:
// the offer is active, the instant is inside the validity window (inclusive),
// usage headroom remains, the target product/category pass any configured
// allow-lists, and the subtotal meets any minimum purchase amount. When the
// product allow-list is non-empty and no target product is given, the check
// fails. The category may be explicit or derived from the target product.
func (s *OfferService) IsApplicable(offer *models.Offer, instant time.Time, cartSubtotal int, product *models.Product, categoryID *int) bool {
	if !offer.Active {
		return false
	}

	if !offer.IsWithinWindow(instant) {
		return false
	}

	if !offer.HasUsageLeft() {
		return false
	}

	if len(offer.ApplicableProducts) > 0 {
		if product == nil || !offer.AppliesToProduct(product.ID) {
			return false
		}
	}

	if len(offer.ApplicableCategories) > 0 {
		target := categoryID
		if target == nil && product != nil {
			target = &product.CategoryID
		}
		if target == nil || !offer.AppliesToCategory(*target) {
			return false
		}
	}

	if offer.MinPurchaseAmount != nil && cartSubtotal < *offer.MinPurchaseAmount {
		return false
	}

	return true
}

// ValidateForCart checks the offer against a cart subtotal without product
// targeting, returning a ConflictError naming the failed constraint
func (s *OfferService) ValidateForCart(offer *models.Offer, instant time.Time, cartSubtotal int) error {
	if !offer.Active {
		return &models.ConflictError{Message: "offer is not active"}
	}

	if !offer.IsWithinWindow(instant) {
		return &models.ConflictError{Message: "offer is not valid at this time"}
	}

	if !offer.HasUsageLeft() {
		return &models.ConflictError{Message: "offer usage limit reached"}
	}

	if offer.MinPurchaseAmount != nil && cartSubtotal < *offer.MinPurchaseAmount {
		return &models.ConflictError{Message: "cart subtotal is below the offer's minimum purchase amount"}
	}

	return nil
}

// ComputeDiscount returns the discount in cents for applying the offer to a
// subtotal. The amount is clamped to the offer's maximum discount cap when
// set, is never negative and never exceeds the subtotal.
func (s *OfferService) ComputeDiscount(offer *models.Offer, subtotal int) int {
	if subtotal <= 0 {
		return 0
	}

	discount := subtotal * offer.DiscountPercentage / 100

	if offer.MaxDiscountAmount != nil && discount > *offer.MaxDiscountAmount {
		discount = *offer.MaxDiscountAmount
	}

	if discount < 0 {
		return 0
	}
	if discount > subtotal {
		return subtotal
	}

	return discount
}

// SelectBest returns the applicable offer with the strictly highest discount
// percentage for a product, or nil if none applies. Ties resolve to the first
// offer encountered in input order; selection is deterministic by policy.
// Minimum purchase amounts are not considered here since no cart is in scope.
func (s *OfferService) SelectBest(offers []*models.Offer, instant time.Time, product *models.Product) *models.Offer {
	var best *models.Offer

	for _, offer := range offers {
		if !offer.Active || !offer.IsWithinWindow(instant) || !offer.HasUsageLeft() {
			continue
		}

		if len(offer.ApplicableProducts) > 0 {
			if product == nil || !offer.AppliesToProduct(product.ID) {
				continue
			}
		}

		if len(offer.ApplicableCategories) > 0 {
			if product == nil || !offer.AppliesToCategory(product.CategoryID) {
				continue
			}
		}

		if best == nil || offer.DiscountPercentage > best.DiscountPercentage {
			best = offer
		}
	}

	return best
}
