package models

import (
	"errors"
	"time"
)

// UnlimitedUsage is the usage limit sentinel meaning an offer may be applied
// any number of times.
const UnlimitedUsage = -1

// Offer represents a time-boxed percentage discount, optionally restricted to
// specific products or categories and a minimum purchase amount.
type Offer struct {
	ID                   int       `json:"id" db:"id"`
	Name                 string    `json:"name" db:"name"`
	DiscountPercentage   int       `json:"discount_percentage" db:"discount_percentage"`
	MinPurchaseAmount    *int      `json:"min_purchase_amount,omitempty" db:"min_purchase_amount"` // In cents
	MaxDiscountAmount    *int      `json:"max_discount_amount,omitempty" db:"max_discount_amount"` // In cents
	StartDate            time.Time `json:"start_date" db:"start_date"`
	EndDate              time.Time `json:"end_date" db:"end_date"`
	Active               bool      `json:"active" db:"active"`
	ApplicableProducts   []int     `json:"applicable_products,omitempty" db:"applicable_products"`
	ApplicableCategories []int     `json:"applicable_categories,omitempty" db:"applicable_categories"`
	UsageLimit           int       `json:"usage_limit" db:"usage_limit"` // UnlimitedUsage means no limit
	UsedCount            int       `json:"used_count" db:"used_count"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// Validate validates the offer data
func (o *Offer) Validate() error {
	if o.Name == "" {
		return errors.New("offer name is required")
	}

	if o.DiscountPercentage < 0 || o.DiscountPercentage > 100 {
		return errors.New("discount percentage must be between 0 and 100")
	}

	if o.MinPurchaseAmount != nil && *o.MinPurchaseAmount < 0 {
		return errors.New("minimum purchase amount cannot be negative")
	}

	if o.MaxDiscountAmount != nil && *o.MaxDiscountAmount < 0 {
		return errors.New("maximum discount amount cannot be negative")
	}

	if o.EndDate.Before(o.StartDate) {
		return errors.New("end date cannot be before start date")
	}

	if o.UsageLimit != UnlimitedUsage && o.UsageLimit < 0 {
		return errors.New("usage limit must be non-negative or unlimited")
	}

	if o.UsageLimit != UnlimitedUsage && o.UsedCount > o.UsageLimit {
		return errors.New("used count cannot exceed usage limit")
	}

	return nil
}

// IsUnlimited returns true if the offer has no usage limit
func (o *Offer) IsUnlimited() bool {
	return o.UsageLimit == UnlimitedUsage
}

// HasUsageLeft returns true if the offer can still be applied
func (o *Offer) HasUsageLeft() bool {
	return o.IsUnlimited() || o.UsedCount < o.UsageLimit
}

// IsWithinWindow returns true if instant lies within the offer's validity
// window, boundaries included
func (o *Offer) IsWithinWindow(instant time.Time) bool {
	return !instant.Before(o.StartDate) && !instant.After(o.EndDate)
}

// AppliesToProduct returns true if the offer's product allow-list permits the
// given product. An empty allow-list permits every product.
func (o *Offer) AppliesToProduct(productID int) bool {
	if len(o.ApplicableProducts) == 0 {
		return true
	}
	for _, id := range o.ApplicableProducts {
		if id == productID {
			return true
		}
	}
	return false
}

// AppliesToCategory returns true if the offer's category allow-list permits
// the given category. An empty allow-list permits every category.
func (o *Offer) AppliesToCategory(categoryID int) bool {
	if len(o.ApplicableCategories) == 0 {
		return true
	}
	for _, id := range o.ApplicableCategories {
		if id == categoryID {
			return true
		}
	}
	return false
}
