package models

import "time"

// Cart represents a user's pending, mutable collection of intended purchases
// plus at most one applied offer. Each user owns exactly one cart.
type Cart struct {
	ID             int        `json:"id" db:"id"`
	UserID         int        `json:"user_id" db:"user_id"`
	Items          []CartItem `json:"items"`
	AppliedOfferID *int       `json:"applied_offer_id,omitempty" db:"applied_offer_id"`
	SubtotalAmount int        `json:"subtotal_price" db:"subtotal_amount"` // In cents
	DiscountAmount int        `json:"discount_amount" db:"discount_amount"`
	TotalAmount    int        `json:"total_price" db:"total_amount"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// CartItem represents a line in the cart. Name, price, image and category are
// snapshotted from the product at add-time.
type CartItem struct {
	ID          int    `json:"id" db:"id"`
	CartID      int    `json:"cart_id" db:"cart_id"`
	ProductID   int    `json:"product_id" db:"product_id"`
	ProductName string `json:"product_name" db:"product_name"`
	UnitPrice   int    `json:"unit_price" db:"unit_price"` // In cents
	ImageURL    string `json:"image_url" db:"image_url"`
	CategoryID  int    `json:"category_id" db:"category_id"`
	Quantity    int    `json:"quantity" db:"quantity"`
}

// LineTotal returns the line's contribution to the cart subtotal
func (i *CartItem) LineTotal() int {
	return i.UnitPrice * i.Quantity
}

// FindItem returns the cart line for a product, or nil if absent. Products
// appear at most once per cart.
func (c *Cart) FindItem(productID int) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].ProductID == productID {
			return &c.Items[idx]
		}
	}
	return nil
}

// ItemsSubtotal returns the sum of line totals over all items
func (c *Cart) ItemsSubtotal() int {
	subtotal := 0
	for idx := range c.Items {
		subtotal += c.Items[idx].LineTotal()
	}
	return subtotal
}

// IsEmpty returns true if the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
