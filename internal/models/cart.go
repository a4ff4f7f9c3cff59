package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// VariantOption is one chosen attribute of a product, e.g. {size, M}.
type VariantOption struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// Variant is the set of options chosen for a line.
type Variant []VariantOption

// Equal compares two variants as sets of name/value pairs.
func (v Variant) Equal(other Variant) bool {
	if len(v) != len(other) {
		return false
	}
	a, b := v.sorted(), other.sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v Variant) sorted() []VariantOption {
	out := make([]VariantOption, len(v))
	copy(out, v)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Cart is a user's single active pre-checkout selection.
type Cart struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string          `json:"user_id" gorm:"uniqueIndex;type:varchar(36)"`
	Items          []CartItem      `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	TotalItems     int             `json:"total_items"`
	TotalPrice     decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2)"`
	CouponCode     string          `json:"coupon_code,omitempty" gorm:"type:varchar(50)"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2)"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CartItem is one line of a cart. UnitPrice is the price snapshot taken when
// the product was added.
type CartItem struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CartID    string          `json:"-" gorm:"index;type:varchar(36)"`
	Position  int             `json:"-"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36)"`
	Quantity  int             `json:"quantity"`
	Variant   Variant         `json:"selected_variant,omitempty" gorm:"serializer:json"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2)"`
	LineTotal decimal.Decimal `json:"line_total" gorm:"type:decimal(12,2)"`
	AddedAt   time.Time       `json:"added_at"`
}

// Subtotal is Σ lineTotal.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal)
	}
	return total
}

// Recalculate refreshes line totals and the aggregates from the current
// entries and DiscountAmount. TotalPrice never goes below zero.
func (c *Cart) Recalculate() {
	c.TotalItems = 0
	for i := range c.Items {
		c.Items[i].Position = i
		c.Items[i].LineTotal = c.Items[i].UnitPrice.Mul(decimal.NewFromInt(int64(c.Items[i].Quantity))).Round(2)
		c.TotalItems += c.Items[i].Quantity
	}
	total := c.Subtotal().Sub(c.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	c.TotalPrice = total.Round(2)
}

// Clear empties the cart and drops its coupon.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.CouponCode = ""
	c.DiscountAmount = decimal.Zero
	c.Recalculate()
}

// FindItem returns the index of the line with the given id, or -1.
func (c *Cart) FindItem(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// FindLine returns the index of the line for productID with an identical variant, or -1.
func (c *Cart) FindLine(productID string, variant Variant) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Variant.Equal(variant) {
			return i
		}
	}
	return -1
}

// Clone deep-copies the cart's items.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		item.Variant = append(Variant(nil), item.Variant...)
		out.Items[i] = item
	}
	return out
}
