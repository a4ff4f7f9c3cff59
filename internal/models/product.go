package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog record the order core reads. Its StockCount is owned
// by the inventory ledger and must only change through Reserve/Release.
type Product struct {
	ID                 string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	SellerID           string          `json:"seller_id" gorm:"index;type:varchar(36)"`
	Name               string          `json:"name" validate:"required,min=3,max=100"`
	Description        string          `json:"description" validate:"omitempty,max=500"`
	Image              string          `json:"image" validate:"omitempty,max=500"`
	Price              decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" gorm:"type:decimal(5,2)"`
	StockCount         int             `json:"stock_count" gorm:"not null;default:0" validate:"gte=0"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// EffectivePrice is price × (1 − discountPercentage/100), rounded to cents.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPercentage.IsZero() {
		return p.Price.Round(2)
	}
	factor := decimal.NewFromInt(1).Sub(p.DiscountPercentage.Div(hundred))
	return p.Price.Mul(factor).Round(2)
}
