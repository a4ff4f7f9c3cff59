package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CouponPercentage = "percentage"
	CouponFixed      = "fixed"
)

// Coupon is a discount rule with an activity window and usage caps.
// UsageLimit and PerUserLimit of zero mean unlimited.
type Coupon struct {
	ID           string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code         string              `json:"code" gorm:"uniqueIndex;type:varchar(50)" validate:"required,min=3,max=50"`
	Type         string              `json:"type" gorm:"type:varchar(20)" validate:"required,oneof=percentage fixed"`
	Value        decimal.Decimal     `json:"value" gorm:"type:decimal(12,2)"`
	MinPurchase  decimal.Decimal     `json:"min_purchase" gorm:"type:decimal(12,2)"`
	MaxDiscount  decimal.NullDecimal `json:"max_discount" gorm:"type:decimal(12,2)"`
	StartDate    time.Time           `json:"start_date" validate:"required"`
	EndDate      time.Time           `json:"end_date" validate:"required,gtfield=StartDate"`
	UsageLimit   int                 `json:"usage_limit" validate:"gte=0"`
	UsedCount    int                 `json:"used_count"`
	PerUserLimit int                 `json:"per_user_limit" validate:"gte=0"`
	IsActive     bool                `json:"is_active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// CouponUsage is the per-user redemption counter of a coupon.
type CouponUsage struct {
	CouponID  string    `json:"coupon_id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	UsedCount int       `json:"used_count"`
	UpdatedAt time.Time `json:"updated_at"`
}
