package repositories

import (
	"context"

	"storefront/internal/models"
)

// CouponRepository defines the interface for coupon data access.
type CouponRepository interface {
	GetAll(ctx context.Context) ([]models.Coupon, error)
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	// UsageFor returns how many times userID has redeemed the coupon.
	UsageFor(ctx context.Context, couponID, userID string) (int, error)
	// Redeem atomically increments the global and per-user counters, failing
	// with apperrors.ErrCouponInvalid when either limit is already reached.
	Redeem(ctx context.Context, couponID, userID string) error
}
