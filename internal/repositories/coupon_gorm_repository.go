package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCouponRepository is a GORM implementation of CouponRepository.
type GORMCouponRepository struct {
	db *gorm.DB
}

// NewGORMCouponRepository creates a new instance of GORMCouponRepository.
func NewGORMCouponRepository(db *gorm.DB) *GORMCouponRepository {
	return &GORMCouponRepository{db: db}
}

// GetAll lists every coupon, newest first.
func (r *GORMCouponRepository) GetAll(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

// GetByCode looks a coupon up by its case-insensitive code.
func (r *GORMCouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).First(&coupon, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("coupon", code)
		}
		return nil, fmt.Errorf("failed to get coupon %s: %w", code, err)
	}
	return &coupon, nil
}

// Create stores a new coupon; codes are unique.
func (r *GORMCouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == "" {
		coupon.ID = uuid.New().String()
	}
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Coupon{}).Where("code = ?", coupon.Code).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check coupon code %s: %w", coupon.Code, err)
	}
	if count > 0 {
		return apperrors.Conflict("coupon code %s already exists", coupon.Code)
	}
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

// UsageFor returns the per-user redemption count.
func (r *GORMCouponRepository) UsageFor(ctx context.Context, couponID, userID string) (int, error) {
	var usage models.CouponUsage
	err := r.db.WithContext(ctx).First(&usage, "coupon_id = ? AND user_id = ?", couponID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get usage of coupon %s: %w", couponID, err)
	}
	return usage.UsedCount, nil
}

// Redeem increments both counters with conditional updates so concurrent
// redemptions can never push them past their limits. Callers run it inside
// the checkout transaction; a failure rolls back whatever ran before.
func (r *GORMCouponRepository) Redeem(ctx context.Context, couponID, userID string) error {
	db := r.db.WithContext(ctx)

	res := db.Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to redeem coupon %s: %w", couponID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.CouponInvalid("coupon usage limit reached")
	}

	var coupon models.Coupon
	if err := db.Select("id", "per_user_limit").First(&coupon, "id = ?", couponID).Error; err != nil {
		return fmt.Errorf("failed to read coupon %s: %w", couponID, err)
	}

	usage := models.CouponUsage{CouponID: couponID, UserID: userID, UpdatedAt: time.Now()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&usage).Error; err != nil {
		return fmt.Errorf("failed to track usage of coupon %s: %w", couponID, err)
	}

	res = db.Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ? AND (? = 0 OR used_count < ?)", couponID, userID, coupon.PerUserLimit, coupon.PerUserLimit).
		Updates(map[string]interface{}{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to redeem coupon %s for user %s: %w", couponID, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.CouponInvalid("coupon already used the maximum number of times by this user")
	}
	return nil
}
