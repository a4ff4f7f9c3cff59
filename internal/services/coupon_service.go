package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CouponEvaluation is the outcome of checking a coupon against a cart total.
type CouponEvaluation struct {
	Valid    bool            `json:"valid"`
	Discount decimal.Decimal `json:"discount"`
	Reason   string          `json:"reason,omitempty"`
}

func rejected(reason string) CouponEvaluation {
	return CouponEvaluation{Discount: decimal.Zero, Reason: reason}
}

// EvaluateCoupon runs the coupon checks in order and stops at the first
// failure. usedByUser is how many times the user already redeemed it.
// It never mutates the coupon.
func EvaluateCoupon(coupon *models.Coupon, usedByUser int, cartTotal decimal.Decimal, now time.Time) CouponEvaluation {
	switch {
	case !coupon.IsActive:
		return rejected("coupon is not active")
	case now.Before(coupon.StartDate):
		return rejected("coupon is not valid yet")
	case now.After(coupon.EndDate):
		return rejected("coupon has expired")
	case coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit:
		return rejected("coupon usage limit reached")
	case cartTotal.LessThan(coupon.MinPurchase):
		return rejected(fmt.Sprintf("minimum purchase of %s required", coupon.MinPurchase.StringFixed(2)))
	case coupon.PerUserLimit > 0 && usedByUser >= coupon.PerUserLimit:
		return rejected("coupon already used the maximum number of times by this user")
	}

	var discount decimal.Decimal
	switch coupon.Type {
	case models.CouponPercentage:
		discount = cartTotal.Mul(coupon.Value).Div(decimal.NewFromInt(100))
		if coupon.MaxDiscount.Valid && discount.GreaterThan(coupon.MaxDiscount.Decimal) {
			discount = coupon.MaxDiscount.Decimal
		}
	case models.CouponFixed:
		discount = coupon.Value
	default:
		return rejected(fmt.Sprintf("unknown coupon type %q", coupon.Type))
	}

	discount = decimal.Max(decimal.Zero, decimal.Min(discount, cartTotal))
	return CouponEvaluation{Valid: true, Discount: discount.Round(2)}
}

// resolveCoupon loads the coupon behind code and evaluates it for userID.
// An invalid coupon is reported as apperrors.CouponInvalid.
func resolveCoupon(ctx context.Context, store repositories.Store, userID, code string, total decimal.Decimal, now time.Time) (*models.Coupon, decimal.Decimal, error) {
	coupon, err := store.Coupons().GetByCode(ctx, code)
	if err != nil {
		return nil, decimal.Zero, err
	}
	used, err := store.Coupons().UsageFor(ctx, coupon.ID, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	eval := EvaluateCoupon(coupon, used, total, now)
	if !eval.Valid {
		return nil, decimal.Zero, apperrors.CouponInvalid(eval.Reason)
	}
	return coupon, eval.Discount, nil
}

// CouponService manages coupons and previews them against a cart total.
type CouponService struct {
	store    repositories.Store
	validate *validator.Validate
	now      func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(store repositories.Store) *CouponService {
	return &CouponService{
		store:    store,
		validate: validator.New(),
		now:      time.Now,
	}
}

// CreateCoupon validates and stores a new coupon under its uppercase code.
func (s *CouponService) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if err := s.validate.Struct(coupon); err != nil {
		return validationError(err)
	}
	if !coupon.Value.IsPositive() {
		return apperrors.Validation("coupon value must be positive")
	}
	if coupon.Type == models.CouponPercentage && coupon.Value.GreaterThan(decimal.NewFromInt(100)) {
		return apperrors.Validation("percentage coupon value cannot exceed 100")
	}
	if coupon.MinPurchase.IsNegative() {
		return apperrors.Validation("minimum purchase cannot be negative")
	}
	if coupon.MaxDiscount.Valid && !coupon.MaxDiscount.Decimal.IsPositive() {
		return apperrors.Validation("maximum discount must be positive when set")
	}
	coupon.UsedCount = 0

	if err := s.store.Coupons().Create(ctx, coupon); err != nil {
		return err
	}
	log.Printf("Coupon %s created (%s %s)", coupon.Code, coupon.Type, coupon.Value)
	return nil
}

// ListCoupons returns every coupon.
func (s *CouponService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	return s.store.Coupons().GetAll(ctx)
}

// ValidateCoupon previews code for userID without redeeming it.
func (s *CouponService) ValidateCoupon(ctx context.Context, userID, code string, cartTotal decimal.Decimal) (CouponEvaluation, error) {
	if strings.TrimSpace(code) == "" {
		return CouponEvaluation{}, apperrors.Validation("coupon code is required")
	}
	if cartTotal.IsNegative() {
		return CouponEvaluation{}, apperrors.Validation("cart total cannot be negative")
	}
	_, discount, err := resolveCoupon(ctx, s.store, userID, code, cartTotal, s.now())
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Kind == apperrors.KindCouponInvalid {
			return rejected(appErr.Reason), nil
		}
		return CouponEvaluation{}, err
	}
	return CouponEvaluation{Valid: true, Discount: discount}, nil
}
