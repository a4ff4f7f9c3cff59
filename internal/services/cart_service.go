package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// AddToCartRequest is the body of POST /cart.
type AddToCartRequest struct {
	ProductID string         `json:"product_id" validate:"required"`
	Quantity  int            `json:"quantity" validate:"min=1"`
	Variant   models.Variant `json:"selected_variant" validate:"omitempty,dive"`
}

// UpdateCartItemRequest is the body of PUT /cart/items.
type UpdateCartItemRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

// CartService handles the per-user cart.
type CartService struct {
	store    repositories.Store
	validate *validator.Validate
	now      func() time.Time
}

// NewCartService creates a new CartService.
func NewCartService(store repositories.Store) *CartService {
	return &CartService{
		store:    store,
		validate: validator.New(),
		now:      time.Now,
	}
}

// GetCart returns the user's cart, or an empty one if none was created yet.
func (s *CartService) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	return s.load(ctx, userID)
}

func (s *CartService) load(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.store.Carts().GetByUserID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		cart = &models.Cart{UserID: userID, Items: []models.CartItem{}}
		cart.Recalculate()
		return cart, nil
	}
	return cart, err
}

// AddItem adds qty of a product to the cart, merging with a line of the same
// product and variant. The price is snapshotted at the effective price.
func (s *CartService) AddItem(ctx context.Context, userID string, req AddToCartRequest) (*models.Cart, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	product, err := s.store.Products().GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindLine(product.ID, req.Variant)
	wanted := req.Quantity
	if idx >= 0 {
		wanted += cart.Items[idx].Quantity
	}
	if product.StockCount < wanted {
		return nil, apperrors.InsufficientStock(product.ID, product.Name, wanted, product.StockCount)
	}

	price := product.EffectivePrice()
	if idx >= 0 {
		cart.Items[idx].Quantity = wanted
		cart.Items[idx].UnitPrice = price
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: product.ID,
			Quantity:  req.Quantity,
			Variant:   req.Variant,
			UnitPrice: price,
			AddedAt:   s.now(),
		})
	}
	return s.save(ctx, cart)
}

// UpdateItem sets the quantity of a cart line.
func (s *CartService) UpdateItem(ctx context.Context, userID string, req UpdateCartItemRequest) (*models.Cart, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := cart.FindItem(req.ItemID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", req.ItemID)
	}
	product, err := s.store.Products().GetByID(ctx, cart.Items[idx].ProductID)
	if err != nil {
		return nil, err
	}
	if product.StockCount < req.Quantity {
		return nil, apperrors.InsufficientStock(product.ID, product.Name, req.Quantity, product.StockCount)
	}
	cart.Items[idx].Quantity = req.Quantity
	return s.save(ctx, cart)
}

// RemoveItem deletes a cart line.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*models.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := cart.FindItem(itemID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", itemID)
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.save(ctx, cart)
}

// Clear empties the cart and drops its coupon.
func (s *CartService) Clear(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart.Clear()
	if err := s.store.Carts().Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ApplyCoupon attaches a coupon to the cart once it evaluates as valid.
func (s *CartService) ApplyCoupon(ctx context.Context, userID, code string) (*models.Cart, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperrors.Validation("coupon code is required")
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, apperrors.ErrEmptyCart
	}
	cart.Recalculate()
	coupon, discount, err := resolveCoupon(ctx, s.store, userID, code, cart.Subtotal(), s.now())
	if err != nil {
		return nil, err
	}
	cart.CouponCode = coupon.Code
	cart.DiscountAmount = discount
	cart.Recalculate()
	if err := s.store.Carts().Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveCoupon detaches the cart's coupon.
func (s *CartService) RemoveCoupon(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart.CouponCode = ""
	cart.DiscountAmount = decimal.Zero
	cart.Recalculate()
	if err := s.store.Carts().Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// save recomputes totals, re-evaluates an attached coupon against the new
// subtotal and persists the cart.
func (s *CartService) save(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.Recalculate()
	if cart.CouponCode != "" {
		_, discount, err := resolveCoupon(ctx, s.store, cart.UserID, cart.CouponCode, cart.Subtotal(), s.now())
		switch {
		case err == nil:
			cart.DiscountAmount = discount
		case errors.Is(err, apperrors.ErrCouponInvalid), errors.Is(err, apperrors.ErrNotFound):
			log.Printf("Dropping coupon %s from cart of user %s: %v", cart.CouponCode, cart.UserID, err)
			cart.CouponCode = ""
			cart.DiscountAmount = decimal.Zero
		default:
			return nil, err
		}
		cart.Recalculate()
	}
	if err := s.store.Carts().Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}
