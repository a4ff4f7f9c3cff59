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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutRequest is the body of POST /orders.
type CheckoutRequest struct {
	ShippingAddress *models.Address `json:"shipping_address" validate:"required"`
	BillingAddress  *models.Address `json:"billing_address" validate:"omitempty"`
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=card paypal gateway cash-on-delivery"`
	CouponCode      string          `json:"coupon_code" validate:"omitempty,max=50"`
	Notes           string          `json:"notes" validate:"max=500"`
}

// OrderService turns carts into orders and serves the order read paths.
type OrderService struct {
	store    repositories.Store
	pricing  PricingRules
	notifier *Notifier
	validate *validator.Validate
	now      func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(store repositories.Store, pricing PricingRules, notifier *Notifier) *OrderService {
	return &OrderService{
		store:    store,
		pricing:  pricing,
		notifier: notifier,
		validate: validator.New(),
		now:      time.Now,
	}
}

// NewTrackingNumber returns "TRK-" followed by a time-ordered UUIDv7 in hex.
// Uniqueness is also enforced by the storage layer.
func NewTrackingNumber() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate tracking number: %w", err)
	}
	return "TRK-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")), nil
}

// Checkout converts the user's cart into an order. The cart is locked and
// re-read inside the transaction, so a repeated submit finds it empty. The
// order is persisted, stock reserved, the coupon redeemed and the cart
// cleared, or none of it happens.
func (s *OrderService) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	trackingNumber, err := NewTrackingNumber()
	if err != nil {
		return nil, err
	}

	var (
		order *models.Order
		note  string
	)
	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		cart, err := tx.Carts().GetByUserIDForUpdate(ctx, userID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return apperrors.ErrEmptyCart
		}

		var coupon *models.Coupon
		order, coupon, note, err = s.buildOrder(ctx, tx, userID, cart, req)
		if err != nil {
			return err
		}
		order.TrackingNumber = trackingNumber

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		for _, item := range order.Items {
			if err := tx.Inventory().Reserve(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if coupon != nil {
			if err := tx.Coupons().Redeem(ctx, coupon.ID, userID); err != nil {
				return err
			}
		}
		cart.Clear()
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		log.Printf("Checkout failed for user %s: %v", userID, err)
		return nil, err
	}

	log.Printf("Order %s (%s) created for user %s, total %s", order.ID, order.TrackingNumber, userID, order.TotalPrice.StringFixed(2))
	s.notifier.Notify(EventOrderCreated, order, note)
	return order, nil
}

// buildOrder prices the locked cart snapshot against live product and coupon
// state and returns the unsaved order with its opening history entry.
func (s *OrderService) buildOrder(ctx context.Context, store repositories.Store, userID string, cart *models.Cart, req CheckoutRequest) (*models.Order, *models.Coupon, string, error) {
	items, itemsPrice, err := priceLines(ctx, store, cart)
	if err != nil {
		return nil, nil, "", err
	}

	now := s.now()
	code := req.CouponCode
	if code == "" {
		code = cart.CouponCode
	}
	var (
		coupon   *models.Coupon
		discount = decimal.Zero
	)
	if code != "" {
		coupon, discount, err = resolveCoupon(ctx, store, userID, code, itemsPrice, now)
		if err != nil {
			return nil, nil, "", err
		}
	}

	pricing := PriceOrder(itemsPrice, discount, s.pricing)

	billing := *req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	order := &models.Order{
		UserID:          userID,
		Items:           items,
		ShippingAddress: *req.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      pricing.ItemsPrice,
		TaxPrice:        pricing.TaxPrice,
		ShippingPrice:   pricing.ShippingPrice,
		DiscountAmount:  pricing.DiscountAmount,
		TotalPrice:      pricing.TotalPrice,
		Status:          models.OrderStatusPending,
		Notes:           req.Notes,
	}
	note := "Order placed"
	if req.PaymentMethod == models.PaymentCashOnDelivery {
		order.Status = models.OrderStatusProcessing
		note = "Order placed with cash on delivery"
	}
	if coupon != nil {
		order.CouponID = coupon.ID
		order.CouponCode = coupon.Code
	}
	order.AppendStatus(order.Status, note, userID, now)
	return order, coupon, note, nil
}

// priceLines checks every cart line against live product state and prices it
// at the current effective price. Demand for the same product is summed
// across variants before the stock check.
func priceLines(ctx context.Context, store repositories.Store, cart *models.Cart) ([]models.OrderItem, decimal.Decimal, error) {
	products := make(map[string]*models.Product)
	demand := make(map[string]int)
	for _, line := range cart.Items {
		if line.Quantity < 1 {
			return nil, decimal.Zero, apperrors.Validation("cart line %s has an invalid quantity %d", line.ID, line.Quantity)
		}
		if _, seen := products[line.ProductID]; !seen {
			product, err := store.Products().GetByID(ctx, line.ProductID)
			if err != nil {
				return nil, decimal.Zero, err
			}
			products[line.ProductID] = product
		}
		demand[line.ProductID] += line.Quantity
	}
	for id, qty := range demand {
		if p := products[id]; p.StockCount < qty {
			return nil, decimal.Zero, apperrors.InsufficientStock(p.ID, p.Name, qty, p.StockCount)
		}
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	itemsPrice := decimal.Zero
	for _, line := range cart.Items {
		p := products[line.ProductID]
		unit := p.EffectivePrice()
		total := unit.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		items = append(items, models.OrderItem{
			ProductID:         p.ID,
			SellerID:          p.SellerID,
			Name:              p.Name,
			Image:             p.Image,
			Quantity:          line.Quantity,
			UnitPrice:         unit,
			Variant:           append(models.Variant(nil), line.Variant...),
			Total:             total,
			FulfillmentStatus: models.FulfillmentPending,
		})
		itemsPrice = itemsPrice.Add(total)
	}
	return items, itemsPrice, nil
}

// GetOrder returns the order to its owner or an admin. A vendor with items in
// the order sees only those items.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID string) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin(), order.UserID == actor.UserID:
		return order, nil
	case actor.IsVendor() && order.HasSeller(actor.UserID):
		view := order.ForSeller(actor.UserID)
		return &view, nil
	}
	return nil, apperrors.Unauthorized("not allowed to view order %s", orderID)
}

// MyOrders lists the orders placed by userID.
func (s *OrderService) MyOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.Orders().ListByUser(ctx, userID)
}

// VendorOrders lists the orders containing the vendor's items, each reduced
// to those items.
func (s *OrderService) VendorOrders(ctx context.Context, vendorID string) ([]models.Order, error) {
	orders, err := s.store.Orders().ListBySeller(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i] = orders[i].ForSeller(vendorID)
	}
	return orders, nil
}

// ListOrders lists every order. Admin only.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor) ([]models.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Unauthorized("only admins can list all orders")
	}
	return s.store.Orders().GetAll(ctx)
}

// TrackedItem is the public view of an order item.
type TrackedItem struct {
	Name              string                   `json:"name"`
	Quantity          int                      `json:"quantity"`
	FulfillmentStatus models.FulfillmentStatus `json:"fulfillment_status"`
	TrackingInfo      string                   `json:"tracking_info,omitempty"`
	ShippedAt         *time.Time               `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time               `json:"delivered_at,omitempty"`
}

// TrackingView is what GET /orders/track exposes without authentication.
type TrackingView struct {
	TrackingNumber string                    `json:"tracking_number"`
	Status         models.OrderStatus        `json:"status"`
	IsPaid         bool                      `json:"is_paid"`
	Items          []TrackedItem             `json:"items"`
	StatusHistory  []models.OrderStatusEvent `json:"status_history"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// Track looks an order up by tracking number.
func (s *OrderService) Track(ctx context.Context, trackingNumber string) (*TrackingView, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, apperrors.Validation("tracking number is required")
	}
	order, err := s.store.Orders().GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	view := &TrackingView{
		TrackingNumber: order.TrackingNumber,
		Status:         order.Status,
		IsPaid:         order.IsPaid,
		Items:          make([]TrackedItem, 0, len(order.Items)),
		StatusHistory:  make([]models.OrderStatusEvent, 0, len(order.StatusHistory)),
		CreatedAt:      order.CreatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, TrackedItem{
			Name:              item.Name,
			Quantity:          item.Quantity,
			FulfillmentStatus: item.FulfillmentStatus,
			TrackingInfo:      item.TrackingInfo,
			ShippedAt:         item.ShippedAt,
			DeliveredAt:       item.DeliveredAt,
		})
	}
	for _, event := range order.StatusHistory {
		event.UpdatedBy = ""
		view.StatusHistory = append(view.StatusHistory, event)
	}
	return view, nil
}
