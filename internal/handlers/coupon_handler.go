package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// CouponHandler manages coupons and previews them against a cart.
type CouponHandler struct {
	coupons *services.CouponService
	carts   *services.CartService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(coupons *services.CouponService, carts *services.CartService) *CouponHandler {
	return &CouponHandler{coupons: coupons, carts: carts}
}

// RegisterRoutes registers the coupon routes. Managing coupons is admin only.
func (h *CouponHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	couponRoutes := router.Group("/coupons", auth)
	couponRoutes.Post("/validate", h.HandleValidate)
	couponRoutes.Post("/", middleware.RequireRole(models.RoleAdmin), h.HandleCreate)
	couponRoutes.Get("/", middleware.RequireRole(models.RoleAdmin), h.HandleList)
}

// ValidateCouponRequest is the body of POST /coupons/validate. Without a
// cart total the caller's current cart subtotal is used.
type ValidateCouponRequest struct {
	Code      string           `json:"code"`
	CartTotal *decimal.Decimal `json:"cart_total"`
}

func (h *CouponHandler) HandleValidate(c *fiber.Ctx) error {
	var req ValidateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	userID := actor(c).UserID

	var total decimal.Decimal
	if req.CartTotal != nil {
		total = *req.CartTotal
	} else {
		cart, err := h.carts.GetCart(c.UserContext(), userID)
		if err != nil {
			return respondError(c, "Could not validate coupon", err)
		}
		total = cart.Subtotal()
	}

	evaluation, err := h.coupons.ValidateCoupon(c.UserContext(), userID, req.Code, total)
	if err != nil {
		return respondError(c, "Could not validate coupon", err)
	}
	return c.JSON(evaluation)
}

func (h *CouponHandler) HandleCreate(c *fiber.Ctx) error {
	var coupon models.Coupon
	if err := c.BodyParser(&coupon); err != nil {
		return badBody(c, err)
	}
	if err := h.coupons.CreateCoupon(c.UserContext(), &coupon); err != nil {
		return respondError(c, "Could not create coupon", err)
	}
	return c.Status(fiber.StatusCreated).JSON(coupon)
}

func (h *CouponHandler) HandleList(c *fiber.Ctx) error {
	coupons, err := h.coupons.ListCoupons(c.UserContext())
	if err != nil {
		return respondError(c, "Could not retrieve coupons", err)
	}
	return c.JSON(coupons)
}
