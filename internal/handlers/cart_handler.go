package handlers

import (
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CartHandler serves the authenticated user's cart.
type CartHandler struct {
	service *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service}
}

// RegisterRoutes registers the cart routes behind auth.
func (h *CartHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	cartRoutes := router.Group("/cart", auth)
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/", h.HandleAddItem)
	cartRoutes.Delete("/", h.HandleClear)
	cartRoutes.Put("/items", h.HandleUpdateItem)
	cartRoutes.Delete("/items/:id", h.HandleRemoveItem)
	cartRoutes.Post("/coupon", h.HandleApplyCoupon)
	cartRoutes.Delete("/coupon", h.HandleRemoveCoupon)
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), actor(c).UserID)
	if err != nil {
		return respondError(c, "Could not retrieve cart", err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req services.AddToCartRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	cart, err := h.service.AddItem(c.UserContext(), actor(c).UserID, req)
	if err != nil {
		return respondError(c, "Could not add item to cart", err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req services.UpdateCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	cart, err := h.service.UpdateItem(c.UserContext(), actor(c).UserID, req)
	if err != nil {
		return respondError(c, "Could not update cart item", err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	cart, err := h.service.RemoveItem(c.UserContext(), actor(c).UserID, c.Params("id"))
	if err != nil {
		return respondError(c, "Could not remove cart item", err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleClear(c *fiber.Ctx) error {
	cart, err := h.service.Clear(c.UserContext(), actor(c).UserID)
	if err != nil {
		return respondError(c, "Could not clear cart", err)
	}
	return c.JSON(cart)
}

type couponCodeRequest struct {
	Code string `json:"code"`
}

func (h *CartHandler) HandleApplyCoupon(c *fiber.Ctx) error {
	var req couponCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	cart, err := h.service.ApplyCoupon(c.UserContext(), actor(c).UserID, req.Code)
	if err != nil {
		return respondError(c, "Could not apply coupon", err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleRemoveCoupon(c *fiber.Ctx) error {
	cart, err := h.service.RemoveCoupon(c.UserContext(), actor(c).UserID)
	if err != nil {
		return respondError(c, "Could not remove coupon", err)
	}
	return c.JSON(cart)
}
