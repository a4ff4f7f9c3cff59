package handlers

import (
	"log"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders, their fulfillment and payment.
type OrderHandler struct {
	orders      *services.OrderService
	fulfillment *services.FulfillmentService
	payments    *services.PaymentService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *services.OrderService, fulfillment *services.FulfillmentService, payments *services.PaymentService) *OrderHandler {
	return &OrderHandler{
		orders:      orders,
		fulfillment: fulfillment,
		payments:    payments,
	}
}

// RegisterRoutes registers the order routes. Tracking is public; everything
// else needs a token. Fixed paths are registered before /:id.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	sellers := middleware.RequireRole(models.RoleVendor, models.RoleAdmin)
	admins := middleware.RequireRole(models.RoleAdmin)

	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/track/:trackingNumber", h.HandleTrack)

	orderRoutes.Post("/", auth, h.HandleCheckout)
	orderRoutes.Get("/", auth, admins, h.HandleListOrders)
	orderRoutes.Get("/my-orders", auth, h.HandleMyOrders)
	orderRoutes.Get("/vendor", auth, sellers, h.HandleVendorOrders)
	orderRoutes.Post("/payment", auth, h.HandleVerifyPayment)
	orderRoutes.Post("/create-gateway-order", auth, h.HandleCreateGatewayOrder)

	orderRoutes.Get("/:id", auth, h.HandleGetOrderByID)
	orderRoutes.Post("/:id/cancel", auth, h.HandleCancel)
	orderRoutes.Put("/:id/status", auth, sellers, h.HandleUpdateOrderStatus)
	orderRoutes.Patch("/:id/fulfill", auth, sellers, h.HandleFulfill)
}

// HandleCheckout turns the caller's cart into an order.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	order, err := h.orders.Checkout(c.UserContext(), actor(c).UserID, req)
	if err != nil {
		return respondError(c, "Could not create order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.orders.ListOrders(c.UserContext(), actor(c))
	if err != nil {
		return respondError(c, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) HandleMyOrders(c *fiber.Ctx) error {
	orders, err := h.orders.MyOrders(c.UserContext(), actor(c).UserID)
	if err != nil {
		return respondError(c, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleVendorOrders lists orders containing the vendor's items, projected
// to those items.
func (h *OrderHandler) HandleVendorOrders(c *fiber.Ctx) error {
	orders, err := h.orders.VendorOrders(c.UserContext(), actor(c).UserID)
	if err != nil {
		return respondError(c, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.orders.GetOrder(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return respondError(c, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleTrack(c *fiber.Ctx) error {
	view, err := h.orders.Track(c.UserContext(), c.Params("trackingNumber"))
	if err != nil {
		return respondError(c, "Could not track order", err)
	}
	return c.JSON(view)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) HandleCancel(c *fiber.Ctx) error {
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
	}
	order, err := h.fulfillment.Cancel(c.UserContext(), actor(c), c.Params("id"), req.Reason)
	if err != nil {
		return respondOrderError(c, "Could not cancel order", err, order)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus moves the whole order to a new status.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var req services.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	order, err := h.fulfillment.UpdateOrderStatus(c.UserContext(), actor(c), orderID, req)
	if err != nil {
		log.Printf("Error updating order status for order %s: %v", orderID, err)
		return respondOrderError(c, "Could not update order status", err, order)
	}
	return c.JSON(order)
}

// HandleFulfill updates the fulfillment status of a batch of the vendor's items.
func (h *OrderHandler) HandleFulfill(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var req services.FulfillRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	order, err := h.fulfillment.Fulfill(c.UserContext(), actor(c), orderID, req)
	if err != nil {
		log.Printf("Error fulfilling items of order %s: %v", orderID, err)
		return respondOrderError(c, "Could not update fulfillment", err, order)
	}
	return c.JSON(order)
}

type gatewayOrderRequest struct {
	OrderID string `json:"order_id"`
}

func (h *OrderHandler) HandleCreateGatewayOrder(c *fiber.Ctx) error {
	var req gatewayOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	gwOrder, err := h.payments.CreateGatewayOrder(c.UserContext(), actor(c), req.OrderID)
	if err != nil {
		return respondError(c, "Could not create gateway order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(gwOrder)
}

// HandleVerifyPayment confirms a gateway payment for an order.
func (h *OrderHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	var req services.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	order, err := h.payments.VerifyPayment(c.UserContext(), actor(c), req)
	if err != nil {
		return respondError(c, "Payment verification failed", err)
	}
	return c.JSON(fiber.Map{
		"message": "Payment verified",
		"order":   order,
	})
}
