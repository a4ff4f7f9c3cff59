package handlers

import (
	"errors"
	"log"

	"storefront/internal/apperrors"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindCouponInvalid, apperrors.KindSignatureMismatch:
		return fiber.StatusBadRequest
	case apperrors.KindUnauthorized:
		return fiber.StatusForbidden
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindInsufficientStock, apperrors.KindInvalidTransition, apperrors.KindConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as a JSON failure body under message.
func respondError(c *fiber.Ctx, message string, err error) error {
	return respondOrderError(c, message, err, nil)
}

// respondOrderError is respondError for order mutations: the unchanged order
// is echoed back so the client can refresh its view.
func respondOrderError(c *fiber.Ctx, message string, err error, order *models.Order) error {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)
	if status == fiber.StatusInternalServerError {
		log.Printf("%s: %v", message, err)
	}

	body := fiber.Map{
		"message": message,
		"error":   err.Error(),
		"kind":    kind,
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperrors.KindInsufficientStock:
			body["product_id"] = appErr.ProductID
			body["requested"] = appErr.Requested
			body["available"] = appErr.Available
		case apperrors.KindCouponInvalid:
			body["reason"] = appErr.Reason
		}
	}
	if order != nil {
		body["order"] = order
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx, err error) error {
	log.Printf("Error parsing request body: %v", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
		"kind":    apperrors.KindValidation,
	})
}

// actor reads the identity claim set by middleware.AuthRequired.
func actor(c *fiber.Ctx) services.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}
