package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
// Orders are never deleted.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// GetByIDForUpdate loads the order and locks it for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error)
	// GetByGatewayPaymentID returns the order a gateway payment settled.
	GetByGatewayPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	// Update writes the mutable order fields and items and appends the status
	// history entries that have no ID yet. Reusing another order's gateway
	// payment id is a conflict.
	Update(ctx context.Context, order *models.Order) error
}
