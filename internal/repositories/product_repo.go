package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductRepository defines the interface for product data access.
// Stock changes go through InventoryLedger, never through Update.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

// InventoryLedger owns per-product stock counts.
type InventoryLedger interface {
	// Reserve decrements stock by qty in a single conditional update. It fails
	// with apperrors.ErrInsufficientStock when fewer than qty units remain.
	Reserve(ctx context.Context, productID string, qty int) error
	// Release increments stock by qty.
	Release(ctx context.Context, productID string, qty int) error
}
