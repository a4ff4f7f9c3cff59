package repositories

import (
	"context"

	"storefront/internal/models"
)

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	// GetByUserID returns apperrors.ErrNotFound when the user has no cart yet.
	GetByUserID(ctx context.Context, userID string) (*models.Cart, error)
	// GetByUserIDForUpdate loads the cart and locks it for the rest of the transaction.
	GetByUserIDForUpdate(ctx context.Context, userID string) (*models.Cart, error)
	// Save creates or replaces the cart together with all of its items.
	Save(ctx context.Context, cart *models.Cart) error
}
