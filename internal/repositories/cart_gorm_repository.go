package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

// GetByUserID loads the user's cart with its items in insertion order.
func (r *GORMCartRepository) GetByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	return r.get(r.db.WithContext(ctx), userID)
}

// GetByUserIDForUpdate locks the cart row (SELECT ... FOR UPDATE) before loading it.
func (r *GORMCartRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *GORMCartRepository) get(db *gorm.DB, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("cart for user", userID)
		}
		return nil, fmt.Errorf("failed to get cart for user %s: %w", userID, err)
	}
	return &cart, nil
}

// Save writes the cart row and replaces its items.
func (r *GORMCartRepository) Save(ctx context.Context, cart *models.Cart) error {
	if cart.ID == "" {
		cart.ID = uuid.New().String()
	}
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	for i := range cart.Items {
		if cart.Items[i].ID == "" {
			cart.Items[i].ID = uuid.New().String()
		}
		cart.Items[i].CartID = cart.ID
		cart.Items[i].Position = i
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(cart).Error; err != nil {
			return fmt.Errorf("failed to save cart %s: %w", cart.ID, err)
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear items of cart %s: %w", cart.ID, err)
		}
		if len(cart.Items) == 0 {
			return nil
		}
		if err := tx.Create(&cart.Items).Error; err != nil {
			return fmt.Errorf("failed to save items of cart %s: %w", cart.ID, err)
		}
		return nil
	})
}
