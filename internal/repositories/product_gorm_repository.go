package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves all products from the database.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("created_at").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update updates the catalog fields of an existing product. The stock count
// is left alone.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).Model(product).
		Select("name", "description", "image", "price", "discount_percentage", "seller_id").
		Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("product", product.ID)
	}
	return nil
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// GORMInventoryLedger keeps stock counts in the products table.
type GORMInventoryLedger struct {
	db *gorm.DB
}

// NewGORMInventoryLedger creates a ledger over the products table.
func NewGORMInventoryLedger(db *gorm.DB) *GORMInventoryLedger {
	return &GORMInventoryLedger{db: db}
}

// Reserve runs UPDATE ... SET stock_count = stock_count - qty WHERE stock_count >= qty.
// No row affected means the product is missing or short of stock.
func (l *GORMInventoryLedger) Reserve(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return apperrors.Validation("reserve quantity must be positive, got %d", qty)
	}
	res := l.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock_count >= ?", productID, qty).
		UpdateColumn("stock_count", gorm.Expr("stock_count - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to reserve stock for product %s: %w", productID, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var product models.Product
	if err := l.db.WithContext(ctx).Select("id", "name", "stock_count").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("product", productID)
		}
		return fmt.Errorf("failed to read stock for product %s: %w", productID, err)
	}
	return apperrors.InsufficientStock(productID, product.Name, qty, product.StockCount)
}

// Release adds qty back to the product's stock.
func (l *GORMInventoryLedger) Release(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return apperrors.Validation("release quantity must be positive, got %d", qty)
	}
	res := l.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock_count", gorm.Expr("stock_count + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to release stock for product %s: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("product", productID)
	}
	return nil
}
