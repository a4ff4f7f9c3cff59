package services

import (
	"context"
	"log"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ProductService is the catalog collaborator: it reads products from the same
// store the inventory ledger mutates.
type ProductService struct {
	repo     repositories.ProductRepository
	validate *validator.Validate
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo:     repo,
		validate: validator.New(),
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct lists a new product sold by the acting vendor or admin.
func (s *ProductService) CreateProduct(ctx context.Context, actor Actor, product *models.Product) error {
	if !actor.IsVendor() && !actor.IsAdmin() {
		return apperrors.Unauthorized("only vendors can list products")
	}
	if err := s.validate.Struct(product); err != nil {
		return validationError(err)
	}
	if !product.Price.IsPositive() {
		return apperrors.Validation("price must be positive")
	}
	if product.DiscountPercentage.IsNegative() || product.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return apperrors.Validation("discount percentage must be between 0 and 100")
	}
	product.ID = ""
	if actor.IsVendor() || product.SellerID == "" {
		product.SellerID = actor.UserID
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return err
	}
	log.Printf("Product %s (%s) listed by %s", product.ID, product.Name, actor.UserID)
	return nil
}
