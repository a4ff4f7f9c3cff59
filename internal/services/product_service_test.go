package services_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	args := m.Called()
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func TestProductService_GetAllProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expected := []models.Product{
		{ID: "1", Name: "Product A", Price: decimal.NewFromInt(10), StockCount: 100},
		{ID: "2", Name: "Product B", Price: decimal.NewFromInt(20), StockCount: 50},
	}
	mockRepo.On("GetAll").Return(expected, nil).Once()

	products, err := service.GetAllProducts(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, expected, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	mockRepo.On("GetByID", "1").Return(&models.Product{ID: "1", Name: "Product A"}, nil).Once()
	mockRepo.On("GetByID", "99").Return(nil, apperrors.NotFound("product", "99")).Once()

	product, err := service.GetProductByID(context.Background(), "1")
	assert.NoError(t, err)
	assert.Equal(t, "Product A", product.Name)

	_, err = service.GetProductByID(context.Background(), "99")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)
	vendor := services.Actor{UserID: "v-1", Role: models.RoleVendor}

	mockRepo.On("Create", mock.MatchedBy(func(p *models.Product) bool { return p.SellerID == "v-1" })).Return(nil).Once()

	product := &models.Product{Name: "Desk Lamp", Price: decimal.NewFromInt(35), StockCount: 4, SellerID: "someone-else"}
	assert.NoError(t, service.CreateProduct(context.Background(), vendor, product))
	assert.Equal(t, "v-1", product.SellerID, "vendors always sell their own products")

	err := service.CreateProduct(context.Background(), vendor, &models.Product{Name: "Free", Price: decimal.Zero})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	err = service.CreateProduct(context.Background(), vendor, &models.Product{Name: "Odd", Price: decimal.NewFromInt(5), DiscountPercentage: decimal.NewFromInt(120)})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	customer := services.Actor{UserID: "c-1", Role: models.RoleCustomer}
	err = service.CreateProduct(context.Background(), customer, &models.Product{Name: "Nope", Price: decimal.NewFromInt(5)})
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	mockRepo.AssertExpectations(t)
}
