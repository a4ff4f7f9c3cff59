package services_test

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "test_jwt_secret", time.Hour)
	ctx := context.Background()

	user := &models.User{Username: "testuser", Email: "test@example.com", Password: "password123"}
	mockRepo.On("GetByUsername", "testuser").Return(nil, apperrors.NotFound("user", "testuser")).Once()
	mockRepo.On("GetByEmail", "test@example.com").Return(nil, apperrors.NotFound("user", "test@example.com")).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := authService.RegisterUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// Username already taken
	mockRepo.On("GetByUsername", "taken").Return(&models.User{Username: "taken"}, nil).Once()
	err = authService.RegisterUser(ctx, &models.User{Username: "taken", Email: "x@example.com", Password: "password123"})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	// Admins cannot self-register
	err = authService.RegisterUser(ctx, &models.User{Username: "boss", Email: "boss@example.com", Password: "password123", Role: models.RoleAdmin})
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "test_jwt_secret", time.Hour)
	ctx := context.Background()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	stored := &models.User{ID: "u-1", Username: "vendor1", Password: string(hashed), Role: models.RoleVendor}
	mockRepo.On("GetByUsername", "vendor1").Return(stored, nil)
	mockRepo.On("GetByUsername", "ghost").Return(nil, apperrors.NotFound("user", "ghost"))

	token, err := authService.LoginUser(ctx, "vendor1", "password123")
	require.NoError(t, err)

	actor, err := authService.ActorFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, services.Actor{UserID: "u-1", Role: models.RoleVendor}, actor)

	_, err = authService.LoginUser(ctx, "vendor1", "wrong")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	_, err = authService.LoginUser(ctx, "ghost", "password123")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), "test_jwt_secret", time.Hour)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-1",
		"role":    models.RoleCustomer,
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	expiredString, err := expired.SignedString([]byte("test_jwt_secret"))
	require.NoError(t, err)
	_, err = authService.ValidateToken(expiredString)
	assert.Error(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-1",
		"role":    models.RoleAdmin,
		"exp":     time.Now().Add(time.Minute).Unix(),
	})
	forgedString, err := forged.SignedString([]byte("someone_else"))
	require.NoError(t, err)
	_, err = authService.ActorFromToken(forgedString)
	assert.Error(t, err)

	token, err := authService.IssueToken(&models.User{ID: "u-2", Username: "x", Role: "superuser"})
	require.NoError(t, err)
	_, err = authService.ActorFromToken(token)
	assert.Error(t, err, "unknown roles are rejected")
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "test_jwt_secret", time.Hour)
	ctx := context.Background()

	mockRepo.On("GetByUsername", "admin").Return(nil, apperrors.NotFound("user", "admin")).Twice()
	mockRepo.On("GetByEmail", "admin@localhost").Return(nil, apperrors.NotFound("user", "admin@localhost")).Once()
	mockRepo.On("Create", mock.MatchedBy(func(u *models.User) bool { return u.Role == models.RoleAdmin })).Return(nil).Once()

	require.NoError(t, authService.EnsureAdmin(ctx, "admin", "", "s3cret!"))
	mockRepo.AssertExpectations(t)

	// Nothing configured: nothing to do.
	assert.NoError(t, authService.EnsureAdmin(ctx, "", "", ""))
}
