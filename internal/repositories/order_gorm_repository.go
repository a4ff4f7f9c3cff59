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

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func (r *GORMOrderRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("seq") })
}

// GetAll retrieves every order, newest first.
func (r *GORMOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.preloaded(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByID retrieves a single order with its items and history.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(r.preloaded(ctx), "id", id)
}

// GetByIDForUpdate locks the order row (SELECT ... FOR UPDATE) before loading it.
func (r *GORMOrderRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return r.first(r.preloaded(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id", id)
}

// GetByTrackingNumber retrieves the order carrying the tracking number.
func (r *GORMOrderRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	return r.first(r.preloaded(ctx), "tracking_number", trackingNumber)
}

// GetByGatewayPaymentID retrieves the order settled by the gateway payment.
func (r *GORMOrderRepository) GetByGatewayPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return r.first(r.preloaded(ctx), "gateway_payment_id", paymentID)
}

func (r *GORMOrderRepository) first(db *gorm.DB, column, value string) (*models.Order, error) {
	var order models.Order
	if err := db.First(&order, column+" = ?", value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order", value)
		}
		return nil, fmt.Errorf("failed to get order by %s %s: %w", column, value, err)
	}
	return &order, nil
}

// ListByUser returns the orders placed by userID, newest first.
func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.preloaded(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders of user %s: %w", userID, err)
	}
	return orders, nil
}

// ListBySeller returns the orders containing at least one item sold by sellerID.
func (r *GORMOrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	var orders []models.Order
	sub := r.db.WithContext(ctx).Model(&models.OrderItem{}).Select("order_id").Where("seller_id = ?", sellerID)
	if err := r.preloaded(ctx).Where("id IN (?)", sub).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders of seller %s: %w", sellerID, err)
	}
	return orders, nil
}

// Create inserts the order with its items and initial history.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
		order.Items[i].Position = i
	}
	assignEventIDs(order)

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// Update saves the order row and its items, then inserts new history entries.
func (r *GORMOrderRepository) Update(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now()
	fresh := assignEventIDs(order)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Conflict("gateway payment already settled another order")
			}
			return fmt.Errorf("failed to update order %s: %w", order.ID, err)
		}
		for i := range order.Items {
			if err := tx.Save(&order.Items[i]).Error; err != nil {
				return fmt.Errorf("failed to update item %s of order %s: %w", order.Items[i].ID, order.ID, err)
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return fmt.Errorf("failed to append status history of order %s: %w", order.ID, err)
		}
		return nil
	})
}

// assignEventIDs gives new history entries an ID and returns copies of them.
func assignEventIDs(order *models.Order) []models.OrderStatusEvent {
	var fresh []models.OrderStatusEvent
	for i := range order.StatusHistory {
		event := &order.StatusHistory[i]
		if event.ID != "" {
			continue
		}
		event.ID = uuid.New().String()
		event.OrderID = order.ID
		event.Seq = i
		fresh = append(fresh, *event)
	}
	return fresh
}
