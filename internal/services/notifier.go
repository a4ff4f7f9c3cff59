package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"storefront/internal/models"
)

// Order event types.
const (
	EventOrderCreated   = "order.created"
	EventStatusChanged  = "order.status_changed"
	EventOrderPaid      = "order.paid"
	EventRefundRequired = "order.refund_required"
)

// EventPublisher sends an encoded event to a broker.
type EventPublisher interface {
	Publish(body []byte) error
}

// OrderEvent is the message published for every order lifecycle change.
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        string             `json:"order_id"`
	UserID         string             `json:"user_id"`
	TrackingNumber string             `json:"tracking_number"`
	Status         models.OrderStatus `json:"status"`
	IsPaid         bool               `json:"is_paid"`
	Total          string             `json:"total"`
	Note           string             `json:"note,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// Notifier forwards order events to a publisher. Delivery is fire-and-forget:
// failures are logged and never reach the caller. A nil Notifier or one
// without a publisher does nothing.
type Notifier struct {
	publisher EventPublisher
}

// NewNotifier creates a Notifier over publisher.
func NewNotifier(publisher EventPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Notify publishes an event of eventType for order.
func (n *Notifier) Notify(eventType string, order *models.Order, note string) {
	if n == nil || n.publisher == nil || order == nil {
		return
	}
	event := OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		UserID:         order.UserID,
		TrackingNumber: order.TrackingNumber,
		Status:         order.Status,
		IsPaid:         order.IsPaid,
		Total:          order.TotalPrice.StringFixed(2),
		Note:           note,
		OccurredAt:     time.Now(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", eventType, order.ID, err)
		return
	}
	if err := n.publisher.Publish(body); err != nil {
		log.Printf("Warning: Failed to publish %s event for order %s: %v", eventType, order.ID, err)
		return
	}
	log.Printf("Published %s event for order %s", eventType, order.ID)
}

// HandleOrderEvent is the consumer side of the notification hook. It decodes
// an event and logs the notification that would be sent to the customer.
func HandleOrderEvent(body []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode order event: %w", err)
	}
	if event.Type == "" || event.OrderID == "" {
		return fmt.Errorf("order event is missing its type or order id")
	}
	switch event.Type {
	case EventRefundRequired:
		log.Printf("Refund required for order %s (%s, total %s)", event.OrderID, event.TrackingNumber, event.Total)
	default:
		log.Printf("Notify user %s: order %s is %s (%s)", event.UserID, event.TrackingNumber, event.Status, event.Type)
	}
	return nil
}
