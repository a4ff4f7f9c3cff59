package services

import (
	"context"
	"log"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// FulfillRequest is the body of PATCH /orders/:id/fulfill.
type FulfillRequest struct {
	ItemIDs      []string                 `json:"item_ids" validate:"required,min=1,dive,required"`
	Status       models.FulfillmentStatus `json:"status" validate:"required"`
	TrackingInfo string                   `json:"tracking_info" validate:"max=200"`
	Note         string                   `json:"note" validate:"max=500"`
}

// UpdateStatusRequest is the body of PUT /orders/:id/status.
type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
	Note   string             `json:"note" validate:"max=500"`
	// TrackingInfo is applied to items that ship with this change and have
	// no tracking of their own yet.
	TrackingInfo string `json:"tracking_info" validate:"max=200"`
}

// DeriveStatus computes the aggregate order status from the items. Only
// active items count: once all of them are delivered the order is delivered,
// once all of them have shipped it is shipped. The status never moves
// backwards and closed orders keep their status.
func DeriveStatus(current models.OrderStatus, items []models.OrderItem) models.OrderStatus {
	if current.Closed() {
		return current
	}
	active, shipped, delivered := 0, 0, 0
	for _, item := range items {
		if !item.FulfillmentStatus.Active() {
			continue
		}
		active++
		if item.FulfillmentStatus.AtLeast(models.FulfillmentShipped) {
			shipped++
		}
		if item.FulfillmentStatus == models.FulfillmentDelivered {
			delivered++
		}
	}
	switch {
	case active == 0:
		return current
	case delivered == active && current.Before(models.OrderStatusDelivered):
		return models.OrderStatusDelivered
	case shipped == active && current.Before(models.OrderStatusShipped):
		return models.OrderStatusShipped
	}
	return current
}

// FulfillmentService applies item and order level status changes.
type FulfillmentService struct {
	store    repositories.Store
	notifier *Notifier
	validate *validator.Validate
	now      func() time.Time
}

// NewFulfillmentService creates a new FulfillmentService.
func NewFulfillmentService(store repositories.Store, notifier *Notifier) *FulfillmentService {
	return &FulfillmentService{
		store:    store,
		notifier: notifier,
		validate: validator.New(),
		now:      time.Now,
	}
}

// mutate loads the order under lock, applies fn and saves it in one
// transaction. On failure it returns the order as it was before fn ran.
func (s *FulfillmentService) mutate(ctx context.Context, orderID string, fn func(tx repositories.Store, order *models.Order) error) (*models.Order, *models.Order, error) {
	var before, after *models.Order
	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		snapshot := order.Clone()
		before = &snapshot
		if err := fn(tx, order); err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}
		after = order
		return nil
	})
	if err != nil {
		return before, nil, err
	}
	return before, after, nil
}

// Fulfill moves a batch of items to a new fulfillment status. Vendors may only
// touch their own items; admins may touch any. Tracking info is required when
// shipping. Afterwards the order status is re-derived.
func (s *FulfillmentService) Fulfill(ctx context.Context, actor Actor, orderID string, req FulfillRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !req.Status.Valid() {
		return nil, apperrors.Validation("unknown fulfillment status %q", req.Status)
	}
	req.TrackingInfo = strings.TrimSpace(req.TrackingInfo)
	if req.Status == models.FulfillmentShipped && req.TrackingInfo == "" {
		return nil, apperrors.Validation("tracking info is required when shipping items")
	}

	var previous models.OrderStatus
	before, after, err := s.mutate(ctx, orderID, func(tx repositories.Store, order *models.Order) error {
		if !actor.IsAdmin() && !(actor.IsVendor() && order.HasSeller(actor.UserID)) {
			return apperrors.Unauthorized("not allowed to fulfill order %s", orderID)
		}
		if order.Status.Closed() {
			return apperrors.InvalidTransition(string(order.Status), string(req.Status))
		}

		now := s.now()
		seen := make(map[string]bool, len(req.ItemIDs))
		for _, id := range req.ItemIDs {
			if seen[id] {
				continue
			}
			seen[id] = true

			idx := findOrderItem(order, id)
			if idx < 0 {
				return apperrors.NotFound("order item", id)
			}
			item := &order.Items[idx]
			if !actor.IsAdmin() && item.SellerID != actor.UserID {
				return apperrors.Unauthorized("item %s belongs to another vendor", id)
			}
			if !item.FulfillmentStatus.CanTransitionTo(req.Status) {
				return apperrors.InvalidTransition(string(item.FulfillmentStatus), string(req.Status))
			}
			if err := s.setItemStatus(ctx, tx, item, req.Status, req.TrackingInfo, now); err != nil {
				return err
			}
		}

		previous = order.Status
		if next := DeriveStatus(order.Status, order.Items); next != order.Status {
			order.Status = next
			note := req.Note
			if note == "" {
				note = "All items " + string(next)
			}
			order.AppendStatus(next, note, actor.UserID, now)
		}
		return nil
	})
	if err != nil {
		return before, err
	}

	log.Printf("Order %s: %d item(s) marked %s by %s", orderID, len(req.ItemIDs), req.Status, actor.UserID)
	if after.Status != previous {
		s.notifier.Notify(EventStatusChanged, after, "")
	}
	return after, nil
}

// setItemStatus applies a fulfillment status to one item and releases its
// stock the first time it leaves the active set.
func (s *FulfillmentService) setItemStatus(ctx context.Context, tx repositories.Store, item *models.OrderItem, status models.FulfillmentStatus, trackingInfo string, now time.Time) error {
	item.FulfillmentStatus = status
	switch status {
	case models.FulfillmentShipped:
		item.TrackingInfo = trackingInfo
		item.ShippedAt = &now
	case models.FulfillmentDelivered:
		if item.ShippedAt == nil {
			item.ShippedAt = &now
		}
		item.DeliveredAt = &now
	case models.FulfillmentCancelled, models.FulfillmentReturned:
		return releaseItem(ctx, tx, item)
	}
	return nil
}

func releaseItem(ctx context.Context, tx repositories.Store, item *models.OrderItem) error {
	if item.StockReleased {
		return nil
	}
	if err := tx.Inventory().Release(ctx, item.ProductID, item.Quantity); err != nil {
		return err
	}
	item.StockReleased = true
	return nil
}

func findOrderItem(order *models.Order, itemID string) int {
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// UpdateOrderStatus sets the order-level status. Admins may always do so; a
// vendor only when every item of the order is theirs. Items that lag behind
// the new status follow it, and stock is restored once when the order is
// cancelled or returned. Items shipped this way need tracking info, either
// their own or the one in req.
func (s *FulfillmentService) UpdateOrderStatus(ctx context.Context, actor Actor, orderID string, req UpdateStatusRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !req.Status.Valid() {
		return nil, apperrors.Validation("unknown order status %q", req.Status)
	}

	before, after, err := s.mutate(ctx, orderID, func(tx repositories.Store, order *models.Order) error {
		if !actor.IsAdmin() && !(actor.IsVendor() && order.SoldEntirelyBy(actor.UserID)) {
			return apperrors.Unauthorized("not allowed to change the status of order %s", orderID)
		}
		return s.transition(ctx, tx, order, req.Status, req.Note, strings.TrimSpace(req.TrackingInfo), actor.UserID)
	})
	if err != nil {
		return before, err
	}

	log.Printf("Order %s moved from %s to %s by %s", orderID, before.Status, after.Status, actor.UserID)
	s.notifyTransition(after)
	return after, nil
}

// Cancel cancels the order on behalf of its owner or an admin.
func (s *FulfillmentService) Cancel(ctx context.Context, actor Actor, orderID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return nil, apperrors.Validation("cancellation reason is too long")
	}

	before, after, err := s.mutate(ctx, orderID, func(tx repositories.Store, order *models.Order) error {
		if !actor.IsAdmin() && order.UserID != actor.UserID {
			return apperrors.Unauthorized("not allowed to cancel order %s", orderID)
		}
		if !order.Status.Cancellable() {
			return apperrors.InvalidTransition(string(order.Status), string(models.OrderStatusCancelled))
		}
		if reason == "" {
			reason = "Cancelled by " + actor.Role
		}
		order.CancelReason = reason
		if order.Notes == "" {
			order.Notes = "Cancellation reason: " + reason
		} else {
			order.Notes += "\nCancellation reason: " + reason
		}
		return s.transition(ctx, tx, order, models.OrderStatusCancelled, reason, "", actor.UserID)
	})
	if err != nil {
		return before, err
	}

	log.Printf("Order %s cancelled by %s: %s", orderID, actor.UserID, reason)
	s.notifyTransition(after)
	return after, nil
}

// transition validates and applies an order-level status change. Items it
// ships without tracking of their own get trackingInfo, which must then be set.
func (s *FulfillmentService) transition(ctx context.Context, tx repositories.Store, order *models.Order, status models.OrderStatus, note, trackingInfo, by string) error {
	if !order.Status.CanTransitionTo(status) {
		return apperrors.InvalidTransition(string(order.Status), string(status))
	}

	now := s.now()
	for i := range order.Items {
		item := &order.Items[i]
		if !item.FulfillmentStatus.Active() {
			continue
		}
		tracking := item.TrackingInfo
		if tracking == "" {
			tracking = trackingInfo
		}
		shipsNow := !item.FulfillmentStatus.AtLeast(models.FulfillmentShipped) &&
			(status == models.OrderStatusShipped || status == models.OrderStatusDelivered)
		if shipsNow && tracking == "" {
			return apperrors.Validation("tracking info is required when shipping items")
		}

		var err error
		switch status {
		case models.OrderStatusShipped:
			if shipsNow {
				err = s.setItemStatus(ctx, tx, item, models.FulfillmentShipped, tracking, now)
			}
		case models.OrderStatusDelivered:
			if item.FulfillmentStatus != models.FulfillmentDelivered {
				item.TrackingInfo = tracking
				err = s.setItemStatus(ctx, tx, item, models.FulfillmentDelivered, tracking, now)
			}
		case models.OrderStatusCancelled:
			err = s.setItemStatus(ctx, tx, item, models.FulfillmentCancelled, "", now)
		case models.OrderStatusReturned:
			target := models.FulfillmentCancelled
			if item.FulfillmentStatus.AtLeast(models.FulfillmentShipped) {
				target = models.FulfillmentReturned
			}
			err = s.setItemStatus(ctx, tx, item, target, "", now)
		}
		if err != nil {
			return err
		}
	}

	switch status {
	case models.OrderStatusCancelled:
		order.CancelledAt = &now
	case models.OrderStatusReturned:
		order.ReturnedAt = &now
	case models.OrderStatusRefunded:
		order.RefundedAt = &now
	}
	order.Status = status
	order.AppendStatus(status, note, by, now)
	return nil
}

func (s *FulfillmentService) notifyTransition(order *models.Order) {
	s.notifier.Notify(EventStatusChanged, order, "")
	if order.IsPaid && (order.Status == models.OrderStatusCancelled || order.Status == models.OrderStatusReturned) {
		s.notifier.Notify(EventRefundRequired, order, order.CancelReason)
	}
}
