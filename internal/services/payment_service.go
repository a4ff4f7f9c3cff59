package services

import (
	"context"
	"log"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/gateway"

	"github.com/go-playground/validator/v10"
)

// PaymentGateway is the part of the gateway client the payment flow needs.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	KeyID() string
	Configured() bool
}

// VerifyPaymentRequest is the body of POST /orders/payment.
type VerifyPaymentRequest struct {
	OrderID          string `json:"order_id" validate:"required"`
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// GatewayOrder is returned to the client so it can open the gateway checkout.
type GatewayOrder struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

// PaymentService opens gateway orders and verifies payment confirmations.
type PaymentService struct {
	store    repositories.Store
	gateway  PaymentGateway
	currency string
	notifier *Notifier
	validate *validator.Validate
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(store repositories.Store, gw PaymentGateway, currency string, notifier *Notifier) *PaymentService {
	return &PaymentService{
		store:    store,
		gateway:  gw,
		currency: currency,
		notifier: notifier,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *PaymentService) requireGateway() error {
	if !s.gateway.Configured() {
		return apperrors.Internal("payment gateway is not configured", nil)
	}
	return nil
}

func checkPayable(actor Actor, order *models.Order) error {
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return apperrors.Unauthorized("not allowed to pay for order %s", order.ID)
	}
	if order.IsPaid {
		return apperrors.ErrAlreadyPaid
	}
	if order.PaymentMethod == models.PaymentCashOnDelivery {
		return apperrors.Validation("order %s is paid on delivery", order.ID)
	}
	if order.Status.Closed() {
		return apperrors.Conflict("order %s is %s", order.ID, order.Status)
	}
	return nil
}

// CreateGatewayOrder opens (or reuses) the gateway order for an unpaid order.
func (s *PaymentService) CreateGatewayOrder(ctx context.Context, actor Actor, orderID string) (*GatewayOrder, error) {
	if err := s.requireGateway(); err != nil {
		return nil, err
	}
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(actor, order); err != nil {
		return nil, err
	}

	amount := order.TotalPrice.Shift(2).Round(0).IntPart()
	result := &GatewayOrder{
		OrderID:        order.ID,
		GatewayOrderID: order.GatewayOrderID,
		Amount:         amount,
		Currency:       s.currency,
		KeyID:          s.gateway.KeyID(),
	}
	if order.GatewayOrderID != "" {
		return result, nil
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  order.TrackingNumber,
	})
	if err != nil {
		return nil, apperrors.Internal("failed to create gateway order", err)
	}

	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		locked, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkPayable(actor, locked); err != nil {
			return err
		}
		if locked.GatewayOrderID != "" {
			gwOrder.ID = locked.GatewayOrderID
			return nil
		}
		locked.GatewayOrderID = gwOrder.ID
		return tx.Orders().Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Gateway order %s opened for order %s (%d %s)", gwOrder.ID, order.ID, amount, s.currency)
	result.GatewayOrderID = gwOrder.ID
	return result, nil
}

// VerifyPayment checks the gateway signature and marks the order paid. The
// confirmation must name the gateway order opened for this order, and a
// gateway payment settles at most one order. A repeated confirmation fails
// with apperrors.ErrAlreadyPaid.
func (s *PaymentService) VerifyPayment(ctx context.Context, actor Actor, req VerifyPaymentRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := s.requireGateway(); err != nil {
		log.Printf("Payment verification refused for order %s: %v", req.OrderID, err)
		return nil, err
	}

	var paid *models.Order
	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if err := checkPayable(actor, order); err != nil {
			return err
		}
		if order.GatewayOrderID == "" {
			return apperrors.Validation("order %s has no gateway order to confirm", order.ID)
		}
		if order.GatewayOrderID != req.GatewayOrderID {
			return apperrors.SignatureMismatch()
		}
		if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
			return apperrors.SignatureMismatch()
		}
		settled, err := tx.Orders().GetByGatewayPaymentID(ctx, req.GatewayPaymentID)
		switch {
		case err == nil:
			return apperrors.Conflict("gateway payment %s already settled order %s", req.GatewayPaymentID, settled.ID)
		case apperrors.KindOf(err) != apperrors.KindNotFound:
			return err
		}

		now := s.now()
		order.IsPaid = true
		order.PaidAt = &now
		paymentID := req.GatewayPaymentID
		order.GatewayPaymentID = &paymentID
		order.PaymentResult = &models.PaymentResult{
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
			Signature:        req.Signature,
			Status:           "captured",
			VerifiedAt:       now,
		}
		if order.Status == models.OrderStatusPending {
			order.Status = models.OrderStatusProcessing
			order.AppendStatus(models.OrderStatusProcessing, "Payment verified", actor.UserID, now)
		}
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}
		paid = order
		return nil
	})
	if err != nil {
		log.Printf("Payment verification failed for order %s: %v", req.OrderID, err)
		return nil, err
	}

	log.Printf("Order %s paid (gateway payment %s)", paid.ID, req.GatewayPaymentID)
	s.notifier.Notify(EventOrderPaid, paid, "")
	return paid, nil
}
