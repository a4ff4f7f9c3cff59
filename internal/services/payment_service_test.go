package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPayment_SucceedsOnceThenAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "25", 5)
	order := f.placeOrder(t, "u-1", map[*models.Product]int{p: 2})

	req := f.openGatewayOrder(t, customer("u-1"), order.ID, "P1")
	paid, err := f.payments.VerifyPayment(ctx, customer("u-1"), req)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, models.OrderStatusProcessing, paid.Status)
	require.NotNil(t, paid.PaymentResult)
	assert.Equal(t, "P1", paid.PaymentResult.GatewayPaymentID)
	require.NotNil(t, paid.GatewayPaymentID)
	assert.Equal(t, "P1", *paid.GatewayPaymentID)

	_, err = f.payments.VerifyPayment(ctx, customer("u-1"), req)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyPaid))

	stored, err := f.orders.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.StatusHistory, 2)
	assert.Contains(t, f.publisher.types(), services.EventOrderPaid)
}

func TestVerifyPayment_ConcurrentConfirmationsPayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "25", 5)
	order := f.placeOrder(t, "u-1", map[*models.Product]int{p: 1})
	req := f.openGatewayOrder(t, customer("u-1"), order.ID, "P1")

	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		succeeded, repeat int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.VerifyPayment(ctx, customer("u-1"), req)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, apperrors.ErrAlreadyPaid) {
				repeat++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, repeat)
}

func TestVerifyPayment_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "25", 5)
	order := f.placeOrder(t, "u-1", map[*models.Product]int{p: 1})

	valid := f.openGatewayOrder(t, customer("u-1"), order.ID, "P1")
	forged := valid
	forged.Signature = gateway.Sign("wrong_secret", valid.GatewayOrderID, "P1")
	_, err := f.payments.VerifyPayment(ctx, customer("u-1"), forged)
	assert.True(t, errors.Is(err, apperrors.ErrSignatureMismatch))

	stored, err := f.orders.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid, "a mismatch changes nothing")
	assert.Equal(t, models.OrderStatusPending, stored.Status)

	_, err = f.payments.VerifyPayment(ctx, customer("u-2"), valid)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = f.payments.VerifyPayment(ctx, customer("u-1"), services.VerifyPaymentRequest{OrderID: order.ID})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	cod := f.product(t, "v-1", "5", 5)
	f.addToCart(t, "u-3", cod.ID, 1)
	codOrder, err := f.orders.Checkout(ctx, "u-3", checkoutRequest(models.PaymentCashOnDelivery))
	require.NoError(t, err)
	codReq := valid
	codReq.OrderID = codOrder.ID
	_, err = f.payments.VerifyPayment(ctx, customer("u-3"), codReq)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestVerifyPayment_RequiresOpenedGatewayOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "25", 5)
	order := f.placeOrder(t, "u-1", map[*models.Product]int{p: 1})

	// Correctly signed, but no gateway order was ever opened for this order.
	unbound := services.VerifyPaymentRequest{
		OrderID:          order.ID,
		GatewayOrderID:   "order_elsewhere",
		GatewayPaymentID: "P1",
		Signature:        gateway.Sign("gateway_secret", "order_elsewhere", "P1"),
	}
	_, err := f.payments.VerifyPayment(ctx, customer("u-1"), unbound)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	stored, err := f.orders.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestVerifyPayment_ReplayedConfirmationCannotPayAnotherOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cheap := f.product(t, "v-1", "1", 5)
	pricey := f.product(t, "v-1", "900", 5)
	orderA := f.placeOrder(t, "u-1", map[*models.Product]int{cheap: 1})
	orderB := f.placeOrder(t, "u-1", map[*models.Product]int{pricey: 1})

	confirmA := f.openGatewayOrder(t, customer("u-1"), orderA.ID, "pay_A")
	_, err := f.payments.VerifyPayment(ctx, customer("u-1"), confirmA)
	require.NoError(t, err)

	// A's confirmation replayed against B before B has a gateway order.
	replay := confirmA
	replay.OrderID = orderB.ID
	_, err = f.payments.VerifyPayment(ctx, customer("u-1"), replay)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	// Once B has its own gateway order, A's gateway order no longer matches.
	confirmB := f.openGatewayOrder(t, customer("u-1"), orderB.ID, "pay_A")
	require.NotEqual(t, confirmA.GatewayOrderID, confirmB.GatewayOrderID)
	_, err = f.payments.VerifyPayment(ctx, customer("u-1"), replay)
	assert.True(t, errors.Is(err, apperrors.ErrSignatureMismatch))

	// A payment already settled against A cannot settle B too.
	_, err = f.payments.VerifyPayment(ctx, customer("u-1"), confirmB)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	stored, err := f.orders.GetOrder(ctx, admin, orderB.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
	assert.Equal(t, models.OrderStatusPending, stored.Status)

	// B still pays with a payment of its own.
	confirmB.GatewayPaymentID = "pay_B"
	confirmB.Signature = gateway.Sign("gateway_secret", confirmB.GatewayOrderID, "pay_B")
	paid, err := f.payments.VerifyPayment(ctx, customer("u-1"), confirmB)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
}

func TestPayments_RefusedWithoutGatewaySecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "25", 5)
	order := f.placeOrder(t, "u-1", map[*models.Product]int{p: 1})
	opened := f.openGatewayOrder(t, customer("u-1"), order.ID, "P1")

	f.gateway.secret = ""
	forged := opened
	forged.Signature = gateway.Sign("", opened.GatewayOrderID, "P1")
	_, err := f.payments.VerifyPayment(ctx, customer("u-1"), forged)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	_, err = f.payments.CreateGatewayOrder(ctx, customer("u-1"), order.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	stored, err := f.orders.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestCreateGatewayOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "50", 5)
	f.coupon(t, "SAVE10", models.CouponPercentage, "10", nil)
	f.addToCart(t, "u-1", p.ID, 2)
	req := checkoutRequest(models.PaymentGateway)
	req.CouponCode = "SAVE10"
	order, err := f.orders.Checkout(ctx, "u-1", req)
	require.NoError(t, err)

	gwOrder, err := f.payments.CreateGatewayOrder(ctx, customer("u-1"), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_gw_1", gwOrder.GatewayOrderID)
	assert.Equal(t, int64(10620), gwOrder.Amount)
	assert.Equal(t, "USD", gwOrder.Currency)
	assert.Equal(t, "key_test", gwOrder.KeyID)
	require.Len(t, f.gateway.created, 1)
	assert.Equal(t, order.TrackingNumber, f.gateway.created[0].Receipt)

	again, err := f.payments.CreateGatewayOrder(ctx, customer("u-1"), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_gw_1", again.GatewayOrderID)
	assert.Len(t, f.gateway.created, 1, "an existing gateway order is reused")

	mismatched := services.VerifyPaymentRequest{
		OrderID:          order.ID,
		GatewayOrderID:   "order_other",
		GatewayPaymentID: "pay_1",
		Signature:        gateway.Sign("gateway_secret", "order_other", "pay_1"),
	}
	_, err = f.payments.VerifyPayment(ctx, customer("u-1"), mismatched)
	assert.True(t, errors.Is(err, apperrors.ErrSignatureMismatch), "the confirmation must match the stored gateway order")

	_, err = f.payments.CreateGatewayOrder(ctx, customer("u-9"), order.ID)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = f.fulfillment.Cancel(ctx, customer("u-1"), order.ID, "")
	require.NoError(t, err)
	_, err = f.payments.CreateGatewayOrder(ctx, customer("u-1"), order.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestCancelPaidOrderRequestsRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "v-1", "25", 5)
	order := f.placeOrder(t, "u-1", map[*models.Product]int{p: 1})
	_, err := f.payments.VerifyPayment(ctx, customer("u-1"), f.openGatewayOrder(t, customer("u-1"), order.ID, "P1"))
	require.NoError(t, err)

	_, err = f.fulfillment.Cancel(ctx, customer("u-1"), order.ID, "late")
	require.NoError(t, err)
	assert.Contains(t, f.publisher.types(), services.EventRefundRequired)
}
