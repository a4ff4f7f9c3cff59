package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.OrderEvent
}

func (p *recordingPublisher) Publish(body []byte) error {
	var event services.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeGateway struct {
	secret  string
	mu      sync.Mutex
	created []gateway.OrderRequest
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	return &gateway.Order{ID: fmt.Sprintf("order_gw_%d", len(g.created)), Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (g *fakeGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return gateway.VerifySignature(g.secret, gatewayOrderID, gatewayPaymentID, signature)
}

func (g *fakeGateway) KeyID() string { return "key_test" }

func (g *fakeGateway) Configured() bool { return g.secret != "" }

type fixture struct {
	store       *repositories.MemoryStore
	publisher   *recordingPublisher
	gateway     *fakeGateway
	carts       *services.CartService
	coupons     *services.CouponService
	orders      *services.OrderService
	fulfillment *services.FulfillmentService
	payments    *services.PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	publisher := &recordingPublisher{}
	notifier := services.NewNotifier(publisher)
	gw := &fakeGateway{secret: "gateway_secret"}
	return &fixture{
		store:       store,
		publisher:   publisher,
		gateway:     gw,
		carts:       services.NewCartService(store),
		coupons:     services.NewCouponService(store),
		orders:      services.NewOrderService(store, services.DefaultPricingRules(), notifier),
		fulfillment: services.NewFulfillmentService(store, notifier),
		payments:    services.NewPaymentService(store, gw, "USD", notifier),
	}
}

// openGatewayOrder opens the gateway order for orderID and returns a
// confirmation signed with the fixture secret.
func (f *fixture) openGatewayOrder(t *testing.T, actor services.Actor, orderID, paymentID string) services.VerifyPaymentRequest {
	t.Helper()
	gwOrder, err := f.payments.CreateGatewayOrder(context.Background(), actor, orderID)
	require.NoError(t, err)
	return services.VerifyPaymentRequest{
		OrderID:          orderID,
		GatewayOrderID:   gwOrder.GatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        gateway.Sign(f.gateway.secret, gwOrder.GatewayOrderID, paymentID),
	}
}

func (f *fixture) product(t *testing.T, seller, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		SellerID:   seller,
		Name:       "Item by " + seller,
		Price:      decimal.RequireFromString(price),
		StockCount: stock,
	}
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.StockCount
}

func (f *fixture) coupon(t *testing.T, code, kind, value string, mutate func(*models.Coupon)) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		Code:      code,
		Type:      kind,
		Value:     decimal.RequireFromString(value),
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(24 * time.Hour),
		IsActive:  true,
	}
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, f.coupons.CreateCoupon(context.Background(), c))
	return c
}

func (f *fixture) addToCart(t *testing.T, userID, productID string, qty int) *models.Cart {
	t.Helper()
	cart, err := f.carts.AddItem(context.Background(), userID, services.AddToCartRequest{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	return cart
}

func address() *models.Address {
	return &models.Address{
		FullName:   "Ada Lovelace",
		Line1:      "12 Analytical Row",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "UK",
	}
}

func checkoutRequest(method string) services.CheckoutRequest {
	return services.CheckoutRequest{ShippingAddress: address(), PaymentMethod: method}
}

// placeOrder fills userID's cart with the given product quantities and checks out by card.
func (f *fixture) placeOrder(t *testing.T, userID string, lines map[*models.Product]int) *models.Order {
	t.Helper()
	for p, qty := range lines {
		f.addToCart(t, userID, p.ID, qty)
	}
	order, err := f.orders.Checkout(context.Background(), userID, checkoutRequest(models.PaymentCard))
	require.NoError(t, err)
	return order
}

func customer(id string) services.Actor { return services.Actor{UserID: id, Role: models.RoleCustomer} }
func vendor(id string) services.Actor   { return services.Actor{UserID: id, Role: models.RoleVendor} }

var admin = services.Actor{UserID: "admin-1", Role: models.RoleAdmin}
