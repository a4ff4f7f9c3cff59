package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	sig := gateway.Sign("secret", "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.True(t, gateway.VerifySignature("secret", "order_1", "pay_1", sig))
	assert.False(t, gateway.VerifySignature("secret", "order_1", "pay_2", sig))
	assert.False(t, gateway.VerifySignature("other", "order_1", "pay_1", sig))
	assert.False(t, gateway.VerifySignature("secret", "order_1", "pay_1", ""))
}

func TestEmptySecretNeverVerifies(t *testing.T) {
	forged := gateway.Sign("", "order_1", "pay_1")
	assert.False(t, gateway.VerifySignature("", "order_1", "pay_1", forged))

	client := gateway.NewClient(gateway.Config{BaseURL: "http://127.0.0.1:1", KeyID: "key"})
	assert.False(t, client.Configured())
	assert.False(t, client.VerifySignature("order_1", "pay_1", forged))

	client = gateway.NewClient(gateway.Config{BaseURL: "http://127.0.0.1:1", KeyID: "key", KeySecret: "secret"})
	assert.True(t, client.Configured())
}

func TestCreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		var req gateway.OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(gateway.Order{
			ID:       "order_abc",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
		})
	}))
	defer server.Close()

	client := gateway.NewClient(gateway.Config{BaseURL: server.URL + "/v1/", KeyID: "key", KeySecret: "secret"})
	order, err := client.CreateOrder(context.Background(), gateway.OrderRequest{Amount: 10620, Currency: "USD", Receipt: "TRK-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(10620), order.Amount)
	assert.Equal(t, "TRK-1", order.Receipt)
}

func TestCreateOrderGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad amount"}`))
	}))
	defer server.Close()

	client := gateway.NewClient(gateway.Config{BaseURL: server.URL, KeyID: "key", KeySecret: "secret"})
	_, err := client.CreateOrder(context.Background(), gateway.OrderRequest{Amount: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestCreateOrderWithoutCredentials(t *testing.T) {
	client := gateway.NewClient(gateway.Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.CreateOrder(context.Background(), gateway.OrderRequest{Amount: 1})
	assert.Error(t, err)
}
