// Package gateway talks to the external payment gateway: it creates gateway
// orders before the customer pays and checks the signature the gateway hands
// back after a successful payment.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Config holds the gateway credentials.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// OrderRequest asks the gateway to open an order. Amount is in minor units.
type OrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Order is the gateway's view of an order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client is an HTTP client for the gateway's REST API.
type Client struct {
	cfg Config
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg}
}

// KeyID is the public key the client side needs to open the checkout widget.
func (c *Client) KeyID() string { return c.cfg.KeyID }

// CreateOrder opens an order on the gateway.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.cfg.KeyID == "" || c.cfg.KeySecret == "" {
		return nil, fmt.Errorf("payment gateway credentials are not configured")
	}

	agent := fiber.Post(c.cfg.BaseURL + "/orders")
	agent.BasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	agent.JSON(req)
	agent.Timeout(c.cfg.Timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("gateway request failed: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("gateway returned status %d: %s", code, strings.TrimSpace(string(body)))
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to decode gateway order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("gateway response carries no order id")
	}
	return &order, nil
}

// Configured reports whether the client holds a key secret to verify with.
func (c *Client) Configured() bool { return c.cfg.KeySecret != "" }

// VerifySignature checks a payment signature with the client's key secret.
func (c *Client) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return VerifySignature(c.cfg.KeySecret, gatewayOrderID, gatewayPaymentID, signature)
}

// Sign returns hex(HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID)).
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature with the expected one in constant time.
// Without a secret nothing verifies.
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	if secret == "" {
		return false
	}
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
