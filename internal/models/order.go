package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the aggregate status of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// FulfillmentStatus is the shipping progress of a single order item.
type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
	FulfillmentReturned   FulfillmentStatus = "returned"
)

// Payment methods accepted at checkout.
const (
	PaymentCard           = "card"
	PaymentPaypal         = "paypal"
	PaymentGateway        = "gateway"
	PaymentCashOnDelivery = "cash-on-delivery"
)

// Address is embedded twice in Order (shipping_ and billing_ columns).
type Address struct {
	FullName   string `json:"full_name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone"`
}

// PaymentResult is the gateway payload stored once an order is paid.
type PaymentResult struct {
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Signature        string    `json:"signature"`
	Status           string    `json:"status"`
	VerifiedAt       time.Time `json:"verified_at"`
}

// Order is the priced snapshot of a completed checkout. The price fields are
// written once at creation and never updated.
type Order struct {
	ID              string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string      `json:"user_id" gorm:"index;type:varchar(36)"`
	TrackingNumber  string      `json:"tracking_number" gorm:"uniqueIndex;type:varchar(64)"`
	Items           []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress Address     `json:"shipping_address" gorm:"embedded;embeddedPrefix:shipping_"`
	BillingAddress  Address     `json:"billing_address" gorm:"embedded;embeddedPrefix:billing_"`
	PaymentMethod   string      `json:"payment_method" gorm:"type:varchar(30)"`
	GatewayOrderID  string      `json:"gateway_order_id,omitempty" gorm:"index;type:varchar(100)"`
	// GatewayPaymentID is set once paid; a gateway payment settles one order only.
	GatewayPaymentID *string            `json:"gateway_payment_id,omitempty" gorm:"uniqueIndex;type:varchar(100)"`
	IsPaid           bool               `json:"is_paid"`
	PaidAt           *time.Time         `json:"paid_at,omitempty"`
	PaymentResult    *PaymentResult     `json:"payment_result,omitempty" gorm:"serializer:json"`
	ItemsPrice       decimal.Decimal    `json:"items_price" gorm:"type:decimal(12,2)"`
	TaxPrice         decimal.Decimal    `json:"tax_price" gorm:"type:decimal(12,2)"`
	ShippingPrice    decimal.Decimal    `json:"shipping_price" gorm:"type:decimal(12,2)"`
	DiscountAmount   decimal.Decimal    `json:"discount_amount" gorm:"type:decimal(12,2)"`
	TotalPrice       decimal.Decimal    `json:"total_price" gorm:"type:decimal(12,2)"`
	CouponID         string             `json:"coupon_id,omitempty" gorm:"type:varchar(36)"`
	CouponCode       string             `json:"coupon_code,omitempty" gorm:"type:varchar(50)"`
	Status           OrderStatus        `json:"status" gorm:"type:varchar(20);index"`
	StatusHistory    []OrderStatusEvent `json:"status_history" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Notes            string             `json:"notes,omitempty"`
	CancelReason     string             `json:"cancel_reason,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	ReturnedAt       *time.Time         `json:"returned_at,omitempty"`
	RefundedAt       *time.Time         `json:"refunded_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// OrderItem is a priced line of an order with its own fulfillment state.
type OrderItem struct {
	ID                string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID           string            `json:"-" gorm:"index;type:varchar(36)"`
	Position          int               `json:"-"`
	ProductID         string            `json:"product_id" gorm:"type:varchar(36)"`
	SellerID          string            `json:"seller_id" gorm:"index;type:varchar(36)"`
	Name              string            `json:"name"`
	Image             string            `json:"image"`
	Quantity          int               `json:"quantity"`
	UnitPrice         decimal.Decimal   `json:"unit_price" gorm:"type:decimal(12,2)"`
	Variant           Variant           `json:"selected_variant,omitempty" gorm:"serializer:json"`
	Total             decimal.Decimal   `json:"total" gorm:"type:decimal(12,2)"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status" gorm:"type:varchar(20)"`
	TrackingInfo      string            `json:"tracking_info,omitempty"`
	ShippedAt         *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
	StockReleased     bool              `json:"-"`
}

// OrderStatusEvent is one append-only entry of an order's status history.
// Entries without an ID are new and get inserted on the next save.
type OrderStatusEvent struct {
	ID        string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string      `json:"-" gorm:"index;type:varchar(36)"`
	Seq       int         `json:"-"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(20)"`
	Note      string      `json:"note,omitempty"`
	UpdatedBy string      `json:"updated_by,omitempty" gorm:"type:varchar(36)"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AppendStatus records a status change in the history log.
func (o *Order) AppendStatus(status OrderStatus, note, by string, at time.Time) {
	o.StatusHistory = append(o.StatusHistory, OrderStatusEvent{
		OrderID:   o.ID,
		Seq:       len(o.StatusHistory),
		Status:    status,
		Note:      note,
		UpdatedBy: by,
		UpdatedAt: at,
	})
}

// HasSeller reports whether any item of the order is sold by sellerID.
func (o *Order) HasSeller(sellerID string) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

// SoldEntirelyBy reports whether every item of the order is sold by sellerID.
func (o *Order) SoldEntirelyBy(sellerID string) bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.SellerID != sellerID {
			return false
		}
	}
	return true
}

// ForSeller returns a copy of the order that only contains sellerID's items.
func (o Order) ForSeller(sellerID string) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			items = append(items, item)
		}
	}
	o.Items = items
	return o
}

// Clone deep-copies the slices and pointers of the order.
func (o Order) Clone() Order {
	out := o
	out.Items = make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.Variant = append(Variant(nil), item.Variant...)
		item.ShippedAt = cloneTime(item.ShippedAt)
		item.DeliveredAt = cloneTime(item.DeliveredAt)
		out.Items[i] = item
	}
	out.StatusHistory = append([]OrderStatusEvent(nil), o.StatusHistory...)
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		out.PaymentResult = &pr
	}
	if o.GatewayPaymentID != nil {
		id := *o.GatewayPaymentID
		out.GatewayPaymentID = &id
	}
	out.PaidAt = cloneTime(o.PaidAt)
	out.CancelledAt = cloneTime(o.CancelledAt)
	out.ReturnedAt = cloneTime(o.ReturnedAt)
	out.RefundedAt = cloneTime(o.RefundedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
