package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// BillingPeriod describes how often an item is charged.
type BillingPeriod string

const (
	BillingPeriodOneTime BillingPeriod = "one-time"
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

// ParseBillingPeriod normalises the free-text period supplied by the catalog.
// Anything mentioning "year" or "annual" is yearly, anything mentioning
// "month" is monthly; unknown values are rejected.
func ParseBillingPeriod(raw string) (BillingPeriod, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "one-time", "onetime", "one_time", "one time", "once":
		return BillingPeriodOneTime, nil
	}
	if strings.Contains(v, "year") || strings.Contains(v, "annual") {
		return BillingPeriodYearly, nil
	}
	if strings.Contains(v, "month") {
		return BillingPeriodMonthly, nil
	}
	return "", NewValidationError(fmt.Sprintf("Unknown billing period %q", raw))
}

// IsRecurring reports whether the period produces a subscription.
func (p BillingPeriod) IsRecurring() bool {
	return p == BillingPeriodMonthly || p == BillingPeriodYearly
}

// OrderItem is a priced line of an order. Amounts are in currency minor units.
type OrderItem struct {
	SourceID      string        `json:"sourceId" db:"source_id"`
	Title         string        `json:"title" db:"title"`
	UnitPrice     int64         `json:"unitPrice" db:"unit_price"`
	Currency      string        `json:"currency" db:"currency"`
	Quantity      int           `json:"quantity" db:"quantity"`
	BillingPeriod BillingPeriod `json:"billingPeriod" db:"billing_period"`
}

// LineTotal returns unit price times quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Totals holds the computed amounts of an order.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// Order represents a customer order.
type Order struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	OwnerID            string         `json:"ownerId" db:"owner_id"`
	Items              []OrderItem    `json:"items"`
	Subtotal           int64          `json:"subtotal" db:"subtotal"`
	Tax                int64          `json:"tax" db:"tax"`
	Total              int64          `json:"total" db:"total"`
	Currency           string         `json:"currency" db:"currency"`
	Status             OrderStatus    `json:"status" db:"status"`
	InvoiceID          *uuid.UUID     `json:"invoiceId,omitempty" db:"invoice_id"`
	IdempotencyKey     *string        `json:"idempotencyKey,omitempty" db:"idempotency_key"`
	RequestFingerprint string         `json:"-" db:"request_fingerprint"`
	Metadata           map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt          time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time      `json:"updatedAt" db:"updated_at"`
}

// Metadata keys written at placement time.
const (
	MetadataBillingDetails = "billingDetails"
	MetadataPaymentMethod  = "paymentMethod"
	MetadataIdempotencyKey = "idempotencyKey"
)

// BillingDetails is the customer's billing address as captured at checkout.
type BillingDetails struct {
	Name    string `json:"name" validate:"max=200"`
	Address string `json:"address" validate:"max=500"`
	City    string `json:"city" validate:"max=120"`
	Country string `json:"country" validate:"max=120"`
	TaxID   string `json:"taxId,omitempty" validate:"max=64"`
}

// PlaceOrderCommand is the validated input to order placement.
type PlaceOrderCommand struct {
	OwnerID        string
	Items          []OrderItem
	Currency       string
	PaymentMethod  string
	BillingDetails *BillingDetails
	IdempotencyKey string
}

// PlaceOrderResult is what order placement produced, or found on replay.
type PlaceOrderResult struct {
	Order         *Order
	Invoice       *Invoice
	Project       *Project
	Subscriptions []Subscription
	Replayed      bool
}

// OrderDetails is an order joined with its invoice.
type OrderDetails struct {
	Order   *Order   `json:"order"`
	Invoice *Invoice `json:"invoice"`
}

// Provisioning lists the artifacts created for an order.
type Provisioning struct {
	Project       *Project       `json:"project"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// PlaceOrderRequest represents the request payload for placing an order.
type PlaceOrderRequest struct {
	Items          []OrderItemRequest `json:"items" validate:"dive"`
	Currency       string             `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentMethod  string             `json:"paymentMethod" validate:"max=64"`
	BillingDetails *BillingDetails    `json:"billingDetails" validate:"omitempty"`
	Metadata       RequestMetadata    `json:"metadata"`
}

// RequestMetadata carries client bookkeeping fields.
type RequestMetadata struct {
	ClientRequestID string `json:"clientRequestId" validate:"max=128"`
}

// OrderItemRequest represents a single cart line in an order request.
type OrderItemRequest struct {
	ID       string `json:"id" validate:"max=128"`
	Title    string `json:"title" validate:"max=200"`
	Price    int64  `json:"price"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
	Quantity *int   `json:"quantity"`
	Period   string `json:"period" validate:"max=32"`
}

// PlaceOrderResponse represents the response payload for order placement.
type PlaceOrderResponse struct {
	Order   *Order   `json:"order"`
	Invoice *Invoice `json:"invoice"`
}

// OrderResponse wraps a single order.
type OrderResponse struct {
	Order *Order `json:"order"`
}

// OrderListResponse represents a page of orders.
type OrderListResponse struct {
	Orders []Order `json:"orders"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
