package model

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is the billing document issued for an order. Its items and amounts
// are a snapshot taken at issue time and never follow later order changes.
type Invoice struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	OrderID       uuid.UUID   `json:"orderId" db:"order_id"`
	InvoiceNumber string      `json:"invoiceNumber" db:"invoice_number"`
	Items         []OrderItem `json:"items" db:"items"`
	Subtotal      int64       `json:"subtotal" db:"subtotal"`
	Tax           int64       `json:"tax" db:"tax"`
	Total         int64       `json:"total" db:"total"`
	Currency      string      `json:"currency" db:"currency"`
	Paid          bool        `json:"paid" db:"paid"`
	PaidAt        *time.Time  `json:"paidAt,omitempty" db:"paid_at"`
	IssuedAt      time.Time   `json:"issuedAt" db:"issued_at"`
}

// NewInvoiceSnapshot builds an unpaid invoice from the order's current state.
func NewInvoiceSnapshot(order *Order, number string, issuedAt time.Time) *Invoice {
	items := make([]OrderItem, len(order.Items))
	copy(items, order.Items)

	return &Invoice{
		ID:            uuid.New(),
		OrderID:       order.ID,
		InvoiceNumber: number,
		Items:         items,
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		Total:         order.Total,
		Currency:      order.Currency,
		IssuedAt:      issuedAt,
	}
}
