package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the outcome reported by a payment provider.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusInitiated, PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentAttempt is one immutable entry of the payment ledger.
type PaymentAttempt struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	OrderID           uuid.UUID       `json:"orderId" db:"order_id"`
	Provider          string          `json:"provider" db:"provider"`
	ProviderPaymentID string          `json:"providerPaymentId" db:"provider_payment_id"`
	Status            PaymentStatus   `json:"status" db:"status"`
	Amount            int64           `json:"amount" db:"amount"`
	Currency          string          `json:"currency" db:"currency"`
	Response          json.RawMessage `json:"response,omitempty" db:"response"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

// RecordAttemptCommand is the input to the payment ledger.
type RecordAttemptCommand struct {
	OrderID           uuid.UUID
	Provider          string
	ProviderPaymentID string
	Amount            int64
	Currency          string
	Status            PaymentStatus
	Response          json.RawMessage
}

// RecordAttemptRequest represents the request payload for recording a payment attempt.
type RecordAttemptRequest struct {
	OrderID           string          `json:"orderId" validate:"required,uuid"`
	Provider          string          `json:"provider" validate:"required,max=32"`
	ProviderPaymentID string          `json:"providerPaymentId" validate:"max=128"`
	Amount            int64           `json:"amount" validate:"gte=0"`
	Currency          string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Status            string          `json:"status" validate:"required,oneof=initiated succeeded failed cancelled"`
	Response          json.RawMessage `json:"response"`
}

// RecordAttemptResponse represents the response payload for a recorded attempt.
type RecordAttemptResponse struct {
	OK      bool            `json:"ok"`
	Attempt *PaymentAttempt `json:"attempt"`
}

// AttemptListResponse represents the ledger entries of one order.
type AttemptListResponse struct {
	OK       bool             `json:"ok"`
	Attempts []PaymentAttempt `json:"attempts"`
}
