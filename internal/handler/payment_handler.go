package handler

import (
	"context"
	"net/http"
	"strings"

	"workspace-commerce/internal/model"
	"workspace-commerce/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentLedger is the payment ledger as seen by HTTP handlers.
type PaymentLedger interface {
	RecordAttempt(ctx context.Context, cmd *model.RecordAttemptCommand) (*model.PaymentAttempt, error)
	Reconcile(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error)
	ListAttempts(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error)
}

// PaymentHandler handles payment ledger HTTP requests.
type PaymentHandler struct {
	ledger PaymentLedger
	orders service.OrderService
	logger zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(ledger PaymentLedger, orders service.OrderService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		ledger: ledger,
		orders: orders,
		logger: logger.With().Str("handler", "payment").Logger(),
	}
}

// RecordAttempt handles POST /api/payments/attempts requests.
func (h *PaymentHandler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	if _, err := requireOwner(r); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.RecordAttemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	// Status values are matched case-insensitively.
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := validate.Struct(&req); err != nil {
		writeValidationError(w, r, err, h.logger)
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, r, model.NewValidationError("Invalid order ID format"), h.logger)
		return
	}

	attempt, err := h.ledger.RecordAttempt(r.Context(), &model.RecordAttemptCommand{
		OrderID:           orderID,
		Provider:          req.Provider,
		ProviderPaymentID: req.ProviderPaymentID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            model.PaymentStatus(req.Status),
		Response:          req.Response,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, model.RecordAttemptResponse{OK: true, Attempt: attempt})
}

// ListAttempts handles GET /api/orders/{id}/payments requests.
func (h *PaymentHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.ownedOrderID(w, r)
	if !ok {
		return
	}

	attempts, err := h.ledger.ListAttempts(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.AttemptListResponse{OK: true, Attempts: attempts})
}

// Reconcile handles POST /api/orders/{id}/reconcile requests.
func (h *PaymentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.ownedOrderID(w, r)
	if !ok {
		return
	}

	attempts, err := h.ledger.Reconcile(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.AttemptListResponse{OK: true, Attempts: attempts})
}

// ownedOrderID resolves {id} and checks that the caller owns the order.
func (h *PaymentHandler) ownedOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, err := requireOwner(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return uuid.Nil, false
	}

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return uuid.Nil, false
	}

	if _, err := h.orders.GetByID(r.Context(), owner, orderID); err != nil {
		writeError(w, r, err, h.logger)
		return uuid.Nil, false
	}

	return orderID, true
}
