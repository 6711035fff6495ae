// Package ledger records payment attempts and projects them onto orders.
//
// The ledger is append-only: an attempt is stored before any order or invoice
// state changes, so the history survives projection failures and can be
// replayed with Reconcile.
package ledger

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"workspace-commerce/internal/metrics"
	"workspace-commerce/internal/model"
	"workspace-commerce/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the payment ledger.
type Service struct {
	payments  repository.PaymentRepository
	projector *Projector
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a ledger service. m may be nil.
func NewService(payments repository.PaymentRepository, projector *Projector, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		payments:  payments,
		projector: projector,
		metrics:   m,
		now:       time.Now,
		logger:    logger.With().Str("service", "ledger").Logger(),
	}
}

// RecordAttempt validates and appends an attempt, then projects it.
// A projection failure is returned after the attempt is already stored;
// recording or reconciling again is safe.
func (s *Service) RecordAttempt(ctx context.Context, cmd *model.RecordAttemptCommand) (*model.PaymentAttempt, error) {
	attempt, err := s.buildAttempt(cmd)
	if err != nil {
		return nil, err
	}

	if err := s.payments.CreateAttempt(ctx, attempt); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_id", attempt.OrderID.String()).
			Msg("failed to record payment attempt")
		return nil, model.NewServerError("Failed to record payment attempt", err)
	}
	s.metrics.PaymentAttempt(attempt.Provider, string(attempt.Status))

	s.logger.Info().
		Str("order_id", attempt.OrderID.String()).
		Str("attempt_id", attempt.ID.String()).
		Str("provider", attempt.Provider).
		Str("status", string(attempt.Status)).
		Int64("amount", attempt.Amount).
		Msg("payment attempt recorded")

	outcome, err := s.projector.Apply(ctx, attempt)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("order_id", attempt.OrderID.String()).
			Str("attempt_id", attempt.ID.String()).
			Msg("failed to project payment attempt")
		return attempt, err
	}
	s.metrics.PaymentProjected(string(outcome))

	return attempt, nil
}

// Reconcile replays every recorded attempt of an order through the projector.
func (s *Service) Reconcile(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error) {
	attempts, err := s.ListAttempts(ctx, orderID)
	if err != nil {
		return nil, err
	}

	for i := range attempts {
		outcome, err := s.projector.Apply(ctx, &attempts[i])
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("order_id", orderID.String()).
				Str("attempt_id", attempts[i].ID.String()).
				Msg("failed to replay payment attempt")
			return nil, err
		}
		if outcome != OutcomeIgnored {
			s.metrics.PaymentProjected(string(outcome))
		}
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Int("attempt_count", len(attempts)).
		Msg("payment ledger reconciled")

	return attempts, nil
}

// ListAttempts returns the recorded attempts of an order.
func (s *Service) ListAttempts(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error) {
	attempts, err := s.payments.ListByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to list payment attempts")
		return nil, model.NewServerError("Failed to list payment attempts", err)
	}
	return attempts, nil
}

func (s *Service) buildAttempt(cmd *model.RecordAttemptCommand) (*model.PaymentAttempt, error) {
	if cmd == nil {
		return nil, model.NewValidationError("Payment attempt is required")
	}
	if cmd.OrderID == uuid.Nil {
		return nil, model.NewValidationError("Order ID is required")
	}

	provider := strings.ToLower(strings.TrimSpace(cmd.Provider))
	if provider == "" {
		return nil, model.NewValidationError("Payment provider is required")
	}

	status := model.PaymentStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if !status.Valid() {
		return nil, model.NewValidationError("Unknown payment status " + string(cmd.Status))
	}

	if cmd.Amount < 0 {
		return nil, model.NewValidationError("Payment amount cannot be negative")
	}

	if len(cmd.Response) > 0 && !json.Valid(cmd.Response) {
		return nil, model.NewValidationError("Provider response must be valid JSON")
	}

	return &model.PaymentAttempt{
		ID:                uuid.New(),
		OrderID:           cmd.OrderID,
		Provider:          provider,
		ProviderPaymentID: strings.TrimSpace(cmd.ProviderPaymentID),
		Status:            status,
		Amount:            cmd.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		Response:          cmd.Response,
		CreatedAt:         s.now().UTC(),
	}, nil
}
