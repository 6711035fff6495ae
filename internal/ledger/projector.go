package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workspace-commerce/internal/model"
	"workspace-commerce/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Outcome describes what applying one attempt did to the order.
type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeOrderMissing Outcome = "order_missing"
	OutcomePaid         Outcome = "paid"
	OutcomeAlreadyPaid  Outcome = "already_paid"
	OutcomeSkipped      Outcome = "skipped"
)

// Projector derives order and invoice state from ledger entries.
// Applying the same attempt any number of times yields the same state.
type Projector struct {
	orders   repository.OrderRepository
	invoices repository.InvoiceRepository
	now      func() time.Time
	logger   zerolog.Logger
}

// NewProjector creates a projector.
func NewProjector(orders repository.OrderRepository, invoices repository.InvoiceRepository, logger zerolog.Logger) *Projector {
	return &Projector{
		orders:   orders,
		invoices: invoices,
		now:      time.Now,
		logger:   logger.With().Str("component", "payment_projector").Logger(),
	}
}

// Apply projects a single attempt. Only succeeded attempts change state.
func (p *Projector) Apply(ctx context.Context, attempt *model.PaymentAttempt) (Outcome, error) {
	if attempt.Status != model.PaymentStatusSucceeded {
		return OutcomeIgnored, nil
	}

	log := p.logger.With().
		Str("order_id", attempt.OrderID.String()).
		Str("attempt_id", attempt.ID.String()).
		Logger()

	tx, err := p.orders.BeginTx(ctx)
	if err != nil {
		return "", model.NewServerError("Failed to apply payment", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	order, err := p.orders.GetForUpdate(ctx, tx, attempt.OrderID)
	if err != nil {
		return "", model.NewServerError("Failed to apply payment", err)
	}
	if order == nil {
		log.Warn().Msg("payment succeeded for unknown order")
		return OutcomeOrderMissing, nil
	}

	var outcome Outcome
	switch order.Status {
	case model.OrderStatusPending:
		changed, err := p.orders.UpdateStatus(ctx, tx, order.ID, model.OrderStatusPending, model.OrderStatusPaid)
		if err != nil {
			return "", model.NewServerError("Failed to apply payment", err)
		}
		if !changed {
			return "", model.NewServerError("Failed to apply payment",
				fmt.Errorf("order %s changed status concurrently", order.ID))
		}
		outcome = OutcomePaid
	case model.OrderStatusPaid:
		outcome = OutcomeAlreadyPaid
	default:
		log.Warn().
			Str("status", string(order.Status)).
			Msg("payment succeeded for an order that can no longer be paid")
		return OutcomeSkipped, nil
	}

	if _, err = p.invoices.MarkPaid(ctx, tx, order.ID, p.now().UTC()); err != nil {
		return "", model.NewServerError("Failed to apply payment", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", model.NewServerError("Failed to apply payment", err)
	}
	committed = true

	log.Info().Str("outcome", string(outcome)).Msg("payment projected")
	return outcome, nil
}
