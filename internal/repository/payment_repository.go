package repository

import (
	"context"
	"fmt"

	"workspace-commerce/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// paymentRepository implements PaymentRepository using PostgreSQL.
// Rows are only ever inserted.
type paymentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentRepository creates a new PostgreSQL-backed payment ledger.
func NewPaymentRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentRepository {
	return &paymentRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment").Logger(),
	}
}

// CreateAttempt appends an attempt outside of any transaction.
func (r *paymentRepository) CreateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (
			id, order_id, provider, provider_payment_id, status, amount,
			currency, response, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var response []byte
	if len(attempt.Response) > 0 {
		response = attempt.Response
	}

	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.OrderID,
		attempt.Provider,
		attempt.ProviderPaymentID,
		attempt.Status,
		attempt.Amount,
		attempt.Currency,
		response,
		attempt.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", attempt.OrderID.String()).
			Str("provider", attempt.Provider).
			Msg("failed to record payment attempt")
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}

	return nil
}

// ListByOrderID returns an order's attempts in the order they were recorded.
func (r *paymentRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error) {
	query := `
		SELECT id, order_id, provider, provider_payment_id, status, amount,
			currency, response, created_at
		FROM payment_attempts
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query payment attempts")
		return nil, fmt.Errorf("failed to query payment attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]model.PaymentAttempt, 0)
	for rows.Next() {
		var (
			attempt  model.PaymentAttempt
			response []byte
		)
		err := rows.Scan(
			&attempt.ID,
			&attempt.OrderID,
			&attempt.Provider,
			&attempt.ProviderPaymentID,
			&attempt.Status,
			&attempt.Amount,
			&attempt.Currency,
			&response,
			&attempt.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan payment attempt row")
			return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
		}
		if len(response) > 0 {
			attempt.Response = response
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment attempts: %w", err)
	}

	return attempts, nil
}
