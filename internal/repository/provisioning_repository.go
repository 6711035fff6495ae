package repository

import (
	"context"
	"errors"
	"fmt"

	"workspace-commerce/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// provisioningRepository implements ProvisioningRepository using PostgreSQL.
type provisioningRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProvisioningRepository creates a new PostgreSQL-backed provisioning repository.
func NewProvisioningRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProvisioningRepository {
	return &provisioningRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "provisioning").Logger(),
	}
}

// CreateProject inserts a project within the provided transaction.
func (r *provisioningRepository) CreateProject(ctx context.Context, tx pgx.Tx, project *model.Project) error {
	query := `
		INSERT INTO projects (id, user_id, order_id, name, description, status, progress, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query,
		project.ID,
		project.UserID,
		project.OrderID,
		project.Name,
		project.Description,
		project.Status,
		project.Progress,
		project.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", project.OrderID.String()).
			Msg("failed to create project")
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// CreateSubscriptions inserts subscriptions within the provided transaction.
func (r *provisioningRepository) CreateSubscriptions(ctx context.Context, tx pgx.Tx, subs []model.Subscription) error {
	if len(subs) == 0 {
		return nil
	}

	query := `
		INSERT INTO subscriptions (
			id, user_id, order_id, plan_name, status, start_date,
			next_billing_date, billing_period, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, sub := range subs {
		batch.Queue(query,
			sub.ID, sub.UserID, sub.OrderID, sub.PlanName, sub.Status,
			sub.StartDate, sub.NextBillingDate, sub.BillingPeriod, sub.CreatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(subs); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", subs[i].OrderID.String()).
				Str("plan_name", subs[i].PlanName).
				Msg("failed to create subscription")
			return fmt.Errorf("failed to create subscription: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(subs)).
		Msg("subscriptions created successfully")

	return nil
}

// GetProjectByOrderID retrieves the project of an order, or nil.
func (r *provisioningRepository) GetProjectByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Project, error) {
	query := `
		SELECT id, user_id, order_id, name, description, status, progress, created_at
		FROM projects
		WHERE order_id = $1
	`

	var project model.Project
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&project.ID,
		&project.UserID,
		&project.OrderID,
		&project.Name,
		&project.Description,
		&project.Status,
		&project.Progress,
		&project.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query project")
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	return &project, nil
}

// ListSubscriptionsByOrderID returns the subscriptions created for an order.
func (r *provisioningRepository) ListSubscriptionsByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.Subscription, error) {
	query := `
		SELECT id, user_id, order_id, plan_name, status, start_date,
			next_billing_date, billing_period, created_at
		FROM subscriptions
		WHERE order_id = $1
		ORDER BY created_at, plan_name
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query subscriptions")
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]model.Subscription, 0)
	for rows.Next() {
		var sub model.Subscription
		err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.OrderID,
			&sub.PlanName,
			&sub.Status,
			&sub.StartDate,
			&sub.NextBillingDate,
			&sub.BillingPeriod,
			&sub.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan subscription row")
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}
