package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"workspace-commerce/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// invoiceRepository implements the InvoiceRepository interface using PostgreSQL.
type invoiceRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewInvoiceRepository creates a new PostgreSQL-backed invoice repository.
func NewInvoiceRepository(pool *pgxpool.Pool, logger zerolog.Logger) InvoiceRepository {
	return &invoiceRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "invoice").Logger(),
	}
}

// FormatInvoiceNumber renders a monthly sequence value, e.g. INV-202604-000001.
func FormatInvoiceNumber(issuedAt time.Time, seq int64) string {
	issuedAt = issuedAt.UTC()
	return fmt.Sprintf("INV-%04d%02d-%06d", issuedAt.Year(), int(issuedAt.Month()), seq)
}

// NextInvoiceNumber allocates the next number for the month of issuedAt.
// The counter row stays locked until tx ends, so numbers never collide.
func (r *invoiceRepository) NextInvoiceNumber(ctx context.Context, tx pgx.Tx, issuedAt time.Time) (string, error) {
	period := issuedAt.UTC().Format("200601")

	query := `
		INSERT INTO invoice_sequences (period, last_value)
		VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE
		SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`

	var seq int64
	if err := tx.QueryRow(ctx, query, period).Scan(&seq); err != nil {
		r.logger.Error().Err(err).Str("period", period).Msg("failed to allocate invoice number")
		return "", fmt.Errorf("failed to allocate invoice number: %w", err)
	}

	return FormatInvoiceNumber(issuedAt, seq), nil
}

// CreateInvoice inserts an invoice snapshot within the provided transaction.
func (r *invoiceRepository) CreateInvoice(ctx context.Context, tx pgx.Tx, invoice *model.Invoice) error {
	items, err := json.Marshal(invoice.Items)
	if err != nil {
		return fmt.Errorf("failed to encode invoice items: %w", err)
	}

	query := `
		INSERT INTO invoices (
			id, order_id, invoice_number, items, subtotal, tax, total,
			currency, paid, paid_at, issued_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = tx.Exec(ctx, query,
		invoice.ID,
		invoice.OrderID,
		invoice.InvoiceNumber,
		items,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Total,
		invoice.Currency,
		invoice.Paid,
		invoice.PaidAt,
		invoice.IssuedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", invoice.OrderID.String()).
			Str("invoice_number", invoice.InvoiceNumber).
			Msg("failed to create invoice")
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	r.logger.Debug().
		Str("invoice_id", invoice.ID.String()).
		Str("invoice_number", invoice.InvoiceNumber).
		Msg("invoice created successfully")

	return nil
}

// GetByOrderID retrieves the invoice of an order, or nil.
func (r *invoiceRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error) {
	query := `
		SELECT id, order_id, invoice_number, items, subtotal, tax, total,
			currency, paid, paid_at, issued_at
		FROM invoices
		WHERE order_id = $1
	`

	var (
		invoice model.Invoice
		items   []byte
	)
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&invoice.ID,
		&invoice.OrderID,
		&invoice.InvoiceNumber,
		&items,
		&invoice.Subtotal,
		&invoice.Tax,
		&invoice.Total,
		&invoice.Currency,
		&invoice.Paid,
		&invoice.PaidAt,
		&invoice.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", orderID.String()).Msg("invoice not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query invoice")
		return nil, fmt.Errorf("failed to query invoice: %w", err)
	}

	if err := json.Unmarshal(items, &invoice.Items); err != nil {
		return nil, fmt.Errorf("failed to decode invoice items: %w", err)
	}

	return &invoice, nil
}

// MarkPaid flags the order's invoice as paid if it is not already.
func (r *invoiceRepository) MarkPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paidAt time.Time) (bool, error) {
	query := `
		UPDATE invoices
		SET paid = TRUE, paid_at = $2
		WHERE order_id = $1 AND paid = FALSE
	`

	tag, err := tx.Exec(ctx, query, orderID, paidAt)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark invoice paid")
		return false, fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
