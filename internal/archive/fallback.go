package archive

import (
	"context"

	"workspace-commerce/internal/model"

	"github.com/rs/zerolog"
)

// fallbackArchiver tries the primary archive first and falls back to a local one.
type fallbackArchiver struct {
	primary  Archiver
	fallback Archiver
	logger   zerolog.Logger
}

// NewFallbackArchiver creates an archiver that writes to primary and, when
// that fails, to fallback. A nil primary uses only fallback.
func NewFallbackArchiver(primary, fallback Archiver, logger zerolog.Logger) Archiver {
	return &fallbackArchiver{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "invoice-fallback-archive").Logger(),
	}
}

// Archive writes to the primary archive, or the fallback on failure.
func (a *fallbackArchiver) Archive(ctx context.Context, invoice *model.Invoice) error {
	if a.primary != nil {
		err := a.primary.Archive(ctx, invoice)
		if err == nil {
			return nil
		}
		a.logger.Warn().
			Err(err).
			Str("invoice_number", invoice.InvoiceNumber).
			Msg("primary archive failed, falling back to local archive")
	}
	return a.fallback.Archive(ctx, invoice)
}

// Load reads from the primary archive, or the fallback on failure.
func (a *fallbackArchiver) Load(ctx context.Context, invoiceNumber string) (*model.Invoice, error) {
	if a.primary != nil {
		invoice, err := a.primary.Load(ctx, invoiceNumber)
		if err == nil {
			return invoice, nil
		}
		a.logger.Debug().
			Err(err).
			Str("invoice_number", invoiceNumber).
			Msg("invoice not in primary archive")
	}
	return a.fallback.Load(ctx, invoiceNumber)
}
