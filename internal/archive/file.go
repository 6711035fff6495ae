package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"workspace-commerce/internal/model"

	"github.com/rs/zerolog"
)

// fileArchiver writes gzipped invoices below a local directory.
type fileArchiver struct {
	dir    string
	logger zerolog.Logger
}

// NewFileArchiver creates an archiver rooted at dir.
func NewFileArchiver(dir string, logger zerolog.Logger) Archiver {
	return &fileArchiver{
		dir:    dir,
		logger: logger.With().Str("component", "invoice-file-archive").Logger(),
	}
}

// Archive writes the invoice atomically via a temporary file.
func (a *fileArchiver) Archive(ctx context.Context, invoice *model.Invoice) error {
	data, err := encode(invoice)
	if err != nil {
		return err
	}

	path := filepath.Join(a.dir, filepath.FromSlash(objectKey(invoice.InvoiceNumber)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		a.logger.Error().Err(err).Str("path", path).Msg("failed to create archive directory")
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		a.logger.Error().Err(err).Str("path", tmp).Msg("failed to write invoice file")
		return fmt.Errorf("failed to write invoice file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move invoice file into place: %w", err)
	}

	a.logger.Debug().
		Str("invoice_number", invoice.InvoiceNumber).
		Str("path", path).
		Msg("invoice archived")

	return nil
}

// Load reads an archived invoice from disk.
func (a *fileArchiver) Load(ctx context.Context, invoiceNumber string) (*model.Invoice, error) {
	path := filepath.Join(a.dir, filepath.FromSlash(objectKey(invoiceNumber)))

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotArchived, invoiceNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open invoice file %s: %w", path, err)
	}
	defer file.Close()

	return decode(file)
}
