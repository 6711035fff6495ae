// Package archive keeps a gzipped JSON copy of every issued invoice.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"workspace-commerce/internal/model"
)

// ErrNotArchived is returned by Load when no document exists for the invoice.
var ErrNotArchived = errors.New("invoice is not archived")

// Archiver stores and retrieves invoice documents.
type Archiver interface {
	// Archive writes the invoice under its invoice number.
	Archive(ctx context.Context, invoice *model.Invoice) error

	// Load reads an archived invoice back.
	Load(ctx context.Context, invoiceNumber string) (*model.Invoice, error)
}

// objectKey returns the relative location of an invoice document.
func objectKey(invoiceNumber string) string {
	// INV-YYYYMM-NNNNNN is grouped by its month.
	if len(invoiceNumber) >= len("INV-YYYYMM") {
		return invoiceNumber[4:8] + "/" + invoiceNumber[8:10] + "/" + invoiceNumber + ".json.gz"
	}
	return invoiceNumber + ".json.gz"
}

func encode(invoice *model.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(invoice); err != nil {
		return nil, fmt.Errorf("failed to encode invoice: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(r io.Reader) (*model.Invoice, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var invoice model.Invoice
	if err := json.NewDecoder(gz).Decode(&invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice: %w", err)
	}
	return &invoice, nil
}

// Nop discards invoices.
type Nop struct{}

// Archive does nothing.
func (Nop) Archive(context.Context, *model.Invoice) error { return nil }

// Load always reports ErrNotArchived.
func (Nop) Load(_ context.Context, invoiceNumber string) (*model.Invoice, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotArchived, invoiceNumber)
}
