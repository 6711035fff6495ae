// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"workspace-commerce/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// OrderRepository is a mock implementation of repository.OrderRepository.
type OrderRepository struct {
	mock.Mock
}

func (m *OrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	// Return a Tx interface value, not a pointer
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *OrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []model.OrderItem) error {
	args := m.Called(ctx, tx, orderID, items)
	return args.Error(0)
}

func (m *OrderRepository) SetInvoiceID(ctx context.Context, tx pgx.Tx, orderID, invoiceID uuid.UUID) error {
	args := m.Called(ctx, tx, orderID, invoiceID)
	return args.Error(0)
}

func (m *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *OrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Order, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *OrderRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *OrderRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *OrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to model.OrderStatus) (bool, error) {
	args := m.Called(ctx, tx, id, from, to)
	return args.Bool(0), args.Error(1)
}

// InvoiceRepository is a mock implementation of repository.InvoiceRepository.
type InvoiceRepository struct {
	mock.Mock
}

func (m *InvoiceRepository) NextInvoiceNumber(ctx context.Context, tx pgx.Tx, issuedAt time.Time) (string, error) {
	args := m.Called(ctx, tx, issuedAt)
	return args.String(0), args.Error(1)
}

func (m *InvoiceRepository) CreateInvoice(ctx context.Context, tx pgx.Tx, invoice *model.Invoice) error {
	args := m.Called(ctx, tx, invoice)
	return args.Error(0)
}

func (m *InvoiceRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *InvoiceRepository) MarkPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, tx, orderID, paidAt)
	return args.Bool(0), args.Error(1)
}

// ProvisioningRepository is a mock implementation of repository.ProvisioningRepository.
type ProvisioningRepository struct {
	mock.Mock
}

func (m *ProvisioningRepository) CreateProject(ctx context.Context, tx pgx.Tx, project *model.Project) error {
	args := m.Called(ctx, tx, project)
	return args.Error(0)
}

func (m *ProvisioningRepository) CreateSubscriptions(ctx context.Context, tx pgx.Tx, subs []model.Subscription) error {
	args := m.Called(ctx, tx, subs)
	return args.Error(0)
}

func (m *ProvisioningRepository) GetProjectByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *ProvisioningRepository) ListSubscriptionsByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.Subscription, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Subscription), args.Error(1)
}

// PaymentRepository is a mock implementation of repository.PaymentRepository.
type PaymentRepository struct {
	mock.Mock
}

func (m *PaymentRepository) CreateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *PaymentRepository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentAttempt), args.Error(1)
}

// Tx is a minimal mock implementation of pgx.Tx. Only Commit and Rollback
// record calls.
type Tx struct {
	mock.Mock
	Committed  bool
	RolledBack bool
}

func (m *Tx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.Committed = true
	return args.Error(0)
}

func (m *Tx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.RolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *Tx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *Tx) Conn() *pgx.Conn                                               { return nil }
