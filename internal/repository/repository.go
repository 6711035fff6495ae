package repository

import (
	"context"
	"errors"
	"time"

	"workspace-commerce/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateIdempotencyKey is returned when an order with the same
// idempotency key has already been committed.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	// Returns ErrDuplicateIdempotencyKey when the key is already taken.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts the order's items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []model.OrderItem) error

	// SetInvoiceID links the issued invoice to the order.
	SetInvoiceID(ctx context.Context, tx pgx.Tx, orderID, invoiceID uuid.UUID) error

	// GetByID retrieves an order by its ID along with its items.
	// Returns nil when the order does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByIdempotencyKey retrieves the order created with key, or nil.
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Order, error)

	// ListByOwner returns the owner's orders, newest first.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Order, error)

	// GetForUpdate loads an order and locks its row until tx ends.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// UpdateStatus moves the order from one status to another. It reports
	// false when the order was no longer in the expected status.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to model.OrderStatus) (bool, error)
}

// InvoiceRepository defines the interface for invoice data access operations.
type InvoiceRepository interface {
	// NextInvoiceNumber allocates the next number for the month of issuedAt.
	NextInvoiceNumber(ctx context.Context, tx pgx.Tx, issuedAt time.Time) (string, error)

	// CreateInvoice inserts an invoice snapshot within the provided transaction.
	CreateInvoice(ctx context.Context, tx pgx.Tx, invoice *model.Invoice) error

	// GetByOrderID retrieves the invoice of an order, or nil.
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error)

	// MarkPaid flags the order's invoice as paid if it is not already.
	// It reports whether a row changed.
	MarkPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paidAt time.Time) (bool, error)
}

// ProvisioningRepository defines the interface for project and subscription storage.
type ProvisioningRepository interface {
	// CreateProject inserts a project within the provided transaction.
	CreateProject(ctx context.Context, tx pgx.Tx, project *model.Project) error

	// CreateSubscriptions inserts subscriptions within the provided transaction.
	CreateSubscriptions(ctx context.Context, tx pgx.Tx, subs []model.Subscription) error

	// GetProjectByOrderID retrieves the project of an order, or nil.
	GetProjectByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Project, error)

	// ListSubscriptionsByOrderID returns the subscriptions created for an order.
	ListSubscriptionsByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.Subscription, error)
}

// PaymentRepository defines the interface for the append-only payment ledger.
type PaymentRepository interface {
	// CreateAttempt appends an attempt. It commits on its own.
	CreateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error

	// ListByOrderID returns an order's attempts in the order they were recorded.
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error)
}
