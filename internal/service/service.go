package service

import (
	"context"

	"workspace-commerce/internal/model"

	"github.com/google/uuid"
)

// FulfillmentService turns a cart into a paid-for-later order.
type FulfillmentService interface {
	// PlaceOrder creates the order, its invoice and its provisioning artifacts
	// atomically, or replays the order previously placed with the same key.
	PlaceOrder(ctx context.Context, cmd *model.PlaceOrderCommand) (*model.PlaceOrderResult, error)
}

// OrderService defines the owner-scoped read and cancel operations.
type OrderService interface {
	// GetByID retrieves an order of the owner together with its invoice.
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*model.OrderDetails, error)

	// ListByOwner retrieves the owner's orders, newest first.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Order, error)

	// Cancel moves a pending order to cancelled.
	Cancel(ctx context.Context, ownerID string, id uuid.UUID) (*model.Order, error)

	// GetProvisioning lists the project and subscriptions created for an order.
	GetProvisioning(ctx context.Context, ownerID string, id uuid.UUID) (*model.Provisioning, error)

	// GetArchivedInvoice reads the archived copy of an order's invoice.
	GetArchivedInvoice(ctx context.Context, ownerID string, id uuid.UUID) (*model.Invoice, error)
}
