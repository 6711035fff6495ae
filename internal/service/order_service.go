package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"workspace-commerce/internal/archive"
	"workspace-commerce/internal/model"
	"workspace-commerce/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// orderService implements OrderService.
type orderService struct {
	orderRepo        repository.OrderRepository
	invoiceRepo      repository.InvoiceRepository
	provisioningRepo repository.ProvisioningRepository
	archiver         archive.Archiver
	logger           zerolog.Logger
}

// NewOrderService creates a new order service. A nil archiver reports every
// invoice as not archived.
func NewOrderService(
	orderRepo repository.OrderRepository,
	invoiceRepo repository.InvoiceRepository,
	provisioningRepo repository.ProvisioningRepository,
	archiver archive.Archiver,
	logger zerolog.Logger,
) OrderService {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	return &orderService{
		orderRepo:        orderRepo,
		invoiceRepo:      invoiceRepo,
		provisioningRepo: provisioningRepo,
		archiver:         archiver,
		logger:           logger.With().Str("service", "order").Logger(),
	}
}

// GetByID retrieves an order and its invoice. Orders of other owners are
// reported as not found.
func (s *orderService) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*model.OrderDetails, error) {
	order, err := s.ownedOrder(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	invoice, err := s.invoiceRepo.GetByOrderID(ctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get invoice")
		return nil, model.NewServerError("Failed to load invoice", err)
	}

	return &model.OrderDetails{Order: order, Invoice: invoice}, nil
}

// ListByOwner retrieves the owner's orders. limit is clamped to MaxListLimit
// and defaults to DefaultListLimit.
func (s *orderService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Order, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, model.ErrUnauthenticated
	}

	limit, offset = ClampPage(limit, offset)

	orders, err := s.orderRepo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list orders")
		return nil, model.NewServerError("Failed to list orders", err)
	}

	return orders, nil
}

// Cancel moves a pending order to cancelled. Cancelling a cancelled order is
// a no-op; any other status is a conflict.
func (s *orderService) Cancel(ctx context.Context, ownerID string, id uuid.UUID) (_ *model.Order, err error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, model.ErrUnauthenticated
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, model.NewServerError("Failed to cancel order", err)
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	order, err := s.orderRepo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, model.NewServerError("Failed to cancel order", err)
	}
	if order == nil || order.OwnerID != ownerID {
		return nil, model.ErrOrderNotFound
	}

	if !order.Status.CanTransition(model.OrderStatusCancelled) {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("status", string(order.Status)).
			Msg("order cannot be cancelled")
		return nil, model.ErrInvalidTransition
	}

	if order.Status != model.OrderStatusCancelled {
		var updated bool
		updated, err = s.orderRepo.UpdateStatus(ctx, tx, id, order.Status, model.OrderStatusCancelled)
		if err != nil {
			return nil, model.NewServerError("Failed to cancel order", err)
		}
		if !updated {
			return nil, model.ErrInvalidTransition
		}
		order.Status = model.OrderStatusCancelled
		order.UpdatedAt = time.Now().UTC()
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, model.NewServerError("Failed to cancel order", err)
	}

	s.logger.Info().Str("order_id", id.String()).Msg("order cancelled")

	return order, nil
}

// GetProvisioning lists the artifacts created when the order was placed.
func (s *orderService) GetProvisioning(ctx context.Context, ownerID string, id uuid.UUID) (*model.Provisioning, error) {
	order, err := s.ownedOrder(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	project, err := s.provisioningRepo.GetProjectByOrderID(ctx, order.ID)
	if err != nil {
		return nil, model.NewServerError("Failed to load provisioning", err)
	}

	subs, err := s.provisioningRepo.ListSubscriptionsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, model.NewServerError("Failed to load provisioning", err)
	}

	return &model.Provisioning{Project: project, Subscriptions: subs}, nil
}

// GetArchivedInvoice loads the archived document of the order's invoice.
func (s *orderService) GetArchivedInvoice(ctx context.Context, ownerID string, id uuid.UUID) (*model.Invoice, error) {
	order, err := s.ownedOrder(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	invoice, err := s.invoiceRepo.GetByOrderID(ctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get invoice")
		return nil, model.NewServerError("Failed to load invoice", err)
	}
	if invoice == nil {
		return nil, model.ErrNotArchived
	}

	archived, err := s.archiver.Load(ctx, invoice.InvoiceNumber)
	if errors.Is(err, archive.ErrNotArchived) {
		s.logger.Debug().Str("invoice_number", invoice.InvoiceNumber).Msg("invoice not archived")
		return nil, model.ErrNotArchived
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("order_id", id.String()).
			Str("invoice_number", invoice.InvoiceNumber).
			Msg("failed to load archived invoice")
		return nil, model.NewServerError("Failed to load archived invoice", err)
	}

	return archived, nil
}

func (s *orderService) ownedOrder(ctx context.Context, ownerID string, id uuid.UUID) (*model.Order, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, model.ErrUnauthenticated
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, model.NewServerError("Failed to load order", err)
	}

	if order == nil || order.OwnerID != ownerID {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	return order, nil
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
