package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"workspace-commerce/internal/archive"
	"workspace-commerce/internal/idempotency"
	"workspace-commerce/internal/metrics"
	"workspace-commerce/internal/model"
	"workspace-commerce/internal/pricing"
	"workspace-commerce/internal/provisioning"
	"workspace-commerce/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// DefaultArchiveTimeout bounds a single invoice archive write when no
// timeout is configured.
const DefaultArchiveTimeout = 5 * time.Second

// fulfillmentService implements FulfillmentService.
type fulfillmentService struct {
	orderRepo      repository.OrderRepository
	invoiceRepo    repository.InvoiceRepository
	calculator     *pricing.Calculator
	guard          *idempotency.Guard
	provisioner    *provisioning.Provisioner
	archiver       archive.Archiver
	archiveTimeout time.Duration
	metrics        *metrics.Metrics
	now            func() time.Time
	logger         zerolog.Logger
}

// NewFulfillmentService creates a new fulfillment service. A nil archiver
// disables invoice archiving and a non-positive archiveTimeout falls back to
// DefaultArchiveTimeout.
func NewFulfillmentService(
	orderRepo repository.OrderRepository,
	invoiceRepo repository.InvoiceRepository,
	calculator *pricing.Calculator,
	guard *idempotency.Guard,
	provisioner *provisioning.Provisioner,
	archiver archive.Archiver,
	archiveTimeout time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) FulfillmentService {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	if archiveTimeout <= 0 {
		archiveTimeout = DefaultArchiveTimeout
	}
	return &fulfillmentService{
		orderRepo:      orderRepo,
		invoiceRepo:    invoiceRepo,
		calculator:     calculator,
		guard:          guard,
		provisioner:    provisioner,
		archiver:       archiver,
		archiveTimeout: archiveTimeout,
		metrics:        m,
		now:            time.Now,
		logger:         logger.With().Str("service", "fulfillment").Logger(),
	}
}

// PlaceOrder validates the cart, then either replays the order already placed
// under the idempotency key or creates order, invoice, project and
// subscriptions in a single transaction.
func (s *fulfillmentService) PlaceOrder(ctx context.Context, cmd *model.PlaceOrderCommand) (*model.PlaceOrderResult, error) {
	if cmd == nil || strings.TrimSpace(cmd.OwnerID) == "" {
		return nil, model.ErrUnauthenticated
	}

	items, currency, err := normalizeItems(cmd)
	if err != nil {
		s.logger.Warn().Err(err).Str("owner_id", cmd.OwnerID).Msg("order rejected")
		s.metrics.OrderPlaced(metrics.OrderResultRejected, "", 0)
		return nil, err
	}

	totals, err := s.calculator.Compute(items)
	if err != nil {
		s.logger.Warn().Err(err).Str("owner_id", cmd.OwnerID).Msg("order rejected")
		s.metrics.OrderPlaced(metrics.OrderResultRejected, currency, 0)
		return nil, err
	}

	key := strings.TrimSpace(cmd.IdempotencyKey)
	fingerprint := idempotency.Fingerprint(cmd)

	if key != "" {
		existing, err := s.guard.FindExisting(ctx, key)
		if err != nil {
			s.metrics.OrderPlaced(metrics.OrderResultFailed, currency, 0)
			return nil, model.NewServerError("Failed to place order", err)
		}
		if existing != nil {
			return s.replay(ctx, cmd.OwnerID, existing, fingerprint)
		}
	}

	now := s.now().UTC()
	order := &model.Order{
		ID:                 uuid.New(),
		OwnerID:            cmd.OwnerID,
		Items:              items,
		Subtotal:           totals.Subtotal,
		Tax:                totals.Tax,
		Total:              totals.Total,
		Currency:           currency,
		Status:             model.OrderStatusPending,
		RequestFingerprint: fingerprint,
		Metadata:           buildMetadata(cmd, key),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if key != "" {
		order.IdempotencyKey = &key
	}

	result, err := s.persist(ctx, order)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			return s.replayWinner(ctx, cmd.OwnerID, key, fingerprint)
		}
		s.metrics.OrderPlaced(metrics.OrderResultFailed, currency, 0)
		return nil, model.NewServerError("Failed to place order", err)
	}

	if key != "" {
		s.guard.Remember(ctx, key, order.ID)
	}

	archiveErr := s.archive(ctx, result.Invoice)
	if archiveErr != nil {
		s.logger.Warn().
			Err(archiveErr).
			Str("order_id", order.ID.String()).
			Str("invoice_number", result.Invoice.InvoiceNumber).
			Msg("failed to archive invoice")
	}
	s.metrics.InvoiceArchived(archiveErr)
	s.metrics.OrderPlaced(metrics.OrderResultCreated, currency, order.Total)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("owner_id", order.OwnerID).
		Str("invoice_number", result.Invoice.InvoiceNumber).
		Int64("total", order.Total).
		Str("currency", order.Currency).
		Int("subscription_count", len(result.Subscriptions)).
		Msg("order placed successfully")

	return result, nil
}

// archive copies the committed invoice to the archive. The order is already
// durable, so a slow archive backend only costs the caller archiveTimeout.
func (s *fulfillmentService) archive(ctx context.Context, invoice *model.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, s.archiveTimeout)
	defer cancel()

	return s.archiver.Archive(ctx, invoice)
}

// persist writes the whole unit of work. Nothing is visible unless every step
// succeeds.
func (s *fulfillmentService) persist(ctx context.Context, order *model.Order) (_ *model.PlaceOrderResult, err error) {
	log := s.logger.With().Str("order_id", order.ID.String()).Logger()
	fail := func(step string, cause error) error {
		log.Error().Err(cause).Str("step", step).Msg("order placement failed")
		return fmt.Errorf("%s: %w", step, cause)
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fail("begin", err)
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			return nil, err
		}
		return nil, fail("create_order", err)
	}

	if err = s.orderRepo.CreateOrderItems(ctx, tx, order.ID, order.Items); err != nil {
		return nil, fail("create_order_items", err)
	}

	project, subs, err := s.provisioner.Provision(ctx, tx, order)
	if err != nil {
		return nil, fail("provision", err)
	}

	// The invoice_sequences row stays locked until commit, so numbering is the
	// last thing done before it.
	number, err := s.invoiceRepo.NextInvoiceNumber(ctx, tx, order.CreatedAt)
	if err != nil {
		return nil, fail("allocate_invoice_number", err)
	}

	invoice := model.NewInvoiceSnapshot(order, number, order.CreatedAt)
	if err = s.invoiceRepo.CreateInvoice(ctx, tx, invoice); err != nil {
		return nil, fail("create_invoice", err)
	}

	if err = s.orderRepo.SetInvoiceID(ctx, tx, order.ID, invoice.ID); err != nil {
		return nil, fail("link_invoice", err)
	}
	order.InvoiceID = &invoice.ID

	if err = tx.Commit(ctx); err != nil {
		return nil, fail("commit", err)
	}

	return &model.PlaceOrderResult{
		Order:         order,
		Invoice:       invoice,
		Project:       project,
		Subscriptions: subs,
	}, nil
}

// replayWinner resolves a lost race on the idempotency key to the order that
// won it.
func (s *fulfillmentService) replayWinner(ctx context.Context, ownerID, key, fingerprint string) (*model.PlaceOrderResult, error) {
	winner, err := s.guard.FindExisting(ctx, key)
	if err != nil {
		s.metrics.OrderPlaced(metrics.OrderResultFailed, "", 0)
		return nil, model.NewServerError("Failed to place order", err)
	}
	if winner == nil {
		s.metrics.OrderPlaced(metrics.OrderResultFailed, "", 0)
		return nil, model.NewServerError("Failed to place order",
			errors.New("idempotency key conflict without a committed order"))
	}
	return s.replay(ctx, ownerID, winner, fingerprint)
}

func (s *fulfillmentService) replay(ctx context.Context, ownerID string, existing *model.Order, fingerprint string) (*model.PlaceOrderResult, error) {
	if existing.OwnerID != ownerID {
		s.logger.Warn().
			Str("order_id", existing.ID.String()).
			Str("owner_id", ownerID).
			Msg("idempotency key presented by a different owner")
		s.metrics.OrderPlaced(metrics.OrderResultRejected, existing.Currency, 0)
		return nil, model.ErrKeyOwnedElsewhere
	}

	s.guard.CheckFingerprint(existing, fingerprint)

	invoice, err := s.invoiceRepo.GetByOrderID(ctx, existing.ID)
	if err != nil {
		s.metrics.OrderPlaced(metrics.OrderResultFailed, existing.Currency, 0)
		return nil, model.NewServerError("Failed to load invoice", err)
	}

	s.metrics.OrderPlaced(metrics.OrderResultReplayed, existing.Currency, 0)
	s.logger.Info().
		Str("order_id", existing.ID.String()).
		Msg("returning existing order for idempotency key")

	return &model.PlaceOrderResult{
		Order:    existing,
		Invoice:  invoice,
		Replayed: true,
	}, nil
}

// normalizeItems applies the single-currency rule and defaults the billing
// period. Price and quantity are checked by the calculator.
func normalizeItems(cmd *model.PlaceOrderCommand) ([]model.OrderItem, string, error) {
	if len(cmd.Items) == 0 {
		return nil, "", model.ErrEmptyCart
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(cmd.Items[0].Currency))
	}
	if currency == "" {
		return nil, "", model.NewValidationError("Currency is required")
	}
	if len(currency) != 3 {
		return nil, "", model.NewValidationError(fmt.Sprintf("Invalid currency %q", currency))
	}

	items := make([]model.OrderItem, len(cmd.Items))
	for i, item := range cmd.Items {
		item.SourceID = strings.TrimSpace(item.SourceID)
		item.Title = strings.TrimSpace(item.Title)

		itemCurrency := strings.ToUpper(strings.TrimSpace(item.Currency))
		if itemCurrency != "" && itemCurrency != currency {
			return nil, "", model.NewValidationError(
				fmt.Sprintf("Item %d is priced in %s but the order is in %s", i, itemCurrency, currency))
		}
		item.Currency = currency

		switch item.BillingPeriod {
		case "":
			item.BillingPeriod = model.BillingPeriodOneTime
		case model.BillingPeriodOneTime, model.BillingPeriodMonthly, model.BillingPeriodYearly:
		default:
			return nil, "", model.NewValidationError(fmt.Sprintf("Item %d has unknown billing period %q", i, item.BillingPeriod))
		}

		items[i] = item
	}

	return items, currency, nil
}

func buildMetadata(cmd *model.PlaceOrderCommand, key string) map[string]any {
	metadata := make(map[string]any)
	if cmd.BillingDetails != nil {
		metadata[model.MetadataBillingDetails] = cmd.BillingDetails
	}
	if method := strings.TrimSpace(cmd.PaymentMethod); method != "" {
		metadata[model.MetadataPaymentMethod] = method
	}
	if key != "" {
		metadata[model.MetadataIdempotencyKey] = key
	}
	return metadata
}
