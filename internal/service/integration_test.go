package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"workspace-commerce/internal/archive"
	"workspace-commerce/internal/database/dbtest"
	"workspace-commerce/internal/idempotency"
	"workspace-commerce/internal/ledger"
	"workspace-commerce/internal/model"
	"workspace-commerce/internal/pricing"
	"workspace-commerce/internal/provisioning"
	"workspace-commerce/internal/repository"
	"workspace-commerce/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	db          *dbtest.TestDB
	fulfillment service.FulfillmentService
	orders      service.OrderService
	ledger      *ledger.Service
	archiveDir  string
}

func newStack(t *testing.T) *stack {
	t.Helper()

	db := dbtest.Setup(t)
	logger := zerolog.Nop()

	orderRepo := repository.NewOrderRepository(db.Pool, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.Pool, logger)
	provisioningRepo := repository.NewProvisioningRepository(db.Pool, logger)
	paymentRepo := repository.NewPaymentRepository(db.Pool, logger)

	dir := t.TempDir()
	guard := idempotency.NewGuard(orderRepo, nil, time.Hour, logger)
	archiver := archive.NewFileArchiver(dir, logger)

	return &stack{
		db: db,
		fulfillment: service.NewFulfillmentService(
			orderRepo, invoiceRepo, pricing.NewCalculator(), guard,
			provisioning.NewProvisioner(provisioningRepo, logger),
			archiver, time.Second, nil, logger,
		),
		orders:     service.NewOrderService(orderRepo, invoiceRepo, provisioningRepo, archiver, logger),
		ledger:     ledger.NewService(paymentRepo, ledger.NewProjector(orderRepo, invoiceRepo, logger), nil, logger),
		archiveDir: dir,
	}
}

func cart(key string) *model.PlaceOrderCommand {
	return &model.PlaceOrderCommand{
		OwnerID: "user-42",
		Items: []model.OrderItem{
			{SourceID: "ws-pro", Title: "Workspace Pro", UnitPrice: 1000, Currency: "INR", Quantity: 2, BillingPeriod: model.BillingPeriodMonthly},
			{SourceID: "seo", Title: "SEO Audit", UnitPrice: 300, Currency: "INR", Quantity: 1, BillingPeriod: model.BillingPeriodYearly},
			{SourceID: "logo", Title: "Logo Design", UnitPrice: 500, Currency: "INR", Quantity: 1, BillingPeriod: model.BillingPeriodOneTime},
		},
		Currency:       "INR",
		PaymentMethod:  "upi",
		IdempotencyKey: key,
	}
}

func countRows(t *testing.T, db *dbtest.TestDB, table string) int {
	t.Helper()
	var n int
	err := db.Pool.QueryRow(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	require.NoError(t, err)
	return n
}

// failingSubscriptions inserts projects for real but fails every subscription
// insert, after the project row is already written in the transaction.
type failingSubscriptions struct {
	repository.ProvisioningRepository
}

func (failingSubscriptions) CreateSubscriptions(ctx context.Context, tx pgx.Tx, subs []model.Subscription) error {
	return errors.New("subscriptions table unavailable")
}

// failingInvoices allocates real invoice numbers but fails the invoice insert.
type failingInvoices struct {
	repository.InvoiceRepository
}

func (failingInvoices) CreateInvoice(ctx context.Context, tx pgx.Tx, invoice *model.Invoice) error {
	return errors.New("invoices table unavailable")
}

func TestOrderWorkflow_Integration(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	t.Run("place order creates everything in one unit", func(t *testing.T) {
		s.db.Truncate(t)

		result, err := s.fulfillment.PlaceOrder(ctx, cart(""))
		require.NoError(t, err)

		assert.Equal(t, int64(2800), result.Order.Subtotal)
		assert.Equal(t, int64(504), result.Order.Tax)
		assert.Equal(t, int64(3304), result.Order.Total)
		assert.Len(t, result.Subscriptions, 2)

		details, err := s.orders.GetByID(ctx, "user-42", result.Order.ID)
		require.NoError(t, err)
		require.NotNil(t, details.Invoice)
		assert.Equal(t, result.Invoice.InvoiceNumber, details.Invoice.InvoiceNumber)
		assert.Equal(t, details.Order.Total, details.Invoice.Total)
		require.NotNil(t, details.Order.InvoiceID)
		assert.Equal(t, details.Invoice.ID, *details.Order.InvoiceID)
		assert.Len(t, details.Order.Items, 3)

		prov, err := s.orders.GetProvisioning(ctx, "user-42", result.Order.ID)
		require.NoError(t, err)
		require.NotNil(t, prov.Project)
		assert.Len(t, prov.Subscriptions, 2)

		archived, err := archive.NewFileArchiver(s.archiveDir, zerolog.Nop()).Load(ctx, result.Invoice.InvoiceNumber)
		require.NoError(t, err)
		assert.Equal(t, result.Invoice.ID, archived.ID)

		served, err := s.orders.GetArchivedInvoice(ctx, "user-42", result.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, result.Invoice.InvoiceNumber, served.InvoiceNumber)

		_, err = s.orders.GetArchivedInvoice(ctx, "user-7", result.Order.ID)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})

	t.Run("failed placement leaves no rows behind", func(t *testing.T) {
		logger := zerolog.Nop()
		orderRepo := repository.NewOrderRepository(s.db.Pool, logger)
		invoiceRepo := repository.NewInvoiceRepository(s.db.Pool, logger)
		provisioningRepo := repository.NewProvisioningRepository(s.db.Pool, logger)

		tests := []struct {
			name         string
			invoices     repository.InvoiceRepository
			provisioning repository.ProvisioningRepository
		}{
			{
				name:         "subscription insert fails",
				invoices:     invoiceRepo,
				provisioning: failingSubscriptions{provisioningRepo},
			},
			{
				name:         "invoice insert fails after numbering",
				invoices:     failingInvoices{invoiceRepo},
				provisioning: provisioningRepo,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s.db.Truncate(t)

				broken := service.NewFulfillmentService(
					orderRepo, tt.invoices, pricing.NewCalculator(),
					idempotency.NewGuard(orderRepo, nil, time.Hour, logger),
					provisioning.NewProvisioner(tt.provisioning, logger),
					nil, time.Second, nil, logger,
				)

				result, err := broken.PlaceOrder(ctx, cart("atomic-1"))
				require.Error(t, err)
				assert.Nil(t, result)
				assert.Equal(t, model.ErrCodeInternalError, model.ErrorCode(err))

				for _, table := range []string{"orders", "order_items", "invoices", "projects", "subscriptions", "invoice_sequences"} {
					assert.Zero(t, countRows(t, s.db, table), table)
				}

				// The key was not consumed and numbering starts over without a gap.
				placed, err := s.fulfillment.PlaceOrder(ctx, cart("atomic-1"))
				require.NoError(t, err)
				assert.False(t, placed.Replayed)
				assert.Equal(t, repository.FormatInvoiceNumber(placed.Invoice.IssuedAt, 1), placed.Invoice.InvoiceNumber)
			})
		}
	})

	t.Run("invoice numbers are sequential", func(t *testing.T) {
		s.db.Truncate(t)

		first, err := s.fulfillment.PlaceOrder(ctx, cart(""))
		require.NoError(t, err)
		second, err := s.fulfillment.PlaceOrder(ctx, cart(""))
		require.NoError(t, err)

		assert.Equal(t, repository.FormatInvoiceNumber(first.Invoice.IssuedAt, 1), first.Invoice.InvoiceNumber)
		assert.Equal(t, repository.FormatInvoiceNumber(second.Invoice.IssuedAt, 2), second.Invoice.InvoiceNumber)
	})

	t.Run("same key replays the first order", func(t *testing.T) {
		s.db.Truncate(t)

		first, err := s.fulfillment.PlaceOrder(ctx, cart("cart-1"))
		require.NoError(t, err)
		again, err := s.fulfillment.PlaceOrder(ctx, cart("cart-1"))
		require.NoError(t, err)

		assert.False(t, first.Replayed)
		assert.True(t, again.Replayed)
		assert.Equal(t, first.Order.ID, again.Order.ID)
		assert.Equal(t, first.Invoice.InvoiceNumber, again.Invoice.InvoiceNumber)
		assert.Equal(t, 1, countRows(t, s.db, "orders"))
		assert.Equal(t, 1, countRows(t, s.db, "invoices"))
		assert.Equal(t, 1, countRows(t, s.db, "projects"))
	})

	t.Run("concurrent placements with one key create one order", func(t *testing.T) {
		s.db.Truncate(t)

		const workers = 8
		ids := make([]uuid.UUID, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := s.fulfillment.PlaceOrder(ctx, cart("race-key"))
				errs[i] = err
				if err == nil {
					ids[i] = result.Order.ID
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
		assert.Equal(t, 1, countRows(t, s.db, "orders"))
		assert.Equal(t, 1, countRows(t, s.db, "invoices"))
		assert.Equal(t, 2, countRows(t, s.db, "subscriptions"))
	})

	t.Run("succeeded payment marks order and invoice paid once", func(t *testing.T) {
		s.db.Truncate(t)

		placed, err := s.fulfillment.PlaceOrder(ctx, cart(""))
		require.NoError(t, err)

		cmd := &model.RecordAttemptCommand{
			OrderID:  placed.Order.ID,
			Provider: "razorpay",
			Amount:   placed.Order.Total,
			Currency: "INR",
			Status:   model.PaymentStatusSucceeded,
		}
		_, err = s.ledger.RecordAttempt(ctx, cmd)
		require.NoError(t, err)

		details, err := s.orders.GetByID(ctx, "user-42", placed.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPaid, details.Order.Status)
		require.True(t, details.Invoice.Paid)
		firstPaidAt := *details.Invoice.PaidAt

		_, err = s.ledger.RecordAttempt(ctx, cmd)
		require.NoError(t, err)

		details, err = s.orders.GetByID(ctx, "user-42", placed.Order.ID)
		require.NoError(t, err)
		assert.True(t, firstPaidAt.Equal(*details.Invoice.PaidAt))
		assert.Equal(t, 2, countRows(t, s.db, "payment_attempts"))

		_, err = s.orders.Cancel(ctx, "user-42", placed.Order.ID)
		assert.Equal(t, model.ErrCodeConflict, model.ErrorCode(err))
	})

	t.Run("cancel pending order", func(t *testing.T) {
		s.db.Truncate(t)

		placed, err := s.fulfillment.PlaceOrder(ctx, cart(""))
		require.NoError(t, err)

		cancelled, err := s.orders.Cancel(ctx, "user-42", placed.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)

		_, err = s.ledger.RecordAttempt(ctx, &model.RecordAttemptCommand{
			OrderID: placed.Order.ID, Provider: "razorpay", Amount: 1, Currency: "INR", Status: model.PaymentStatusSucceeded,
		})
		require.NoError(t, err)

		details, err := s.orders.GetByID(ctx, "user-42", placed.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, details.Order.Status)
		assert.False(t, details.Invoice.Paid)
	})

	t.Run("list is owner scoped", func(t *testing.T) {
		s.db.Truncate(t)

		_, err := s.fulfillment.PlaceOrder(ctx, cart(""))
		require.NoError(t, err)
		other := cart("")
		other.OwnerID = "user-7"
		_, err = s.fulfillment.PlaceOrder(ctx, other)
		require.NoError(t, err)

		orders, err := s.orders.ListByOwner(ctx, "user-42", 0, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "user-42", orders[0].OwnerID)
	})
}
