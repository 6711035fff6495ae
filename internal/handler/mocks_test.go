package handler

import (
	"context"

	"workspace-commerce/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockFulfillmentService is a mock implementation of FulfillmentService.
type MockFulfillmentService struct {
	mock.Mock
}

func (m *MockFulfillmentService) PlaceOrder(ctx context.Context, cmd *model.PlaceOrderCommand) (*model.PlaceOrderResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlaceOrderResult), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*model.OrderDetails, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderDetails), args.Error(1)
}

func (m *MockOrderService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, ownerID string, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetProvisioning(ctx context.Context, ownerID string, id uuid.UUID) (*model.Provisioning, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Provisioning), args.Error(1)
}

func (m *MockOrderService) GetArchivedInvoice(ctx context.Context, ownerID string, id uuid.UUID) (*model.Invoice, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

// MockPaymentLedger is a mock implementation of PaymentLedger.
type MockPaymentLedger struct {
	mock.Mock
}

func (m *MockPaymentLedger) RecordAttempt(ctx context.Context, cmd *model.RecordAttemptCommand) (*model.PaymentAttempt, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentLedger) Reconcile(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentLedger) ListAttempts(ctx context.Context, orderID uuid.UUID) ([]model.PaymentAttempt, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentAttempt), args.Error(1)
}
