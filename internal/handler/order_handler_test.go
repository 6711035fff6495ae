package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"workspace-commerce/internal/middleware"
	"workspace-commerce/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newOrderRouter mounts the handler the way the real router does.
func newOrderRouter(h *OrderHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/orders", h.Place)
	r.Get("/api/orders", h.List)
	r.Get("/api/orders/{id}", h.GetByID)
	r.Post("/api/orders/{id}/cancel", h.Cancel)
	r.Get("/api/orders/{id}/provisioning", h.Provisioning)
	r.Get("/api/orders/{id}/invoice/archive", h.ArchivedInvoice)
	return r
}

// newRequest builds a request, authenticated as owner unless owner is empty.
func newRequest(t *testing.T, method, path string, body interface{}, owner string) *http.Request {
	t.Helper()

	var buf []byte
	if body != nil {
		if str, ok := body.(string); ok {
			buf = []byte(str)
		} else {
			var err error
			buf, err = json.Marshal(body)
			require.NoError(t, err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(buf))
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req = req.WithContext(middleware.WithOwnerID(req.Context(), owner))
	}
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func intPtr(v int) *int { return &v }

func validPlaceRequest() *model.PlaceOrderRequest {
	return &model.PlaceOrderRequest{
		Items: []model.OrderItemRequest{
			{ID: "ws-pro", Title: "Workspace Pro", Price: 1000, Currency: "INR", Quantity: intPtr(2), Period: "per month"},
			{ID: "logo", Title: "Logo Design", Price: 500, Currency: "INR"},
		},
		Currency:      "INR",
		PaymentMethod: "card",
		BillingDetails: &model.BillingDetails{
			Name: "Asha Rao", Address: "12 MG Road", City: "Bengaluru", Country: "IN",
		},
		Metadata: model.RequestMetadata{ClientRequestID: "client-1"},
	}
}

func TestOrderHandler_Place(t *testing.T) {
	order := &model.Order{ID: uuid.New(), OwnerID: "user-42", Total: 2950, Status: model.OrderStatusPending}
	invoice := &model.Invoice{ID: uuid.New(), OrderID: order.ID, InvoiceNumber: "INV-202604-000001"}

	tests := []struct {
		name           string
		owner          string
		requestBody    interface{}
		mockReturn     *model.PlaceOrderResult
		mockError      error
		expectedStatus int
		expectedCode   string
		expectService  bool
	}{
		{
			name:           "Created",
			owner:          "user-42",
			requestBody:    validPlaceRequest(),
			mockReturn:     &model.PlaceOrderResult{Order: order, Invoice: invoice},
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
		{
			name:           "Replayed",
			owner:          "user-42",
			requestBody:    validPlaceRequest(),
			mockReturn:     &model.PlaceOrderResult{Order: order, Invoice: invoice, Replayed: true},
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Anonymous",
			owner:          "",
			requestBody:    validPlaceRequest(),
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   model.ErrCodeUnauthenticated,
		},
		{
			name:           "Invalid JSON",
			owner:          "user-42",
			requestBody:    "invalid json",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:  "Struct validation failure",
			owner: "user-42",
			requestBody: &model.PlaceOrderRequest{
				Items:    []model.OrderItemRequest{{ID: "x", Price: 1}},
				Currency: "RUPEES",
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   model.ErrCodeValidation,
		},
		{
			name:  "Unknown billing period",
			owner: "user-42",
			requestBody: &model.PlaceOrderRequest{
				Items: []model.OrderItemRequest{{ID: "x", Price: 1, Period: "fortnightly"}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
		},
		{
			name:           "Empty cart",
			owner:          "user-42",
			requestBody:    &model.PlaceOrderRequest{Currency: "INR"},
			mockError:      model.ErrEmptyCart,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
			expectService:  true,
		},
		{
			name:           "Key used by another owner",
			owner:          "user-42",
			requestBody:    validPlaceRequest(),
			mockError:      model.ErrKeyOwnedElsewhere,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeConflict,
			expectService:  true,
		},
		{
			name:           "Service internal error",
			owner:          "user-42",
			requestBody:    validPlaceRequest(),
			mockError:      model.NewServerError("Failed to place order", errors.New("database connection failed")),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
			expectService:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fulfillment := new(MockFulfillmentService)
			h := NewOrderHandler(fulfillment, new(MockOrderService), zerolog.Nop())

			if tt.expectService {
				fulfillment.On("PlaceOrder", mock.Anything, mock.AnythingOfType("*model.PlaceOrderCommand")).
					Return(tt.mockReturn, tt.mockError)
			}

			w := httptest.NewRecorder()
			newOrderRouter(h).ServeHTTP(w, newRequest(t, http.MethodPost, "/api/orders", tt.requestBody, tt.owner))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				body := decodeError(t, w)
				assert.Equal(t, tt.expectedCode, body.Error)
				assert.NotContains(t, body.Message, "database connection failed")
			} else {
				var resp model.PlaceOrderResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, order.ID, resp.Order.ID)
				assert.Equal(t, invoice.InvoiceNumber, resp.Invoice.InvoiceNumber)
			}

			if tt.expectService {
				fulfillment.AssertExpectations(t)
			} else {
				fulfillment.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOrderHandler_Place_MapsCommand(t *testing.T) {
	fulfillment := new(MockFulfillmentService)
	h := NewOrderHandler(fulfillment, new(MockOrderService), zerolog.Nop())

	var got *model.PlaceOrderCommand
	fulfillment.On("PlaceOrder", mock.Anything, mock.AnythingOfType("*model.PlaceOrderCommand")).
		Run(func(args mock.Arguments) { got = args.Get(1).(*model.PlaceOrderCommand) }).
		Return(&model.PlaceOrderResult{Order: &model.Order{}, Invoice: &model.Invoice{}}, nil)

	req := newRequest(t, http.MethodPost, "/api/orders", validPlaceRequest(), "user-42")
	req.Header.Set(IdempotencyKeyHeader, " header-key ")
	w := httptest.NewRecorder()
	newOrderRouter(h).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "user-42", got.OwnerID)
	assert.Equal(t, "header-key", got.IdempotencyKey)
	assert.Equal(t, "card", got.PaymentMethod)
	require.Len(t, got.Items, 2)
	assert.Equal(t, model.OrderItem{
		SourceID: "ws-pro", Title: "Workspace Pro", UnitPrice: 1000, Currency: "INR", Quantity: 2,
		BillingPeriod: model.BillingPeriodMonthly,
	}, got.Items[0])
	assert.Equal(t, 1, got.Items[1].Quantity)
	assert.Equal(t, model.BillingPeriodOneTime, got.Items[1].BillingPeriod)
}

func TestToPlaceOrderCommand_FallsBackToClientRequestID(t *testing.T) {
	cmd, err := toPlaceOrderCommand("user-42", validPlaceRequest(), "")

	require.NoError(t, err)
	assert.Equal(t, "client-1", cmd.IdempotencyKey)
}

func TestOrderHandler_Place_IdempotencyKeyLength(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "At the limit",
			header:         strings.Repeat("k", MaxIdempotencyKeyLength),
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
		{
			name:           "Over the limit",
			header:         strings.Repeat("k", MaxIdempotencyKeyLength+1),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Surrounding spaces do not count",
			header:         "  " + strings.Repeat("k", MaxIdempotencyKeyLength) + "  ",
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fulfillment := new(MockFulfillmentService)
			h := NewOrderHandler(fulfillment, new(MockOrderService), zerolog.Nop())
			if tt.expectService {
				fulfillment.On("PlaceOrder", mock.Anything, mock.AnythingOfType("*model.PlaceOrderCommand")).
					Return(&model.PlaceOrderResult{Order: &model.Order{}, Invoice: &model.Invoice{}}, nil)
			}

			req := newRequest(t, http.MethodPost, "/api/orders", validPlaceRequest(), "user-42")
			req.Header.Set(IdempotencyKeyHeader, tt.header)
			w := httptest.NewRecorder()
			newOrderRouter(h).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				fulfillment.AssertExpectations(t)
				return
			}
			body := decodeError(t, w)
			assert.Equal(t, model.ErrCodeValidation, body.Error)
			assert.Contains(t, body.Message, "at most 128 characters")
			fulfillment.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderHandler_List(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		owner          string
		wantLimit      int
		wantOffset     int
		expectedStatus int
		expectService  bool
	}{
		{name: "Defaults", query: "", owner: "user-42", wantLimit: 0, wantOffset: 0, expectedStatus: http.StatusOK, expectService: true},
		{name: "Explicit page", query: "?limit=5&offset=10", owner: "user-42", wantLimit: 5, wantOffset: 10, expectedStatus: http.StatusOK, expectService: true},
		{name: "Invalid limit", query: "?limit=abc", owner: "user-42", expectedStatus: http.StatusBadRequest},
		{name: "Negative offset", query: "?offset=-1", owner: "user-42", expectedStatus: http.StatusBadRequest},
		{name: "Anonymous", query: "", owner: "", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(MockOrderService)
			h := NewOrderHandler(new(MockFulfillmentService), orders, zerolog.Nop())

			if tt.expectService {
				orders.On("ListByOwner", mock.Anything, tt.owner, tt.wantLimit, tt.wantOffset).
					Return([]model.Order{{ID: uuid.New(), OwnerID: tt.owner}}, nil)
			}

			w := httptest.NewRecorder()
			newOrderRouter(h).ServeHTTP(w, newRequest(t, http.MethodGet, "/api/orders"+tt.query, nil, tt.owner))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				var resp model.OrderListResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Len(t, resp.Orders, 1)
				assert.Positive(t, resp.Limit)
				orders.AssertExpectations(t)
			}
		})
	}
}

func TestOrderHandler_GetByID(t *testing.T) {
	orderID := uuid.New()
	details := &model.OrderDetails{
		Order:   &model.Order{ID: orderID, OwnerID: "user-42"},
		Invoice: &model.Invoice{ID: uuid.New(), OrderID: orderID},
	}

	tests := []struct {
		name           string
		path           string
		mockReturn     *model.OrderDetails
		mockError      error
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "Success",
			path:           "/api/orders/" + orderID.String(),
			mockReturn:     details,
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Order not found",
			path:           "/api/orders/" + orderID.String(),
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
			expectService:  true,
		},
		{
			name:           "Invalid UUID",
			path:           "/api/orders/invalid-uuid",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Service error",
			path:           "/api/orders/" + orderID.String(),
			mockError:      model.NewServerError("Failed to load order", errors.New("database error")),
			expectedStatus: http.StatusInternalServerError,
			expectService:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(MockOrderService)
			h := NewOrderHandler(new(MockFulfillmentService), orders, zerolog.Nop())

			if tt.expectService {
				orders.On("GetByID", mock.Anything, "user-42", orderID).Return(tt.mockReturn, tt.mockError)
			}

			w := httptest.NewRecorder()
			newOrderRouter(h).ServeHTTP(w, newRequest(t, http.MethodGet, tt.path, nil, "user-42"))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var resp model.OrderDetails
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, orderID, resp.Order.ID)
				assert.Equal(t, details.Invoice.ID, resp.Invoice.ID)
			}
			if tt.expectService {
				orders.AssertExpectations(t)
			}
		})
	}
}

func TestOrderHandler_Cancel(t *testing.T) {
	orderID := uuid.New()

	tests := []struct {
		name           string
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Cancelled",
			mockReturn:     &model.Order{ID: orderID, Status: model.OrderStatusCancelled},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Already paid",
			mockError:      model.ErrInvalidTransition,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "Not found",
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(MockOrderService)
			h := NewOrderHandler(new(MockFulfillmentService), orders, zerolog.Nop())
			orders.On("Cancel", mock.Anything, "user-42", orderID).Return(tt.mockReturn, tt.mockError)

			w := httptest.NewRecorder()
			path := "/api/orders/" + orderID.String() + "/cancel"
			newOrderRouter(h).ServeHTTP(w, newRequest(t, http.MethodPost, path, nil, "user-42"))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.mockReturn != nil {
				var resp model.OrderResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, model.OrderStatusCancelled, resp.Order.Status)
			}
			orders.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_Provisioning(t *testing.T) {
	orderID := uuid.New()
	orders := new(MockOrderService)
	h := NewOrderHandler(new(MockFulfillmentService), orders, zerolog.Nop())

	prov := &model.Provisioning{
		Project:       &model.Project{ID: uuid.New(), OrderID: orderID, Name: "Workspace Pro"},
		Subscriptions: []model.Subscription{{ID: uuid.New(), OrderID: orderID, PlanName: "Workspace Pro"}},
	}
	orders.On("GetProvisioning", mock.Anything, "user-42", orderID).Return(prov, nil)

	w := httptest.NewRecorder()
	path := "/api/orders/" + orderID.String() + "/provisioning"
	newOrderRouter(h).ServeHTTP(w, newRequest(t, http.MethodGet, path, nil, "user-42"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.Provisioning
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Workspace Pro", resp.Project.Name)
	assert.Len(t, resp.Subscriptions, 1)
}

func TestOrderHandler_ArchivedInvoice(t *testing.T) {
	orderID := uuid.New()
	archived := &model.Invoice{ID: uuid.New(), OrderID: orderID, InvoiceNumber: "INV-202604-000003", Total: 2950}

	tests := []struct {
		name           string
		owner          string
		path           string
		mockReturn     *model.Invoice
		mockError      error
		expectedStatus int
		expectedCode   string
		expectService  bool
	}{
		{
			name:           "Success",
			owner:          "user-42",
			path:           "/api/orders/" + orderID.String() + "/invoice/archive",
			mockReturn:     archived,
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Not archived",
			owner:          "user-42",
			path:           "/api/orders/" + orderID.String() + "/invoice/archive",
			mockError:      model.ErrNotArchived,
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeNotFound,
			expectService:  true,
		},
		{
			name:           "Anonymous",
			path:           "/api/orders/" + orderID.String() + "/invoice/archive",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   model.ErrCodeUnauthenticated,
		},
		{
			name:           "Invalid UUID",
			owner:          "user-42",
			path:           "/api/orders/not-a-uuid/invoice/archive",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(MockOrderService)
			h := NewOrderHandler(new(MockFulfillmentService), orders, zerolog.Nop())
			if tt.expectService {
				orders.On("GetArchivedInvoice", mock.Anything, tt.owner, orderID).Return(tt.mockReturn, tt.mockError)
			}

			w := httptest.NewRecorder()
			newOrderRouter(h).ServeHTTP(w, newRequest(t, http.MethodGet, tt.path, nil, tt.owner))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			} else {
				var resp model.Invoice
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, archived.InvoiceNumber, resp.InvoiceNumber)
				assert.Equal(t, int64(2950), resp.Total)
			}
			if tt.expectService {
				orders.AssertExpectations(t)
			} else {
				orders.AssertNotCalled(t, "GetArchivedInvoice", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestWriteError_IncludesCorrelationID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req = req.WithContext(middleware.WithCorrelationID(req.Context(), "req-77"))
	w := httptest.NewRecorder()

	writeError(w, req, errors.New("raw driver failure"), zerolog.Nop())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, model.ErrCodeInternalError, body.Error)
	assert.Equal(t, "req-77", body.CorrelationID)
	assert.NotContains(t, body.Message, "raw driver failure")
}
