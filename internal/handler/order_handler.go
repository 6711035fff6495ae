package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"workspace-commerce/internal/model"
	"workspace-commerce/internal/service"

	"github.com/rs/zerolog"
)

// IdempotencyKeyHeader lets clients supply the key outside the body.
const IdempotencyKeyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLength matches the limit on metadata.clientRequestId.
const MaxIdempotencyKeyLength = 128

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	fulfillment service.FulfillmentService
	orders      service.OrderService
	logger      zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(fulfillment service.FulfillmentService, orders service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		fulfillment: fulfillment,
		orders:      orders,
		logger:      logger.With().Str("handler", "order").Logger(),
	}
}

// Place handles POST /api/orders requests. New orders answer 201, replays 200.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	owner, err := requireOwner(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.PlaceOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := validate.Struct(&req); err != nil {
		writeValidationError(w, r, err, h.logger)
		return
	}

	cmd, err := toPlaceOrderCommand(owner, &req, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.fulfillment.PlaceOrder(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}

	writeJSON(w, status, model.PlaceOrderResponse{
		Order:   result.Order,
		Invoice: result.Invoice,
	})
}

// List handles GET /api/orders requests.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := requireOwner(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orders, err := h.orders.ListByOwner(r.Context(), owner, limit, offset)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	limit, offset = service.ClampPage(limit, offset)
	writeJSON(w, http.StatusOK, model.OrderListResponse{
		Orders: orders,
		Limit:  limit,
		Offset: offset,
	})
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	owner, err := requireOwner(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	details, err := h.orders.GetByID(r.Context(), owner, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// Cancel handles POST /api/orders/{id}/cancel requests.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner, err := requireOwner(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.orders.Cancel(r.Context(), owner, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.OrderResponse{Order: order})
}

// Provisioning handles GET /api/orders/{id}/provisioning requests.
func (h *OrderHandler) Provisioning(w http.ResponseWriter, r *http.Request) {
	owner, err := requireOwner(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	prov, err := h.orders.GetProvisioning(r.Context(), owner, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, prov)
}

// ArchivedInvoice returns the archived copy of the order's invoice.
func (h *OrderHandler) ArchivedInvoice(w http.ResponseWriter, r *http.Request) {
	owner, err := requireOwner(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	invoice, err := h.orders.GetArchivedInvoice(r.Context(), owner, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, invoice)
}

// toPlaceOrderCommand maps the wire request onto the domain command. The
// header key wins over metadata.clientRequestId.
func toPlaceOrderCommand(owner string, req *model.PlaceOrderRequest, headerKey string) (*model.PlaceOrderCommand, error) {
	items := make([]model.OrderItem, len(req.Items))
	for i, item := range req.Items {
		period, err := model.ParseBillingPeriod(item.Period)
		if err != nil {
			return nil, err
		}

		quantity := 1
		if item.Quantity != nil {
			quantity = *item.Quantity
		}

		items[i] = model.OrderItem{
			SourceID:      item.ID,
			Title:         item.Title,
			UnitPrice:     item.Price,
			Currency:      item.Currency,
			Quantity:      quantity,
			BillingPeriod: period,
		}
	}

	key := strings.TrimSpace(headerKey)
	if key == "" {
		key = strings.TrimSpace(req.Metadata.ClientRequestID)
	}
	if len(key) > MaxIdempotencyKeyLength {
		return nil, model.NewValidationError(
			fmt.Sprintf("Idempotency key must be at most %d characters", MaxIdempotencyKeyLength))
	}

	return &model.PlaceOrderCommand{
		OwnerID:        owner,
		Items:          items,
		Currency:       req.Currency,
		PaymentMethod:  req.PaymentMethod,
		BillingDetails: req.BillingDetails,
		IdempotencyKey: key,
	}, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, model.NewValidationError("Invalid " + name + " parameter")
	}
	return v, nil
}
