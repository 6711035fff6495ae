// Package idempotency maps client idempotency keys to the orders they created.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"workspace-commerce/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long a key to order mapping stays in the cache.
const DefaultTTL = 24 * time.Hour

// OrderLookup is the subset of order storage the guard needs.
type OrderLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Order, error)
}

// Cache stores key to order id mappings in front of the database.
type Cache interface {
	Get(ctx context.Context, key string) (uuid.UUID, bool, error)
	Set(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error
}

// Guard resolves idempotency keys to previously placed orders.
// The database is the source of truth; the cache only shortcuts lookups.
type Guard struct {
	orders OrderLookup
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewGuard creates a guard. A nil cache disables caching.
func NewGuard(orders OrderLookup, cache Cache, ttl time.Duration, logger zerolog.Logger) *Guard {
	if cache == nil {
		cache = NopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{
		orders: orders,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "idempotency").Logger(),
	}
}

// FindExisting returns the order previously created with key, or nil when the
// key is empty or unused.
func (g *Guard) FindExisting(ctx context.Context, key string) (*model.Order, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}

	if order := g.fromCache(ctx, key); order != nil {
		return order, nil
	}

	order, err := g.orders.GetByIdempotencyKey(ctx, key)
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to look up idempotency key")
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if order == nil {
		return nil, nil
	}

	g.Remember(ctx, key, order.ID)
	return order, nil
}

func (g *Guard) fromCache(ctx context.Context, key string) *model.Order {
	orderID, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn().Err(err).Msg("idempotency cache read failed")
		return nil
	}
	if !ok {
		return nil
	}

	order, err := g.orders.GetByID(ctx, orderID)
	if err != nil {
		g.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("failed to load cached order")
		return nil
	}
	// A stale entry may point at an order that no longer carries the key.
	if order == nil || order.IdempotencyKey == nil || *order.IdempotencyKey != key {
		g.logger.Debug().Str("order_id", orderID.String()).Msg("stale idempotency cache entry")
		return nil
	}
	return order
}

// Remember caches the key to order mapping. Cache failures are logged only.
func (g *Guard) Remember(ctx context.Context, key string, orderID uuid.UUID) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	if err := g.cache.Set(ctx, key, orderID, g.ttl); err != nil {
		g.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("idempotency cache write failed")
	}
}

// CheckFingerprint logs when a replayed key arrives with a different payload.
// The key alone decides the replay; the result reports whether they matched.
func (g *Guard) CheckFingerprint(order *model.Order, fingerprint string) bool {
	if order == nil || order.RequestFingerprint == "" || fingerprint == "" {
		return true
	}
	if order.RequestFingerprint == fingerprint {
		return true
	}
	g.logger.Warn().
		Str("order_id", order.ID.String()).
		Str("stored_fingerprint", order.RequestFingerprint).
		Str("request_fingerprint", fingerprint).
		Msg("idempotency key reused with a different request payload")
	return false
}

type fingerprintItem struct {
	SourceID      string `json:"sourceId"`
	Title         string `json:"title"`
	UnitPrice     int64  `json:"unitPrice"`
	Currency      string `json:"currency"`
	Quantity      int    `json:"quantity"`
	BillingPeriod string `json:"billingPeriod"`
}

type fingerprintPayload struct {
	OwnerID        string                `json:"ownerId"`
	Currency       string                `json:"currency"`
	PaymentMethod  string                `json:"paymentMethod"`
	Items          []fingerprintItem     `json:"items"`
	BillingDetails *model.BillingDetails `json:"billingDetails,omitempty"`
}

// Fingerprint returns a sha256 hex digest of the normalised order command.
func Fingerprint(cmd *model.PlaceOrderCommand) string {
	if cmd == nil {
		return ""
	}

	payload := fingerprintPayload{
		OwnerID:        strings.TrimSpace(cmd.OwnerID),
		Currency:       strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		PaymentMethod:  strings.ToLower(strings.TrimSpace(cmd.PaymentMethod)),
		Items:          make([]fingerprintItem, len(cmd.Items)),
		BillingDetails: cmd.BillingDetails,
	}
	for i, item := range cmd.Items {
		payload.Items[i] = fingerprintItem{
			SourceID:      strings.TrimSpace(item.SourceID),
			Title:         strings.TrimSpace(item.Title),
			UnitPrice:     item.UnitPrice,
			Currency:      strings.ToUpper(strings.TrimSpace(item.Currency)),
			Quantity:      item.Quantity,
			BillingPeriod: string(item.BillingPeriod),
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NopCache never stores anything.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(context.Context, string) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

// Set discards the mapping.
func (NopCache) Set(context.Context, string, uuid.UUID, time.Duration) error {
	return nil
}
