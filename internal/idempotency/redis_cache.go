package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyIdempotencyOrder = "idempotency:order:%s"

// RedisCache keeps key to order mappings in Redis with an expiry.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache creates a cache backed by rdb.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// redisKey hashes the client key so arbitrary input maps to a bounded key.
func redisKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return fmt.Sprintf(keyIdempotencyOrder, hex.EncodeToString(sum[:]))
}

// Get returns the cached order id for key.
func (c *RedisCache) Get(ctx context.Context, key string) (uuid.UUID, bool, error) {
	val, err := c.rdb.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("invalid cached order id %q: %w", val, err)
	}
	return id, true, nil
}

// Set stores the order id for key until ttl elapses.
func (c *RedisCache) Set(ctx context.Context, key string, orderID uuid.UUID, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, redisKey(key), orderID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to write idempotency key: %w", err)
	}
	return nil
}
