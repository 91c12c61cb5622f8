package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache kinds used as key segments.
const (
	CacheKindMargin  = "margin"
	CacheKindDunning = "dunning"
)

const defaultKeyPrefix = "freight:billing"

// RedisConfigCache keeps serialized customer configurations in Redis so that
// margin resolution does not hit Postgres on every quote.
type RedisConfigCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisConfigCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisConfigCache {
	return &RedisConfigCache{
		client: client,
		prefix: normalizePrefix(prefix),
		ttl:    ttl,
	}
}

func normalizePrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = defaultKeyPrefix
	}
	return strings.TrimSuffix(trimmed, ":")
}

func (c *RedisConfigCache) key(kind string, customerID uuid.UUID) string {
	return fmt.Sprintf("%s:config:%s:%s", c.prefix, kind, customerID)
}

func (c *RedisConfigCache) disabled() bool {
	return c == nil || c.client == nil || c.ttl <= 0
}

// Load decodes the cached entry into dst. It reports false on a miss.
func (c *RedisConfigCache) Load(ctx context.Context, kind string, customerID uuid.UUID, dst any) (bool, error) {
	if c.disabled() {
		return false, nil
	}

	raw, err := c.client.Get(ctx, c.key(kind, customerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s configuration: %w", kind, err)
	}
	return true, nil
}

// Store writes value under the customer's key with the configured TTL.
func (c *RedisConfigCache) Store(ctx context.Context, kind string, customerID uuid.UUID, value any) error {
	if c.disabled() {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s configuration: %w", kind, err)
	}
	return c.client.Set(ctx, c.key(kind, customerID), raw, c.ttl).Err()
}

// Invalidate drops the customer's cached entry.
func (c *RedisConfigCache) Invalidate(ctx context.Context, kind string, customerID uuid.UUID) error {
	if c.disabled() {
		return nil
	}
	return c.client.Del(ctx, c.key(kind, customerID)).Err()
}
