package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cosmic-chat/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - user:{user_id} - profile snapshot cache, 5m TTL

// CacheConfig contains configuration for caching
type CacheConfig struct {
	UserTTL time.Duration // TTL for user snapshot cache (default 5m)
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		UserTTL: 5 * time.Minute,
	}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

// NewCacheStore creates a new cache store
func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{
		client: client,
		config: config,
	}
}

// GetUser retrieves a user snapshot from cache. A nil result with nil
// error is a cache miss.
func (c *CacheStore) GetUser(ctx context.Context, userID uuid.UUID) (*user.Snapshot, error) {
	key := fmt.Sprintf("user:%s", userID.String())
	data, err := c.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var snap user.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetUser stores a user snapshot in cache
func (c *CacheStore) SetUser(ctx context.Context, snap user.Snapshot) error {
	key := fmt.Sprintf("user:%s", snap.ID.String())
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.config.UserTTL).Err()
}

// InvalidateUser removes a user snapshot from cache
func (c *CacheStore) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	key := fmt.Sprintf("user:%s", userID.String())
	return c.client.Del(ctx, key).Err()
}

// Ping checks if Redis is available
func (c *CacheStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
