package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/dealbridge/internal/domain/integration"
)

const defaultDeliveryKeyPrefix = "dealbridge:delivery:"

// RedisDeliveryStore implements DeliveryStore using Redis
// Several bridge instances behind one webhook URL share the record
type RedisDeliveryStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDeliveryStoreWithClient creates a store with an existing Redis client.
// The client is not closed by the store.
func NewRedisDeliveryStoreWithClient(client *redis.Client, keyPrefix string) *RedisDeliveryStore {
	if keyPrefix == "" {
		keyPrefix = defaultDeliveryKeyPrefix
	}
	return &RedisDeliveryStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkDelivered records key with a TTL
// Uses SETNX (SET if Not eXists) for atomic operation
func (s *RedisDeliveryStore) MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery: %w", err)
	}
	return ok, nil
}

// IsDelivered checks whether key is recorded
func (s *RedisDeliveryStore) IsDelivered(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check delivery: %w", err)
	}
	return n > 0, nil
}

// Close is a no-op; the client belongs to whoever created it
func (s *RedisDeliveryStore) Close() error {
	return nil
}

// Ensure RedisDeliveryStore implements DeliveryStore
var _ integration.DeliveryStore = (*RedisDeliveryStore)(nil)
