package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/dealbridge/internal/domain/integration"
)

const defaultTokenKey = "dealbridge:crm:access_token"

// RedisTokenStore implements TokenStore using Redis
// This is suitable for deployments where several bridge instances
// should share one CRM bearer token instead of refreshing it each
type RedisTokenStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisTokenStoreWithClient creates a store with an existing Redis client.
// The client is not closed by the store.
func NewRedisTokenStoreWithClient(client *redis.Client, key string) *RedisTokenStore {
	if key == "" {
		key = defaultTokenKey
	}
	return &RedisTokenStore{
		client: client,
		key:    key,
		now:    time.Now,
	}
}

// Load returns the cached token, if any
func (s *RedisTokenStore) Load(ctx context.Context) (integration.AccessToken, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return integration.AccessToken{}, false, nil
	}
	if err != nil {
		return integration.AccessToken{}, false, fmt.Errorf("failed to load access token: %w", err)
	}

	var token integration.AccessToken
	if err := json.Unmarshal(raw, &token); err != nil {
		// A corrupt entry is a cache miss; the next Save overwrites it
		return integration.AccessToken{}, false, nil
	}
	return token, true, nil
}

// Save stores the token; the key expires together with the token
func (s *RedisTokenStore) Save(ctx context.Context, token integration.AccessToken) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode access token: %w", err)
	}

	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Clear(ctx)
	}

	if err := s.client.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

// Clear drops the cached token
func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear access token: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure RedisTokenStore implements TokenStore
var _ integration.TokenStore = (*RedisTokenStore)(nil)
