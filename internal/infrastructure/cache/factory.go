package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/dealbridge/internal/domain/integration"
	"github.com/erp/dealbridge/internal/infrastructure/config"
)

const redisConnectTimeout = 5 * time.Second

// StoreFactory creates the CRM token store and the webhook delivery store.
// When Redis is enabled both share one client, owned by the factory.
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	mu      sync.Mutex
	client  *redis.Client
	dialErr error
	dialed  bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateTokenStore returns a Redis store when Redis is enabled and reachable
// and an in-memory store otherwise
func (f *StoreFactory) CreateTokenStore() (integration.TokenStore, error) {
	client, err := f.redis()
	if err != nil {
		return nil, err
	}
	if client == nil {
		f.logger.Info("using in-memory CRM token store")
		return NewInMemoryTokenStore(), nil
	}
	f.logger.Info("using Redis CRM token store")
	return NewRedisTokenStoreWithClient(client, ""), nil
}

// CreateDeliveryStore returns a Redis store when Redis is enabled and
// reachable and an in-memory store otherwise
func (f *StoreFactory) CreateDeliveryStore() (integration.DeliveryStore, error) {
	client, err := f.redis()
	if err != nil {
		return nil, err
	}
	if client == nil {
		f.logger.Info("using in-memory webhook delivery store")
		return NewInMemoryDeliveryStore(), nil
	}
	f.logger.Info("using Redis webhook delivery store")
	return NewRedisDeliveryStoreWithClient(client, ""), nil
}

// Ping checks the shared Redis client. It succeeds trivially when the
// stores are in memory.
func (f *StoreFactory) Ping(ctx context.Context) error {
	f.mu.Lock()
	client := f.client
	f.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Ping(ctx).Err()
}

// UsesRedis reports whether the stores are backed by Redis
func (f *StoreFactory) UsesRedis() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.client != nil
}

// Close closes the shared Redis client, if any
func (f *StoreFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}

// redis dials once. A nil client with a nil error means in-memory stores.
func (f *StoreFactory) redis() (*redis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.redisConfig.Enabled {
		return nil, nil
	}
	if !f.dialed {
		f.dialed = true
		f.client, f.dialErr = dialRedis(f.redisConfig)
	}
	if f.dialErr == nil {
		return f.client, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for shared stores but unavailable: %w", f.dialErr)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Each instance will refresh its own token.",
		zap.Error(f.dialErr),
	)
	return nil, nil
}

func dialRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
