package integration

import (
	"context"
	"time"
)

// DeliveryStore remembers webhook deliveries that were forwarded
// successfully, keyed by the sender's delivery id
type DeliveryStore interface {
	// MarkDelivered records key for ttl. It returns false if key was
	// already recorded and has not expired.
	MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsDelivered reports whether key is recorded and unexpired
	IsDelivered(ctx context.Context, key string) (bool, error)

	// Close releases the store's resources
	Close() error
}
