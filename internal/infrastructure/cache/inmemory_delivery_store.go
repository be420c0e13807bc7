package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/dealbridge/internal/domain/integration"
)

const defaultDeliveryCleanupInterval = 5 * time.Minute

// InMemoryDeliveryStore implements DeliveryStore using an in-memory map
// This is suitable for single-instance deployments and testing
type InMemoryDeliveryStore struct {
	mu        sync.RWMutex
	entries   map[string]time.Time // key -> expiry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDeliveryStore creates a new in-memory delivery store
// It starts a background goroutine to clean up expired entries
func NewInMemoryDeliveryStore() *InMemoryDeliveryStore {
	return newInMemoryDeliveryStore(time.Now, defaultDeliveryCleanupInterval)
}

func newInMemoryDeliveryStore(now func() time.Time, cleanupEvery time.Duration) *InMemoryDeliveryStore {
	store := &InMemoryDeliveryStore{
		entries:  make(map[string]time.Time),
		now:      now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop(cleanupEvery)

	return store
}

// MarkDelivered records key until now+ttl
// Returns true if the key was newly recorded, false if it was already present
func (s *InMemoryDeliveryStore) MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, exists := s.entries[key]; exists && now.Before(expiresAt) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// IsDelivered checks whether key is recorded and unexpired
func (s *InMemoryDeliveryStore) IsDelivered(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, exists := s.entries[key]
	return exists && s.now().Before(expiresAt), nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (s *InMemoryDeliveryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryDeliveryStore) cleanupLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries from the store
func (s *InMemoryDeliveryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryDeliveryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryDeliveryStore implements DeliveryStore
var _ integration.DeliveryStore = (*InMemoryDeliveryStore)(nil)
