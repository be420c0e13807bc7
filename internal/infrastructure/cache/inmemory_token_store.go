package cache

import (
	"context"
	"sync"

	"github.com/erp/dealbridge/internal/domain/integration"
)

// InMemoryTokenStore implements TokenStore with a single in-process entry.
// This is suitable for single-instance deployments and testing
type InMemoryTokenStore struct {
	mu    sync.RWMutex
	token integration.AccessToken
	set   bool
}

// NewInMemoryTokenStore creates an empty in-memory token store
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{}
}

// Load returns the cached token, if any
func (s *InMemoryTokenStore) Load(ctx context.Context) (integration.AccessToken, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.set, nil
}

// Save replaces the cached token
func (s *InMemoryTokenStore) Save(ctx context.Context, token integration.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Clear drops the cached token
func (s *InMemoryTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = integration.AccessToken{}
	s.set = false
	return nil
}

// Ensure InMemoryTokenStore implements TokenStore
var _ integration.TokenStore = (*InMemoryTokenStore)(nil)
