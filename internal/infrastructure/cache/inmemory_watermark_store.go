package cache

import (
	"context"
	"sync"
	"time"

	"github.com/catalog/backend/internal/domain/shared"
)

// entry represents a stored watermark with expiration
type entry struct {
	token     string
	expiresAt time.Time
}

// InMemoryWatermarkStore implements WatermarkStore using an in-memory map
// This is suitable for single-instance deployments and testing
type InMemoryWatermarkStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryWatermarkStore creates a new in-memory watermark store
// It starts a background goroutine to clean up expired entries
func NewInMemoryWatermarkStore() *InMemoryWatermarkStore {
	store := &InMemoryWatermarkStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Last returns the highest token recorded for the key, or "" if none is known
func (s *InMemoryWatermarkStore) Last(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists {
		return "", nil
	}

	// Expired entries are treated as unknown
	if time.Now().After(e.expiresAt) {
		return "", nil
	}

	return e.token, nil
}

// Advance records token as processed for the key
// If a higher token is already recorded the call is a no-op
func (s *InMemoryWatermarkStore) Advance(ctx context.Context, key, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[key]; exists && time.Now().Before(e.expiresAt) {
		if shared.CompareSequenceTokens(e.token, token) >= 0 {
			return nil
		}
	}

	s.entries[key] = entry{
		token:     token,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (s *InMemoryWatermarkStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryWatermarkStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
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
func (s *InMemoryWatermarkStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryWatermarkStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryWatermarkStore implements WatermarkStore
var _ shared.WatermarkStore = (*InMemoryWatermarkStore)(nil)
