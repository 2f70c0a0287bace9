package cache

import (
	"context"
	"sync"
	"time"

	"github.com/venda/backend/internal/domain/shared"
)

// entry is either a completed response payload or an in-flight claim.
// While pending, done is open and payload is nil; Store completes the
// entry and closes done to wake waiters.
type entry struct {
	payload   []byte
	expiresAt time.Time
	pending   bool
	done      chan struct{}
}

// InMemoryIdempotencyStore implements IdempotencyGuard with an in-memory map.
// Suitable for single-instance deployments and testing.
//
// Check claims unseen keys: a second caller with the same key blocks until
// the first caller Stores a response or Releases the claim.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	entries   map[string]*entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]*entry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Check returns the stored response payload for a key, if one exists.
// An unseen key is claimed for the caller and reported as a miss. When the
// key is claimed by another in-flight request, Check blocks until that
// request completes (its payload is returned) or releases (this caller
// claims in turn).
func (s *InMemoryIdempotencyStore) Check(ctx context.Context, key string) ([]byte, bool, error) {
	for {
		s.mu.Lock()
		e, exists := s.entries[key]
		if !exists || (!e.pending && time.Now().After(e.expiresAt)) {
			s.entries[key] = &entry{pending: true, done: make(chan struct{})}
			s.mu.Unlock()
			return nil, false, nil
		}
		if !e.pending {
			payload := e.payload
			s.mu.Unlock()
			return payload, true, nil
		}
		done := e.done
		s.mu.Unlock()

		select {
		case <-done:
			// First caller finished or released; re-examine the entry
		case <-s.stopChan:
			return nil, false, nil
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Store records the response payload for a key with a TTL, completing the
// caller's claim and waking any requests blocked in Check
func (s *InMemoryIdempotencyStore) Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, exists := s.entries[key]; exists && prev.pending {
		close(prev.done)
	}
	s.entries[key] = &entry{
		payload:   payload,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Release abandons an in-flight claim so a blocked request with the same
// key can proceed. A no-op when the key holds a completed payload.
func (s *InMemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[key]; exists && e.pending {
		delete(s.entries, key)
		close(e.done)
	}
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryIdempotencyStore) cleanupLoop() {
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

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if !e.pending && now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Ensure InMemoryIdempotencyStore implements IdempotencyGuard
var _ shared.IdempotencyGuard = (*InMemoryIdempotencyStore)(nil)
