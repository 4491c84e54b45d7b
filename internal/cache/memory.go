package cache

import (
	"context"
	"sync"
	"time"

	"authgate/internal/domain"
)

// InMemoryStore memoizes decisions in a locked map. Entries expire lazily
// on read; there is no background sweep, TTL alone bounds staleness and
// the era/version scheme bounds reachability.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoEntry
	now     func() time.Time
}

type memoEntry struct {
	decision domain.Decision
	expireAt time.Time
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock sets the time source. Tests inject a fixed clock.
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[string]memoEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Get(_ context.Context, key string) (domain.Decision, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return domain.Decision{}, false, nil
	}
	if !s.now().Before(entry.expireAt) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it.
		if current, still := s.entries[key]; still && !s.now().Before(current.expireAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return domain.Decision{}, false, nil
	}
	return entry.decision, true, nil
}

func (s *InMemoryStore) Set(_ context.Context, key string, decision domain.Decision, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoEntry{decision: decision, expireAt: s.now().Add(ttl)}
	return nil
}

// Len reports the number of entries currently held, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
