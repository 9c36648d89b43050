package throttle

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count     int
	expiresAt time.Time
}

// InMemoryStore backs unit tests and single-node development.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock overrides the time source for expiry tests.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) Hit(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = entry{count: 0, expiresAt: now.Add(window)}
	}
	e.count++
	s.entries[key] = e
	return e.count, nil
}

func (s *InMemoryStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}

func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
