// Package ratelimit provides the per-client fixed-window counter store
// behind the rate limiting middleware. The store is an interface so a
// multi-instance deployment can swap in a shared backend; the contract is
// that Increment is atomic per key.
package ratelimit

import (
	"sync"
	"time"
)

// Store maps client keys to fixed-window counters
type Store interface {
	// Increment counts one request for key and returns the post-increment
	// count along with the end of the current window. Atomic per key: two
	// concurrent calls never observe the same count.
	Increment(key string) (count int, reset time.Time)

	// Peek returns the current count and window end without counting a
	// request. A key with no active window reports zero.
	Peek(key string) (count int, reset time.Time)

	// Close releases background resources
	Close()
}

// entry is one client's counter within the current window
type entry struct {
	count int
	reset time.Time
}

// MemoryStore is the in-process Store used by a single gateway instance
type MemoryStore struct {
	mu              sync.Mutex
	entries         map[string]*entry
	window          time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// NewMemoryStore creates a store with the given window. Expired entries are
// removed by a background goroutine; stop it with Close.
func NewMemoryStore(window time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[string]*entry),
		window:          window,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go s.cleanup()

	return s
}

// Increment implements Store
func (s *MemoryStore) Increment(key string) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.entries[key]
	if !ok || now.After(e.reset) {
		e = &entry{reset: now.Add(s.window)}
		s.entries[key] = e
	}
	e.count++

	return e.count, e.reset
}

// Peek implements Store
func (s *MemoryStore) Peek(key string) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.entries[key]
	if !ok || now.After(e.reset) {
		return 0, now.Add(s.window)
	}

	return e.count, e.reset
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// cleanup removes expired entries on a fixed interval
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.reset) {
			delete(s.entries, key)
		}
	}
}
