package cache

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the current time. Injected so expiry is testable.
type Clock func() time.Time

type entry struct {
	value   []byte
	written time.Time
}

// Memory is an in-process Store with optional TTL expiry. Expired entries are
// evicted lazily on access; there is no background sweeper, so the cache has
// no lifetime beyond its owner.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     Clock

	keyLocks sync.Map // key -> *sync.Mutex, single writer per key
}

// NewMemory creates a memory cache. ttl <= 0 means entries never expire.
func NewMemory(ttl time.Duration) *Memory {
	return NewMemoryWithClock(ttl, time.Now)
}

// NewMemoryWithClock creates a memory cache with an injected clock.
func NewMemoryWithClock(ttl time.Duration, now Clock) *Memory {
	return &Memory{
		entries: map[string]entry{},
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached value, evicting it first if expired.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.ttl > 0 && m.now().Sub(e.written) > m.ttl {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// Put stores a value under key.
func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.entries[key] = entry{value: value, written: m.now()}
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Fetch returns the cached value for key, or computes, stores, and returns it.
// Concurrent fetches of the same key serialize so exactly one caller computes;
// the rest read the fresh value. The returned bool reports a cache hit.
func Fetch(ctx context.Context, s Store, key string, compute func() ([]byte, error)) ([]byte, bool, error) {
	if m, ok := s.(*Memory); ok {
		lockAny, _ := m.keyLocks.LoadOrStore(key, &sync.Mutex{})
		lock := lockAny.(*sync.Mutex)
		lock.Lock()
		defer lock.Unlock()
	}

	if v, ok, err := s.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	v, err := compute()
	if err != nil {
		return nil, false, err
	}
	if err := s.Put(ctx, key, v); err != nil {
		// A failed write only loses reuse, never the result.
		return v, false, nil
	}
	return v, false, nil
}
