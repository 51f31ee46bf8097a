// services/cache.go
package services

import (
	"sync"
	"time"
)

// Cache is a TTL map for API responses. The clock is injected so expiry is
// testable without real waits; production callers pass time.Now.
type Cache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry[T]
}

type cacheEntry[T any] struct {
	data     T
	storedAt time.Time
}

func NewCache[T any](ttl time.Duration, now func() time.Time) *Cache[T] {
	return &Cache[T]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry[T]),
	}
}

func (c *Cache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[T]{data: data, storedAt: c.now()}
}

// Get returns the cached value and whether it was present and still fresh.
// Expired entries are evicted on access.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		var zero T
		return zero, false
	}
	return entry.data, true
}
