// Package cache provides a small in-memory TTL cache used to keep
// get-or-create lookups off the hot ingestion path.
package cache

import (
	"sync"
	"time"
)

type item[T any] struct {
	value    T
	deadline time.Time
}

// InMemory is a concurrency-safe cache whose entries expire after a fixed TTL.
type InMemory[T any] struct {
	mu      sync.RWMutex
	entries map[string]item[T]
	ttl     time.Duration
}

// New creates a cache with the given TTL and starts its sweeper.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		entries: make(map[string]item[T]),
		ttl:     ttl,
	}
	go c.sweep()
	return c
}

// Get returns the cached value for key, or false when absent or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.entries[key]
	if !ok || !time.Now().Before(it.deadline) {
		var zero T
		return zero, false
	}
	return it.value, true
}

// Set stores value under key for the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = item[T]{value: value, deadline: time.Now().Add(c.ttl)}
}

// Delete evicts key immediately.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// sweep drops expired entries once per TTL so the map does not grow
// unbounded between reads.
func (c *InMemory[T]) sweep() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, it := range c.entries {
			if !now.Before(it.deadline) {
				delete(c.entries, k)
			}
		}
		c.mu.Unlock()
	}
}
