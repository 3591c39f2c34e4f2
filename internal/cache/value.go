// Package cache provides a time-bounded holder for computed values.
//
// The dashboard uses it to keep catalog statistics warm between polls
// without re-aggregating on every request.
package cache

import (
	"sync"
	"time"
)

// Value caches a single computed value until its TTL elapses.
// Construct with New; the zero value never serves hits.
type Value[T any] struct {
	mu    sync.RWMutex
	value T
	setAt time.Time
	ttl   time.Duration
}

// New creates an empty cache that serves values for ttl after each Set.
// A non-positive ttl disables caching entirely.
func New[T any](ttl time.Duration) *Value[T] {
	return &Value[T]{ttl: ttl}
}

// Get returns the cached value when one is present and still fresh.
func (c *Value[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stale() {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Set stores v and restarts the TTL clock.
func (c *Value[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.setAt = time.Now()
}

// Invalidate discards the cached value so the next Get misses. Callers
// use it after writes that change what the value would be computed from.
func (c *Value[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.setAt = time.Time{}
}

func (c *Value[T]) stale() bool {
	return c.ttl <= 0 || c.setAt.IsZero() || time.Since(c.setAt) >= c.ttl
}
