package pricecache

import (
	"sync"
	"time"
)

// Cache is a TTL cache of the most recently observed price per symbol.
// It is a plain value owned and injected by the caller — never ambient
// module state — and is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

type entry struct {
	price float64
	at    time.Time
}

// New creates a price cache with the given TTL. A non-positive TTL means
// entries never expire.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Get returns the cached price for a symbol if present and fresh.
func (c *Cache) Get(symbol string) (float64, bool) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if c.ttl > 0 && time.Since(e.at) > c.ttl {
		return 0, false
	}
	return e.price, true
}

// Set records a price observation for a symbol at the given timestamp.
func (c *Cache) Set(symbol string, price float64, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	c.mu.Lock()
	c.entries[symbol] = entry{price: price, at: at}
	c.mu.Unlock()
}

// Len returns the number of cached symbols, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
