package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	Value      interface{}
	Expiration time.Time
}

// Stats is a snapshot of cache counters
type Stats struct {
	Items     int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// MemoryCache is a size-bounded LRU cache with per-item TTL.
// Stored values are returned as-is and must not be mutated by callers.
type MemoryCache struct {
	lru *lru.Cache[string, cacheItem]

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewMemoryCache creates a cache holding at most size entries
func NewMemoryCache(size int) (*MemoryCache, error) {
	c := &MemoryCache{}
	l, err := lru.NewWithEvict[string, cacheItem](size, func(string, cacheItem) {
		atomic.AddUint64(&c.evictions, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	c.lru = l
	return c, nil
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	item, ok := c.lru.Get(key)
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, domain.ErrCacheMiss
	}

	if time.Now().After(item.Expiration) {
		c.lru.Remove(key)
		atomic.AddUint64(&c.misses, 1)
		return nil, domain.ErrCacheMiss
	}

	atomic.AddUint64(&c.hits, 1)
	return item.Value, nil
}

// Set stores a value in the cache with TTL
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %v", domain.ErrInvalidRequest, ttl)
	}
	c.lru.Add(key, cacheItem{
		Value:      value,
		Expiration: time.Now().Add(ttl),
	})
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Exists checks if a key exists in the cache and is not expired
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	item, ok := c.lru.Peek(key)
	if !ok {
		return false, nil
	}
	return !time.Now().After(item.Expiration), nil
}

// Stats returns the current counters
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Items:     c.lru.Len(),
		Hits:      atomic.LoadUint64(&c.hits),
		Misses:    atomic.LoadUint64(&c.misses),
		Evictions: atomic.LoadUint64(&c.evictions),
	}
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.lru.Purge()
}
