// Package cache keeps short-lived copies of slow source lookups
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultExpiration is how long a cached list stays valid
const DefaultExpiration = 10 * time.Minute

// ListCache stores string lists, such as the distinct currency codes of a source
type ListCache interface {
	// Get returns the cached list and whether it was present and fresh
	Get(ctx context.Context, key string) ([]string, bool)
	// Put stores a list under key
	Put(ctx context.Context, key string, values []string)
	// Invalidate drops key
	Invalidate(ctx context.Context, key string)
	// CleanExpired drops stale entries and returns how many were removed
	CleanExpired() int
}

// entry represents a cached list with the time it was stored
type entry struct {
	values    []string
	timestamp time.Time
}

// MemoryListCache is a thread-safe in-process ListCache
type MemoryListCache struct {
	entries    map[string]entry
	expiration time.Duration
	mutex      sync.RWMutex
}

// NewMemoryListCache creates an empty cache with the given expiration
func NewMemoryListCache(expiration time.Duration) *MemoryListCache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}

	return &MemoryListCache{
		entries:    make(map[string]entry),
		expiration: expiration,
	}
}

// Get retrieves a list if available and not expired
func (c *MemoryListCache) Get(_ context.Context, key string) ([]string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, exists := c.entries[key]
	if !exists || time.Since(e.timestamp) > c.expiration {
		return nil, false
	}

	return append([]string(nil), e.values...), true
}

// Put stores a copy of values
func (c *MemoryListCache) Put(_ context.Context, key string, values []string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry{
		values:    append([]string{}, values...),
		timestamp: time.Now(),
	}
}

// Invalidate removes one key
func (c *MemoryListCache) Invalidate(_ context.Context, key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
}

// CleanExpired removes expired entries from the cache
func (c *MemoryListCache) CleanExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := 0
	now := time.Now()

	for key, e := range c.entries {
		if now.Sub(e.timestamp) > c.expiration {
			delete(c.entries, key)
			count++
		}
	}

	return count
}
