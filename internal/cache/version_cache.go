package cache

import (
	"time"

	"golang.org/x/sync/singleflight"
)

// VersionCache is a read-through cache for schema version lookups.
// Concurrent misses for the same key share one loader call; loader errors
// propagate to every waiter and are never cached.
type VersionCache struct {
	cache *Cache
	group singleflight.Group
}

// NewVersionCache creates a read-through cache with the given bounds.
func NewVersionCache(maxEntries int, ttl time.Duration) *VersionCache {
	return &VersionCache{cache: New(maxEntries, ttl)}
}

// GetOrLoad returns the cached value for key, loading it on a miss. The load
// function is shared by every concurrent miss for the key; it must not be
// bound to one caller's cancellation.
func (c *VersionCache) GetOrLoad(key string, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another flight may have populated the cache while this one queued.
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.cache.Put(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate drops the entry for key.
func (c *VersionCache) Invalidate(key string) {
	c.cache.Remove(key)
}

// CleanupExpired drops expired entries and returns how many were removed.
func (c *VersionCache) CleanupExpired() int {
	return c.cache.CleanupExpired()
}

// Stats returns a counter snapshot of the underlying cache.
func (c *VersionCache) Stats() Stats {
	return c.cache.Stats()
}
