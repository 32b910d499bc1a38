// Package cache provides the in-memory entity cache fronting the
// store. Hotel and guest records change rarely relative to how often
// trigger evaluation reads them, so a short TTL keeps the hot path off
// the database without meaningful staleness.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalCache wraps patrickmn/go-cache for in-memory caching.
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a local cache with the given default TTL.
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (l *LocalCache) Get(key string) (interface{}, bool) {
	return l.cache.Get(key)
}

func (l *LocalCache) Set(key string, value interface{}, ttl time.Duration) {
	l.cache.Set(key, value, ttl)
}

func (l *LocalCache) Delete(key string) {
	l.cache.Delete(key)
}

func (l *LocalCache) Flush() {
	l.cache.Flush()
}

func (l *LocalCache) ItemCount() int {
	return l.cache.ItemCount()
}
