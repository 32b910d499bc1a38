package render

import (
	"sync"
	"time"
)

// cacheEntry holds one memoized render result.
type cacheEntry struct {
	text      string
	createdAt time.Time
}

// renderCache is a concurrency-safe bounded TTL cache for render
// results. When full, the oldest entry is evicted first.
type renderCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	maxEntries int
	ttl        time.Duration

	hits   int64
	misses int64
}

func newRenderCache(maxEntries int, ttl time.Duration) *renderCache {
	return &renderCache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *renderCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return "", false
	}

	c.hits++
	return entry.text, true
}

func (c *renderCache) set(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{text: text, createdAt: time.Now()}
}

// evictOldestLocked removes the entry with the oldest timestamp.
// Caller holds the lock.
func (c *renderCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.createdAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *renderCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *renderCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.entries),
	}
}

// CacheStats reports render cache effectiveness.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}
