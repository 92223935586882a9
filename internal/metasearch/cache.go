package metasearch

import (
	"context"
	"sync"
	"time"

	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/metrics"
)

const defaultCacheTTL = 24 * time.Hour

// Cache is a TTL key-value store for ranked result lists, shared by all
// concurrent search calls going through one facade. Expired entries are
// evicted lazily when their key is next accessed; there is no background
// sweep and no size bound, which is acceptable for a desktop-session
// lifetime. An optional Redis backend mirrors entries so separate sessions
// can share lookups; the in-memory map stays authoritative when Redis is
// absent or failing.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	hits    int64
	misses  int64
	redis   *RedisCacheBackend
}

type cacheEntry struct {
	results   []domain.UnifiedResult
	createdAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

func (c *Cache) withRedis(backend *RedisCacheBackend) {
	c.redis = backend
}

// Get returns the cached results for key, evicting the entry first when it
// has outlived the TTL.
func (c *Cache) Get(key string) ([]domain.UnifiedResult, bool) {
	return c.lookup(key, time.Now())
}

func (c *Cache) lookup(key string, now time.Time) ([]domain.UnifiedResult, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && now.Sub(entry.createdAt) <= c.ttl {
		results := cloneResults(entry.results)
		c.hits++
		c.mu.Unlock()
		metrics.CacheHitsTotal.Inc()
		return results, true
	}
	if ok {
		delete(c.entries, key)
	}
	c.misses++
	c.mu.Unlock()

	if c.redis != nil {
		if results, found, err := c.redis.Get(context.Background(), key); err == nil && found && len(results) > 0 {
			c.store(key, results, now)
			metrics.CacheHitsTotal.Inc()
			return results, true
		}
	}
	metrics.CacheMissesTotal.Inc()
	return nil, false
}

// Set stores a non-empty result list. Empty lists are never cached so a
// transient all-sources-failed call cannot poison future identical queries.
func (c *Cache) Set(key string, results []domain.UnifiedResult) {
	if len(results) == 0 {
		return
	}
	now := time.Now()
	c.store(key, results, now)
	if c.redis != nil {
		_ = c.redis.Set(context.Background(), key, results, c.ttl)
	}
}

func (c *Cache) store(key string, results []domain.UnifiedResult, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		results:   cloneResults(results),
		createdAt: now,
	}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

func (c *Cache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

func cloneResults(results []domain.UnifiedResult) []domain.UnifiedResult {
	if results == nil {
		return nil
	}
	cloned := make([]domain.UnifiedResult, len(results))
	for i, result := range results {
		copied := result
		copied.Authors = append([]string(nil), result.Authors...)
		cloned[i] = copied
	}
	return cloned
}
