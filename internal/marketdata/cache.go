package marketdata

import (
	"sync"
	"time"

	"marketsim/internal/models"
)

type cacheEntry struct {
	bars       []models.Bar
	insertedAt time.Time
}

// SeriesCache holds fetched series keyed by "symbol:interval". Entries live
// for a fixed TTL from insertion. When the cache is full the entry with the
// oldest insertion time is evicted, regardless of access recency. The lock is
// never held across a store fetch; concurrent fillers for the same key race
// and the last writer wins.
type SeriesCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewSeriesCache(ttl time.Duration, maxEntries int) *SeriesCache {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	return &SeriesCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func cacheKey(symbol, interval string) string {
	return symbol + ":" + interval
}

// Get returns the cached series for symbol+interval. An expired entry is
// removed and reported as a miss.
func (c *SeriesCache) Get(symbol, interval string) ([]models.Bar, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(symbol, interval)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.bars, true
}

// Put stores a series, evicting the oldest-inserted entry if the cache is
// full. Overwriting an existing key refreshes its TTL.
func (c *SeriesCache) Put(symbol, interval string, bars []models.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(symbol, interval)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{bars: bars, insertedAt: c.now()}
}

func (c *SeriesCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.insertedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Invalidate drops the entry for symbol+interval if present.
func (c *SeriesCache) Invalidate(symbol, interval string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(symbol, interval))
}

// Clear empties the cache.
func (c *SeriesCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// CleanupExpired removes every expired entry and returns how many were
// dropped.
func (c *SeriesCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of cached entries, including any not yet expired.
func (c *SeriesCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheStats summarizes cache occupancy.
type CacheStats struct {
	Entries    int      `json:"entries"`
	MaxEntries int      `json:"max_entries"`
	TTLSeconds float64  `json:"ttl_seconds"`
	Keys       []string `json:"keys"`
}

func (c *SeriesCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return CacheStats{
		Entries:    len(c.entries),
		MaxEntries: c.maxEntries,
		TTLSeconds: c.ttl.Seconds(),
		Keys:       keys,
	}
}
