package marketdata

import (
	"fmt"
	"testing"
	"time"

	"marketsim/internal/models"
)

func fakeBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = models.Bar{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Second),
			Open:      100 + float64(i),
			High:      101 + float64(i),
			Low:       99 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    1000,
		}
	}
	return bars
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCache(ttl time.Duration, maxEntries int) (*SeriesCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewSeriesCache(ttl, maxEntries)
	c.now = func() time.Time { return clock.now }
	return c, clock
}

func TestCacheHit(t *testing.T) {
	c, _ := newTestCache(5*time.Minute, 50)
	bars := fakeBars(10)
	c.Put("AAPL", "30s", bars)

	got, ok := c.Get("AAPL", "30s")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 bars, got %d", len(got))
	}
}

func TestCacheMissDistinctInterval(t *testing.T) {
	c, _ := newTestCache(5*time.Minute, 50)
	c.Put("AAPL", "30s", fakeBars(10))

	if _, ok := c.Get("AAPL", "1m"); ok {
		t.Fatal("expected miss for different interval")
	}
	if _, ok := c.Get("MSFT", "30s"); ok {
		t.Fatal("expected miss for different symbol")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c, clock := newTestCache(5*time.Minute, 50)
	c.Put("AAPL", "30s", fakeBars(10))

	clock.advance(4 * time.Minute)
	if _, ok := c.Get("AAPL", "30s"); !ok {
		t.Fatal("entry should still be live before TTL")
	}

	clock.advance(time.Minute)
	if _, ok := c.Get("AAPL", "30s"); ok {
		t.Fatal("entry should have expired at TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be removed on access, len=%d", c.Len())
	}
}

func TestCachePutRefreshesTTL(t *testing.T) {
	c, clock := newTestCache(5*time.Minute, 50)
	c.Put("AAPL", "30s", fakeBars(10))

	clock.advance(4 * time.Minute)
	c.Put("AAPL", "30s", fakeBars(20))

	clock.advance(4 * time.Minute)
	got, ok := c.Get("AAPL", "30s")
	if !ok {
		t.Fatal("overwrite should have refreshed the TTL")
	}
	if len(got) != 20 {
		t.Fatalf("expected latest write to win, got %d bars", len(got))
	}
}

func TestCacheEvictsOldestInsertion(t *testing.T) {
	c, clock := newTestCache(time.Hour, 3)

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("SYM%d", i), "30s", fakeBars(1))
		clock.advance(time.Second)
	}

	// Access the oldest entry; eviction order must ignore access recency.
	if _, ok := c.Get("SYM0", "30s"); !ok {
		t.Fatal("expected SYM0 present")
	}

	c.Put("SYM3", "30s", fakeBars(1))

	if _, ok := c.Get("SYM0", "30s"); ok {
		t.Fatal("oldest-inserted entry should have been evicted")
	}
	if _, ok := c.Get("SYM1", "30s"); !ok {
		t.Fatal("SYM1 should survive eviction")
	}
	if c.Len() != 3 {
		t.Fatalf("cache should hold exactly maxEntries, len=%d", c.Len())
	}
}

func TestCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(time.Hour, 50)
	c.Put("AAPL", "30s", fakeBars(1))
	c.Put("AAPL", "1m", fakeBars(1))
	c.Put("MSFT", "30s", fakeBars(1))

	c.Invalidate("AAPL", "30s")

	if _, ok := c.Get("AAPL", "30s"); ok {
		t.Fatal("AAPL 30s should be invalidated")
	}
	if _, ok := c.Get("AAPL", "1m"); !ok {
		t.Fatal("AAPL 1m should be untouched")
	}
	if _, ok := c.Get("MSFT", "30s"); !ok {
		t.Fatal("MSFT should be untouched")
	}
}

func TestCacheCleanupExpired(t *testing.T) {
	c, clock := newTestCache(5*time.Minute, 50)
	c.Put("AAPL", "30s", fakeBars(1))
	clock.advance(3 * time.Minute)
	c.Put("MSFT", "30s", fakeBars(1))
	clock.advance(3 * time.Minute)

	removed := c.CleanupExpired()
	if removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if _, ok := c.Get("MSFT", "30s"); !ok {
		t.Fatal("MSFT should still be live")
	}
}
