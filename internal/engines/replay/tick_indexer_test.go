package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"marketsim/internal/marketdata"
	"marketsim/internal/models"
)

type fakeStore struct {
	series  map[string][]models.Bar
	fetches int
}

func (f *fakeStore) Fetch(ctx context.Context, symbol, interval string) ([]models.Bar, error) {
	f.fetches++
	return f.series[symbol], nil
}

func (f *fakeStore) ListSymbols(ctx context.Context) ([]string, error) {
	var out []string
	for sym := range f.series {
		out = append(out, sym)
	}
	return out, nil
}

func (f *fakeStore) ListIntervals(ctx context.Context, symbol string) ([]string, error) {
	return []string{"30s"}, nil
}

func barsWithCloses(closes ...float64) []models.Bar {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Second),
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func newTestIndexer(series map[string][]models.Bar) (*TickIndexer, *fakeStore) {
	store := &fakeStore{series: series}
	cache := marketdata.NewSeriesCache(5*time.Minute, 50)
	ti := NewTickIndexer(store, cache, "30s", zap.NewNop().Sugar())
	return ti, store
}

func TestTotalTicks(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100, 101, 102),
	})

	total, err := ti.TotalTicks(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 ticks, got %d", total)
	}
}

func TestSeriesCachedAcrossCalls(t *testing.T) {
	ti, store := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100, 101, 102),
	})
	ctx := context.Background()

	if _, err := ti.TotalTicks(ctx, "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ti.CurrentPrice(ctx, "AAPL", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.fetches != 1 {
		t.Fatalf("expected a single store fetch, got %d", store.fetches)
	}
}

func TestEmptySeries(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{})

	_, err := ti.TotalTicks(context.Background(), "MISSING")
	if !errors.Is(err, ErrNoSeries) {
		t.Fatalf("expected ErrNoSeries, got %v", err)
	}
}

func TestTickDataOutsideRangeIsAbsent(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100, 101, 102),
	})
	ctx := context.Background()

	td, err := ti.TickData(ctx, "AAPL", 1)
	if err != nil || td == nil {
		t.Fatalf("in-range tick should return a bar: td=%v err=%v", td, err)
	}
	if td.Tick != 1 || td.Close != 101 {
		t.Fatalf("unexpected bar: %+v", td)
	}

	for _, tick := range []int{-5, 3, 99} {
		td, err := ti.TickData(ctx, "AAPL", tick)
		if err != nil {
			t.Fatalf("out-of-range tick must not error: %v", err)
		}
		if td != nil {
			t.Fatalf("tick %d should be absent, got %+v", tick, td)
		}
	}
}

func TestCurrentPriceClamps(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100, 101, 102),
	})
	ctx := context.Background()

	price, err := ti.CurrentPrice(ctx, "AAPL", -5)
	if err != nil || price != 100 {
		t.Fatalf("negative tick should clamp to first close: price=%v err=%v", price, err)
	}
	price, err = ti.CurrentPrice(ctx, "AAPL", 99)
	if err != nil || price != 102 {
		t.Fatalf("overflow tick should clamp to last close: price=%v err=%v", price, err)
	}
}

func TestTickRange(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100, 101, 102, 103, 104),
	})
	ctx := context.Background()

	out, err := ti.TickRange(ctx, "AAPL", 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 || out[0].Tick != 1 || out[2].Tick != 3 {
		t.Fatalf("unexpected range: %+v", out)
	}

	out, err = ti.TickRange(ctx, "AAPL", -10, 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("clamped full range should cover the series, got %d", len(out))
	}

	out, err = ti.TickRange(ctx, "AAPL", 3, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("inverted range should be empty, got %d", len(out))
	}
}

func TestQuote(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100, 110),
	})
	ctx := context.Background()

	q, err := ti.Quote(ctx, "AAPL", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.LastPrice != 110 || q.PrevClose != 100 {
		t.Fatalf("unexpected quote prices: %+v", q)
	}
	if q.AbsChange != 10 || q.PctChange != 10 {
		t.Fatalf("unexpected quote deltas: %+v", q)
	}
}

func TestQuoteAtTickZero(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100, 110),
	})

	q, err := ti.Quote(context.Background(), "AAPL", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.PrevClose != 100 || q.AbsChange != 0 || q.PctChange != 0 {
		t.Fatalf("tick-0 quote should have zero deltas: %+v", q)
	}
}

func TestQuoteZeroPrevClose(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{
		"PENNY": barsWithCloses(0, 5),
	})

	q, err := ti.Quote(context.Background(), "PENNY", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.PrevClose != 5 || q.AbsChange != 0 || q.PctChange != 0 {
		t.Fatalf("zero prev close should zero the deltas: %+v", q)
	}
}

func TestDateForTick(t *testing.T) {
	ti, _ := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100, 101),
	})

	date, err := ti.DateForTick(context.Background(), "AAPL", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if date != "2024-03-01" {
		t.Fatalf("expected 2024-03-01, got %s", date)
	}
}

func TestInvalidateSymbolForcesRefetch(t *testing.T) {
	ti, store := newTestIndexer(map[string][]models.Bar{
		"AAPL": barsWithCloses(100),
	})
	ctx := context.Background()

	if _, err := ti.TotalTicks(ctx, "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ti.InvalidateSymbol("AAPL")
	if _, err := ti.TotalTicks(ctx, "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.fetches != 2 {
		t.Fatalf("expected refetch after invalidation, fetches=%d", store.fetches)
	}
}
