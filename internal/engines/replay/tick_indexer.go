package replay

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"marketsim/internal/marketdata"
	"marketsim/internal/models"
)

// ErrNoSeries is returned when a symbol has no bars to replay.
var ErrNoSeries = errors.New("no series data available")

// TickIndexer resolves tick numbers into bars of a frozen series. All
// symbols of a store are expected to carry equally long series at the
// configured interval, so any symbol's length defines the tick axis.
type TickIndexer struct {
	store    marketdata.SeriesStore
	cache    *marketdata.SeriesCache
	interval string
	logger   *zap.SugaredLogger
}

func NewTickIndexer(store marketdata.SeriesStore, cache *marketdata.SeriesCache, interval string, logger *zap.SugaredLogger) *TickIndexer {
	return &TickIndexer{
		store:    store,
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// series returns the cached series for a symbol, fetching through the store
// on a miss. The cache lock is not held during the fetch.
func (ti *TickIndexer) series(ctx context.Context, symbol string) ([]models.Bar, error) {
	if bars, ok := ti.cache.Get(symbol, ti.interval); ok {
		return bars, nil
	}

	ti.logger.Debugw("series cache miss", "symbol", symbol, "interval", ti.interval)

	bars, err := ti.store.Fetch(ctx, symbol, ti.interval)
	if err != nil {
		return nil, fmt.Errorf("failed to load series for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoSeries, symbol, ti.interval)
	}

	ti.cache.Put(symbol, ti.interval, bars)
	return bars, nil
}

// TotalTicks returns the series length for a symbol.
func (ti *TickIndexer) TotalTicks(ctx context.Context, symbol string) (int, error) {
	bars, err := ti.series(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}

func clampTick(tick, total int) int {
	if tick < 0 {
		return 0
	}
	if tick > total-1 {
		return total - 1
	}
	return tick
}

// TickData returns the bar at the given tick, or nil without error when the
// tick falls outside the series.
func (ti *TickIndexer) TickData(ctx context.Context, symbol string, tick int) (*models.TickData, error) {
	bars, err := ti.series(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if tick < 0 || tick >= len(bars) {
		return nil, nil
	}

	bar := bars[tick]
	return &models.TickData{
		Symbol:    symbol,
		Tick:      tick,
		Timestamp: bar.Timestamp,
		Open:      bar.Open,
		High:      bar.High,
		Low:       bar.Low,
		Close:     bar.Close,
		Volume:    bar.Volume,
	}, nil
}

// TickRange returns the bars from tick `from` through `to` inclusive, both
// clamped into the series range. An inverted range yields an empty slice.
func (ti *TickIndexer) TickRange(ctx context.Context, symbol string, from, to int) ([]models.TickData, error) {
	bars, err := ti.series(ctx, symbol)
	if err != nil {
		return nil, err
	}

	from = clampTick(from, len(bars))
	to = clampTick(to, len(bars))
	if from > to {
		return []models.TickData{}, nil
	}

	out := make([]models.TickData, 0, to-from+1)
	for i := from; i <= to; i++ {
		bar := bars[i]
		out = append(out, models.TickData{
			Symbol:    symbol,
			Tick:      i,
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
		})
	}
	return out, nil
}

// CurrentPrice returns the close price at the given tick, clamped into the
// series range. Session ticks are already clamped, so the clamp here only
// protects direct callers.
func (ti *TickIndexer) CurrentPrice(ctx context.Context, symbol string, tick int) (float64, error) {
	bars, err := ti.series(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return bars[clampTick(tick, len(bars))].Close, nil
}

// Quote builds the market snapshot at a tick. At tick 0, or when the
// previous close is zero, the previous close equals the last price and both
// deltas are zero.
func (ti *TickIndexer) Quote(ctx context.Context, symbol string, tick int) (*models.Quote, error) {
	bars, err := ti.series(ctx, symbol)
	if err != nil {
		return nil, err
	}

	tick = clampTick(tick, len(bars))
	last := bars[tick].Close

	prev := last
	if tick > 0 {
		prev = bars[tick-1].Close
	}

	quote := &models.Quote{
		Symbol:    symbol,
		Tick:      tick,
		LastPrice: last,
		PrevClose: prev,
	}
	if tick > 0 && prev != 0 {
		quote.AbsChange = last - prev
		quote.PctChange = (last - prev) / prev * 100
	} else {
		quote.PrevClose = last
	}
	return quote, nil
}

// DateForTick returns the UTC calendar date of the bar at a tick, clamped
// into the series range.
func (ti *TickIndexer) DateForTick(ctx context.Context, symbol string, tick int) (string, error) {
	bars, err := ti.series(ctx, symbol)
	if err != nil {
		return "", err
	}
	ts := bars[clampTick(tick, len(bars))].Timestamp
	return ts.UTC().Format("2006-01-02"), nil
}

// InvalidateSymbol drops the symbol's cached series at the configured
// interval so the next access refetches it.
func (ti *TickIndexer) InvalidateSymbol(symbol string) {
	ti.cache.Invalidate(symbol, ti.interval)
}

// ClearCache drops every cached series.
func (ti *TickIndexer) ClearCache() {
	ti.cache.Clear()
}
