package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	"marketsim/internal/models"
)

const binanceKlineLimit = 1000

// BinanceStore serves series from the Binance public klines API. Each fetch
// returns the most recent window of closed candles; within a session the
// cache keeps that window frozen. No API keys are needed for public data.
type BinanceStore struct {
	client      *binance.Client
	symbols     []string
	lastRequest time.Time
	mu          sync.Mutex
}

func NewBinanceStore(symbols []string) *BinanceStore {
	if len(symbols) == 0 {
		symbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	return &BinanceStore{
		client:  binance.NewClient("", ""),
		symbols: symbols,
	}
}

func (s *BinanceStore) Fetch(ctx context.Context, symbol, interval string) ([]models.Bar, error) {
	if !s.supported(symbol) {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}
	if !validInterval(interval) {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}

	s.throttle()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(binanceKlineLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s/%s: %w", symbol, interval, err)
	}

	bars := make([]models.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := klineToBar(k)
		if err != nil {
			return nil, fmt.Errorf("malformed kline for %s/%s: %w", symbol, interval, err)
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func (s *BinanceStore) ListSymbols(ctx context.Context) ([]string, error) {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out, nil
}

func (s *BinanceStore) ListIntervals(ctx context.Context, symbol string) ([]string, error) {
	if !s.supported(symbol) {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}
	return []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}, nil
}

func (s *BinanceStore) supported(symbol string) bool {
	for _, sym := range s.symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// throttle spaces requests at least 100ms apart, well under the public
// endpoint quota.
func (s *BinanceStore) throttle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	const minInterval = 100 * time.Millisecond
	if elapsed := time.Since(s.lastRequest); elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	s.lastRequest = time.Now()
}

func klineToBar(k *binance.Kline) (models.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("parse open: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("parse high: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("parse low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("parse close: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("parse volume: %w", err)
	}

	return models.Bar{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    int64(volume),
	}, nil
}

func validInterval(interval string) bool {
	switch interval {
	case "1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M":
		return true
	}
	return false
}
