package marketdata

import (
	"context"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"marketsim/internal/models"
)

// ClickHouseStore reads series from a candles table with columns
// (symbol, interval, timestamp, open, high, low, close, volume).
type ClickHouseStore struct {
	conn     driver.Conn
	database string
	table    string
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Table    string
	User     string
	Password string
}

func NewClickHouseStore(cfg ClickHouseConfig) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping failed: %w", err)
	}

	return &ClickHouseStore{
		conn:     conn,
		database: cfg.Database,
		table:    cfg.Table,
	}, nil
}

func (s *ClickHouseStore) Fetch(ctx context.Context, symbol, interval string) ([]models.Bar, error) {
	query := fmt.Sprintf(`
		SELECT timestamp, open, high, low, close, volume
		FROM %s.%s
		WHERE symbol = ? AND interval = ?
		ORDER BY timestamp ASC`, s.database, s.table)

	rows, err := s.conn.Query(ctx, query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to query series for %s/%s: %w", symbol, interval, err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var (
			ts     time.Time
			o, h   float64
			l, c   float64
			volume float64
		)
		if err := rows.Scan(&ts, &o, &h, &l, &c, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar for %s/%s: %w", symbol, interval, err)
		}
		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    int64(volume),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("series query for %s/%s: %w", symbol, interval, err)
	}

	return bars, nil
}

func (s *ClickHouseStore) ListSymbols(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT symbol FROM %s.%s ORDER BY symbol", s.database, s.table)

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("symbol listing: %w", err)
	}

	return symbols, nil
}

func (s *ClickHouseStore) ListIntervals(ctx context.Context, symbol string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT interval FROM %s.%s WHERE symbol = ? ORDER BY interval", s.database, s.table)

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to list intervals for %s: %w", symbol, err)
	}
	defer rows.Close()

	var intervals []string
	for rows.Next() {
		var iv string
		if err := rows.Scan(&iv); err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interval listing for %s: %w", symbol, err)
	}

	return intervals, nil
}

// Close shuts down the underlying connection pool.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
