package marketdata

import (
	"context"

	"marketsim/internal/models"
)

// SeriesStore loads frozen historical series. Implementations must return
// bars ordered ascending by timestamp; the row index is the tick number.
type SeriesStore interface {
	// Fetch returns the full series for a symbol at the given interval.
	Fetch(ctx context.Context, symbol, interval string) ([]models.Bar, error)

	// ListSymbols returns every symbol the store can serve.
	ListSymbols(ctx context.Context) ([]string, error)

	// ListIntervals returns the intervals available for the given symbol.
	ListIntervals(ctx context.Context, symbol string) ([]string, error)
}
