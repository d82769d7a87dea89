package trading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"marketsim/internal/models"
)

// Ledger applies fills to session cash and positions under weighted average
// cost accounting. It mutates models in memory only; persisting the result
// transactionally is the caller's job. Intermediate arithmetic runs on
// decimals so repeated fills cannot drift.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Apply executes a fill of qty shares at price. Buys must be fully covered
// by cash and re-weight the average cost; sells never move the average cost
// and zero it only when the position closes. A position that reaches zero
// holdings also loses its armed exit thresholds.
func (l *Ledger) Apply(session *models.Session, pos *models.Position, side models.OrderSide, qty int64, price float64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}

	dQty := decimal.NewFromInt(qty)
	dPrice := decimal.NewFromFloat(price)
	dCash := decimal.NewFromFloat(session.Cash)
	notional := dQty.Mul(dPrice)

	switch side {
	case models.OrderSideBuy:
		if notional.GreaterThan(dCash) {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, notional, dCash)
		}

		dHoldings := decimal.NewFromInt(pos.Holdings)
		dAvg := decimal.NewFromFloat(pos.AvgPrice)
		newHoldings := dHoldings.Add(dQty)
		newAvg := dAvg.Mul(dHoldings).Add(notional).Div(newHoldings)

		session.Cash = dCash.Sub(notional).InexactFloat64()
		pos.Holdings += qty
		pos.AvgPrice = newAvg.InexactFloat64()

	case models.OrderSideSell:
		if qty > pos.Holdings {
			return fmt.Errorf("%w: selling %d, holding %d", ErrInsufficientShares, qty, pos.Holdings)
		}

		session.Cash = dCash.Add(notional).InexactFloat64()
		pos.Holdings -= qty
		if pos.Holdings == 0 {
			pos.AvgPrice = 0
			pos.StopLoss = nil
			pos.TakeProfit = nil
		}

	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, side)
	}

	l.MarkToMarket(pos, price)
	return nil
}

// MarkToMarket records the latest observed price and the position's
// unrealized P&L against it.
func (l *Ledger) MarkToMarket(pos *models.Position, price float64) {
	pos.LastPrice = price
	if pos.Holdings == 0 {
		pos.PnL = 0
		return
	}
	pnl := decimal.NewFromFloat(price).
		Sub(decimal.NewFromFloat(pos.AvgPrice)).
		Mul(decimal.NewFromInt(pos.Holdings))
	pos.PnL = pnl.InexactFloat64()
}

// SessionPnL is total equity against the starting balance: cash plus the
// market value of every position, minus what the session started with.
func (l *Ledger) SessionPnL(session *models.Session, positions []models.Position) float64 {
	total := decimal.NewFromFloat(session.Cash)
	for i := range positions {
		value := decimal.NewFromInt(positions[i].Holdings).
			Mul(decimal.NewFromFloat(positions[i].LastPrice))
		total = total.Add(value)
	}
	return total.Sub(decimal.NewFromFloat(session.StartBalance)).InexactFloat64()
}

// Crossed reports whether a pending order's threshold is met at the given
// price. Limit buys fill at or below the limit, limit sells at or above it.
// Stop sells fill at or below the stop, stop buys at or above it.
func Crossed(order *models.Order, price float64) bool {
	switch order.Type {
	case models.OrderTypeLimit:
		if order.Side == models.OrderSideBuy {
			return price <= order.Price
		}
		return price >= order.Price
	case models.OrderTypeStop:
		if order.Side == models.OrderSideSell {
			return price <= order.Price
		}
		return price >= order.Price
	}
	return false
}
