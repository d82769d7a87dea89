package trading

import (
	"errors"
	"math"
	"testing"

	"marketsim/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyWeightedAverageCost(t *testing.T) {
	ledger := NewLedger()
	session := &models.Session{Cash: 10000, StartBalance: 10000}
	pos := &models.Position{Symbol: "AAPL"}

	if err := ledger.Apply(session, pos, models.OrderSideBuy, 10, 50); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	if !approx(session.Cash, 9500) || pos.Holdings != 10 || !approx(pos.AvgPrice, 50) {
		t.Fatalf("after first buy: cash=%v holdings=%d avg=%v", session.Cash, pos.Holdings, pos.AvgPrice)
	}

	if err := ledger.Apply(session, pos, models.OrderSideBuy, 10, 60); err != nil {
		t.Fatalf("second buy failed: %v", err)
	}
	if !approx(session.Cash, 8900) || pos.Holdings != 20 || !approx(pos.AvgPrice, 55) {
		t.Fatalf("after second buy: cash=%v holdings=%d avg=%v", session.Cash, pos.Holdings, pos.AvgPrice)
	}

	if err := ledger.Apply(session, pos, models.OrderSideSell, 15, 70); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if !approx(session.Cash, 9950) || pos.Holdings != 5 || !approx(pos.AvgPrice, 55) {
		t.Fatalf("after sell: cash=%v holdings=%d avg=%v", session.Cash, pos.Holdings, pos.AvgPrice)
	}
}

func TestApplySellToZeroResetsAverage(t *testing.T) {
	ledger := NewLedger()
	session := &models.Session{Cash: 10000, StartBalance: 10000}
	sl, tp := 40.0, 80.0
	pos := &models.Position{Symbol: "AAPL", StopLoss: &sl, TakeProfit: &tp}

	if err := ledger.Apply(session, pos, models.OrderSideBuy, 10, 50); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if err := ledger.Apply(session, pos, models.OrderSideSell, 10, 60); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if pos.Holdings != 0 || pos.AvgPrice != 0 {
		t.Fatalf("closed position must zero avg cost: holdings=%d avg=%v", pos.Holdings, pos.AvgPrice)
	}
	if pos.StopLoss != nil || pos.TakeProfit != nil {
		t.Fatal("closing a position must disarm exit thresholds")
	}
	if !approx(session.Cash, 10100) {
		t.Fatalf("unexpected cash: %v", session.Cash)
	}
}

func TestApplyInsufficientFunds(t *testing.T) {
	ledger := NewLedger()
	session := &models.Session{Cash: 100}
	pos := &models.Position{Symbol: "AAPL"}

	err := ledger.Apply(session, pos, models.OrderSideBuy, 10, 50)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if session.Cash != 100 || pos.Holdings != 0 {
		t.Fatal("rejected buy must not mutate state")
	}
}

func TestApplyInsufficientShares(t *testing.T) {
	ledger := NewLedger()
	session := &models.Session{Cash: 10000}
	pos := &models.Position{Symbol: "AAPL", Holdings: 5, AvgPrice: 50}

	err := ledger.Apply(session, pos, models.OrderSideSell, 10, 60)
	if !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	if pos.Holdings != 5 {
		t.Fatal("rejected sell must not mutate state")
	}
}

func TestApplyRejectsNonPositiveInputs(t *testing.T) {
	ledger := NewLedger()
	session := &models.Session{Cash: 10000}
	pos := &models.Position{Symbol: "AAPL"}

	if err := ledger.Apply(session, pos, models.OrderSideBuy, 0, 50); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for zero quantity, got %v", err)
	}
	if err := ledger.Apply(session, pos, models.OrderSideBuy, 10, 0); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for zero price, got %v", err)
	}
}

func TestMarkToMarket(t *testing.T) {
	ledger := NewLedger()
	pos := &models.Position{Symbol: "AAPL", Holdings: 10, AvgPrice: 50}

	ledger.MarkToMarket(pos, 57)
	if !approx(pos.PnL, 70) || pos.LastPrice != 57 {
		t.Fatalf("unexpected mark: pnl=%v last=%v", pos.PnL, pos.LastPrice)
	}

	pos.Holdings = 0
	ledger.MarkToMarket(pos, 100)
	if pos.PnL != 0 {
		t.Fatalf("flat position must carry zero pnl, got %v", pos.PnL)
	}
}

func TestSessionPnL(t *testing.T) {
	ledger := NewLedger()
	session := &models.Session{Cash: 9350, StartBalance: 10000}
	positions := []models.Position{
		{Symbol: "AAPL", Holdings: 5, LastPrice: 70},
		{Symbol: "MSFT", Holdings: 0, LastPrice: 300},
	}

	if pnl := ledger.SessionPnL(session, positions); !approx(pnl, -300) {
		t.Fatalf("expected pnl -300, got %v", pnl)
	}
}

func TestCrossed(t *testing.T) {
	cases := []struct {
		name  string
		typ   models.OrderType
		side  models.OrderSide
		limit float64
		price float64
		want  bool
	}{
		{"limit buy fills at or below", models.OrderTypeLimit, models.OrderSideBuy, 50, 49, true},
		{"limit buy waits above", models.OrderTypeLimit, models.OrderSideBuy, 50, 51, false},
		{"limit sell fills at or above", models.OrderTypeLimit, models.OrderSideSell, 50, 51, true},
		{"limit sell waits below", models.OrderTypeLimit, models.OrderSideSell, 50, 49, false},
		{"stop sell fills at or below", models.OrderTypeStop, models.OrderSideSell, 50, 49, true},
		{"stop sell waits above", models.OrderTypeStop, models.OrderSideSell, 50, 51, false},
		{"stop buy fills at or above", models.OrderTypeStop, models.OrderSideBuy, 50, 51, true},
		{"stop buy waits below", models.OrderTypeStop, models.OrderSideBuy, 50, 49, false},
		{"market never pends", models.OrderTypeMarket, models.OrderSideBuy, 50, 50, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := &models.Order{Type: tc.typ, Side: tc.side, Price: tc.limit}
			if got := Crossed(order, tc.price); got != tc.want {
				t.Fatalf("Crossed(%s %s @%v, price %v) = %v, want %v",
					tc.typ, tc.side, tc.limit, tc.price, got, tc.want)
			}
		})
	}
}
