package trading

import (
	"fmt"

	"marketsim/internal/models"
)

// ExitSignal says an armed threshold fired on a position. Kind is
// OrderTypeStop for a stop-loss hit and OrderTypeLimit for a take-profit
// hit; the resulting fill sells the full holdings at market.
type ExitSignal struct {
	Kind      models.OrderType
	Threshold float64
}

// CheckExit evaluates a position's armed exit thresholds at the given price.
// Stop-loss is checked before take-profit; at most one signal fires per
// sweep. Positions with no holdings never signal.
func CheckExit(pos *models.Position, price float64) (ExitSignal, bool) {
	if pos.Holdings <= 0 {
		return ExitSignal{}, false
	}
	if pos.StopLoss != nil && price <= *pos.StopLoss {
		return ExitSignal{Kind: models.OrderTypeStop, Threshold: *pos.StopLoss}, true
	}
	if pos.TakeProfit != nil && price >= *pos.TakeProfit {
		return ExitSignal{Kind: models.OrderTypeLimit, Threshold: *pos.TakeProfit}, true
	}
	return ExitSignal{}, false
}

// ValidateExitThresholds checks that armed thresholds bracket the current
// price: stop-loss strictly below it, take-profit strictly above it. Nil
// disarms a side and is always valid.
func ValidateExitThresholds(stopLoss, takeProfit *float64, price float64) error {
	if stopLoss != nil {
		if *stopLoss <= 0 {
			return fmt.Errorf("%w: stop loss must be positive", ErrInvalidThreshold)
		}
		if *stopLoss >= price {
			return fmt.Errorf("%w: stop loss %.4f must be below current price %.4f", ErrInvalidThreshold, *stopLoss, price)
		}
	}
	if takeProfit != nil {
		if *takeProfit <= 0 {
			return fmt.Errorf("%w: take profit must be positive", ErrInvalidThreshold)
		}
		if *takeProfit <= price {
			return fmt.Errorf("%w: take profit %.4f must be above current price %.4f", ErrInvalidThreshold, *takeProfit, price)
		}
	}
	return nil
}
