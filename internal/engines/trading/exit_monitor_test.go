package trading

import (
	"errors"
	"testing"

	"marketsim/internal/models"
)

func ptr(v float64) *float64 { return &v }

func TestCheckExitStopLoss(t *testing.T) {
	pos := &models.Position{Holdings: 10, StopLoss: ptr(45), TakeProfit: ptr(60)}

	sig, ok := CheckExit(pos, 45)
	if !ok || sig.Kind != models.OrderTypeStop || sig.Threshold != 45 {
		t.Fatalf("expected stop signal at threshold, got %+v ok=%v", sig, ok)
	}

	if _, ok := CheckExit(pos, 46); ok {
		t.Fatal("no signal expected between thresholds")
	}
}

func TestCheckExitTakeProfit(t *testing.T) {
	pos := &models.Position{Holdings: 10, TakeProfit: ptr(60)}

	sig, ok := CheckExit(pos, 61)
	if !ok || sig.Kind != models.OrderTypeLimit || sig.Threshold != 60 {
		t.Fatalf("expected take-profit signal, got %+v ok=%v", sig, ok)
	}
}

func TestCheckExitStopWinsOverTakeProfit(t *testing.T) {
	// Degenerate arming where one price satisfies both; stop-loss takes
	// precedence.
	pos := &models.Position{Holdings: 10, StopLoss: ptr(50), TakeProfit: ptr(50)}

	sig, ok := CheckExit(pos, 50)
	if !ok || sig.Kind != models.OrderTypeStop {
		t.Fatalf("stop-loss must win, got %+v ok=%v", sig, ok)
	}
}

func TestCheckExitIgnoresFlatPosition(t *testing.T) {
	pos := &models.Position{Holdings: 0, StopLoss: ptr(45)}

	if _, ok := CheckExit(pos, 10); ok {
		t.Fatal("flat position must never signal")
	}
}

func TestCheckExitDisarmed(t *testing.T) {
	pos := &models.Position{Holdings: 10}

	if _, ok := CheckExit(pos, 0.01); ok {
		t.Fatal("disarmed position must never signal")
	}
}

func TestValidateExitThresholds(t *testing.T) {
	if err := ValidateExitThresholds(ptr(45), ptr(60), 50); err != nil {
		t.Fatalf("bracketing thresholds should validate: %v", err)
	}
	if err := ValidateExitThresholds(nil, nil, 50); err != nil {
		t.Fatalf("disarming both sides should validate: %v", err)
	}
	if err := ValidateExitThresholds(ptr(50), nil, 50); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("stop at price should fail, got %v", err)
	}
	if err := ValidateExitThresholds(nil, ptr(50), 50); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("take profit at price should fail, got %v", err)
	}
	if err := ValidateExitThresholds(ptr(-1), nil, 50); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("negative stop should fail, got %v", err)
	}
}
