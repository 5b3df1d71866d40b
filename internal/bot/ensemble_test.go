package bot

import (
	"math"
	"testing"
	"time"

	"perpbot/internal/models"
)

func sig(id, action string, confidence, weight float64, accuracy *float64) models.StrategySignal {
	return models.StrategySignal{
		StrategyID: id,
		Asset:      "BTC-PERP",
		Action:     action,
		Confidence: confidence,
		Timestamp:  time.Now(),
		Weight:     weight,
		Accuracy:   accuracy,
	}
}

func accPtr(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// ============================================================
// Voting
// ============================================================

func TestVotingMajority(t *testing.T) {
	e, err := NewEnsemble(models.MethodVoting, 0.6, 0.1)
	if err != nil {
		t.Fatalf("NewEnsemble failed: %v", err)
	}

	// BUY(0.9), BUY(0.65), SELL(0.5 - исключается), HOLD(0.7)
	// Подсчёт: {BUY:2, HOLD:1} -> BUY, strength 2/3
	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 0.9, 1, nil),
		sig("b", models.ActionBuy, 0.65, 1, nil),
		sig("c", models.ActionSell, 0.5, 1, nil),
		sig("d", models.ActionHold, 0.7, 1, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionBuy {
		t.Errorf("action = %s, want BUY", d.Action)
	}
	if !almostEqual(d.Strength, 2.0/3.0) {
		t.Errorf("strength = %v, want %v", d.Strength, 2.0/3.0)
	}
	if len(d.Contributing) != 3 {
		t.Errorf("contributing = %d, want 3 (excluded below min confidence)", len(d.Contributing))
	}
}

func TestVotingTieIsHold(t *testing.T) {
	e, _ := NewEnsemble(models.MethodVoting, 0.6, 0.1)

	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 0.8, 1, nil),
		sig("b", models.ActionSell, 0.8, 1, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionHold {
		t.Errorf("tie must yield HOLD, got %s", d.Action)
	}
	if d.Strength != 0 {
		t.Errorf("HOLD strength must be 0, got %v", d.Strength)
	}
}

func TestVotingSellNegativeStrength(t *testing.T) {
	e, _ := NewEnsemble(models.MethodVoting, 0.6, 0.1)

	signals := []models.StrategySignal{
		sig("a", models.ActionSell, 0.9, 1, nil),
		sig("b", models.ActionSell, 0.7, 1, nil),
		sig("c", models.ActionBuy, 0.8, 1, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionSell {
		t.Errorf("action = %s, want SELL", d.Action)
	}
	if !almostEqual(d.Strength, -2.0/3.0) {
		t.Errorf("strength = %v, want %v", d.Strength, -2.0/3.0)
	}
}

func TestVotingAllBelowThreshold(t *testing.T) {
	e, _ := NewEnsemble(models.MethodVoting, 0.6, 0.1)

	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 0.5, 1, nil),
		sig("b", models.ActionSell, 0.3, 1, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionHold || d.Strength != 0 {
		t.Errorf("no counted signals must yield HOLD/0, got %s/%v", d.Action, d.Strength)
	}
}

// ============================================================
// Weighted
// ============================================================

func TestWeightedExample(t *testing.T) {
	e, _ := NewEnsemble(models.MethodWeighted, 0.6, 0.1)

	// BUY(0.8, w1.5), BUY(0.6, w1.0), SELL(0.9, w0.5), без accuracy
	// strength = (0.8*1.5 + 0.6*1.0 - 0.9*0.5) / 3.0 = 1.35/3.0 = 0.45
	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 0.8, 1.5, nil),
		sig("b", models.ActionBuy, 0.6, 1.0, nil),
		sig("c", models.ActionSell, 0.9, 0.5, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionBuy {
		t.Errorf("action = %s, want BUY", d.Action)
	}
	if !almostEqual(d.Strength, 0.45) {
		t.Errorf("strength = %v, want 0.45", d.Strength)
	}
}

func TestWeightedNeutralBand(t *testing.T) {
	e, _ := NewEnsemble(models.MethodWeighted, 0.6, 0.1)

	// Почти сбалансированные сигналы: |strength| < 0.1 -> HOLD
	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 0.5, 1, nil),
		sig("b", models.ActionSell, 0.45, 1, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionHold {
		t.Errorf("inside neutral band must be HOLD, got %s", d.Action)
	}
	if d.Strength != 0 {
		t.Errorf("HOLD strength must be 0, got %v", d.Strength)
	}
}

func TestWeightedUsesAccuracy(t *testing.T) {
	e, _ := NewEnsemble(models.MethodWeighted, 0.6, 0.1)

	// Точная стратегия должна перевесить неточную при равных весах
	signals := []models.StrategySignal{
		sig("precise", models.ActionBuy, 0.8, 1, accPtr(0.9)),
		sig("sloppy", models.ActionSell, 0.8, 1, accPtr(0.2)),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionBuy {
		t.Errorf("accurate strategy must dominate, got %s", d.Action)
	}
}

// ============================================================
// Confidence
// ============================================================

func TestConfidencePicksMax(t *testing.T) {
	e, _ := NewEnsemble(models.MethodConfidence, 0.6, 0.1)

	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 0.7, 1, nil),
		sig("b", models.ActionSell, 0.95, 1, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionSell {
		t.Errorf("action = %s, want SELL", d.Action)
	}
	if !almostEqual(d.Strength, -0.95) {
		t.Errorf("strength = %v, want -0.95", d.Strength)
	}
	if len(d.Contributing) != 1 || d.Contributing[0] != "b" {
		t.Errorf("contributing = %v, want [b]", d.Contributing)
	}
}

func TestConfidenceTieBreaksByStrategyID(t *testing.T) {
	e, _ := NewEnsemble(models.MethodConfidence, 0.6, 0.1)

	signals := []models.StrategySignal{
		sig("zeta", models.ActionSell, 0.8, 1, nil),
		sig("alpha", models.ActionBuy, 0.8, 1, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Contributing[0] != "alpha" {
		t.Errorf("tie must pick lowest strategy id, got %v", d.Contributing)
	}
	if d.Action != models.ActionBuy {
		t.Errorf("action = %s, want BUY", d.Action)
	}
}

// ============================================================
// BestPerformer
// ============================================================

func TestBestPerformerPicksHighestAccuracy(t *testing.T) {
	e, _ := NewEnsemble(models.MethodBestPerformer, 0.6, 0.1)

	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 0.9, 1, accPtr(0.55)),
		sig("b", models.ActionSell, 0.7, 1, accPtr(0.8)),
		sig("c", models.ActionBuy, 0.95, 1, nil), // без точности не участвует
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionSell {
		t.Errorf("action = %s, want SELL (best accuracy)", d.Action)
	}
	if len(d.Contributing) != 1 || d.Contributing[0] != "b" {
		t.Errorf("contributing = %v, want [b]", d.Contributing)
	}
}

func TestBestPerformerFallsBackToVoting(t *testing.T) {
	e, _ := NewEnsemble(models.MethodBestPerformer, 0.6, 0.1)

	// Ни у одного сигнала нет accuracy -> fallback на voting
	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 0.9, 1, nil),
		sig("b", models.ActionBuy, 0.7, 1, nil),
		sig("c", models.ActionSell, 0.8, 1, nil),
	}

	d := e.Combine("BTC-PERP", signals, time.Now())
	if d.Action != models.ActionBuy {
		t.Errorf("fallback voting action = %s, want BUY", d.Action)
	}
	if !almostEqual(d.Strength, 2.0/3.0) {
		t.Errorf("fallback voting strength = %v, want %v", d.Strength, 2.0/3.0)
	}
}

// ============================================================
// Общие случаи
// ============================================================

func TestEmptySignalsIsHold(t *testing.T) {
	for _, method := range []string{
		models.MethodVoting, models.MethodWeighted, models.MethodConfidence, models.MethodBestPerformer,
	} {
		e, _ := NewEnsemble(method, 0.6, 0.1)
		d := e.Combine("BTC-PERP", nil, time.Now())
		if d.Action != models.ActionHold || d.Strength != 0 {
			t.Errorf("method %s: empty signals must yield HOLD/0, got %s/%v", method, d.Action, d.Strength)
		}
	}
}

func TestStrengthStaysInRange(t *testing.T) {
	signals := []models.StrategySignal{
		sig("a", models.ActionBuy, 1.0, 5, accPtr(1.0)),
		sig("b", models.ActionBuy, 1.0, 3, accPtr(1.0)),
		sig("c", models.ActionSell, 1.0, 0.1, accPtr(0.1)),
	}

	for _, method := range []string{
		models.MethodVoting, models.MethodWeighted, models.MethodConfidence, models.MethodBestPerformer,
	} {
		e, _ := NewEnsemble(method, 0.6, 0.1)
		d := e.Combine("BTC-PERP", signals, time.Now())
		if d.Strength < -1 || d.Strength > 1 {
			t.Errorf("method %s: strength %v out of [-1,1]", method, d.Strength)
		}
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	if _, err := NewEnsemble("oracle", 0.6, 0.1); err == nil {
		t.Error("expected error for unknown method")
	}
}
