package models

import (
	"fmt"
	"time"
)

// Направления сигнала стратегии
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// StrategySignal представляет сигнал одной стратегии для актива.
//
// Иммутабелен после создания: агрегатор и ансамбль работают только
// с копиями. Живёт один цикл оценки, после чего отбрасывается.
type StrategySignal struct {
	StrategyID string    `json:"strategy_id"`
	Asset      string    `json:"asset"`                // BTC-PERP
	Action     string    `json:"action"`               // BUY, SELL, HOLD
	Confidence float64   `json:"confidence"`           // [0, 1]
	Timestamp  time.Time `json:"timestamp"`
	Weight     float64   `json:"weight"`               // статический вес стратегии, >= 0

	// Историческая точность стратегии [0, 1].
	// nil = данных пока нет (стратегия не прошла ни одного разрешённого исхода)
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// Validate проверяет корректность сигнала.
// Невалидные сигналы отбрасываются агрегатором и НЕ попадают в ансамбль —
// никогда не приводим значения к допустимому диапазону молча.
func (s *StrategySignal) Validate() error {
	if s.StrategyID == "" {
		return fmt.Errorf("signal has empty strategy_id")
	}
	if s.Asset == "" {
		return fmt.Errorf("signal from %s has empty asset", s.StrategyID)
	}
	switch s.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return fmt.Errorf("signal from %s has unknown action %q", s.StrategyID, s.Action)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal from %s has confidence %.4f outside [0,1]", s.StrategyID, s.Confidence)
	}
	if s.Weight < 0 {
		return fmt.Errorf("signal from %s has negative weight %.4f", s.StrategyID, s.Weight)
	}
	if s.Accuracy != nil && (*s.Accuracy < 0 || *s.Accuracy > 1) {
		return fmt.Errorf("signal from %s has accuracy %.4f outside [0,1]", s.StrategyID, *s.Accuracy)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("signal from %s has zero timestamp", s.StrategyID)
	}
	return nil
}

// Direction возвращает числовое направление сигнала: +1 BUY, -1 SELL, 0 HOLD
func (s *StrategySignal) Direction() float64 {
	switch s.Action {
	case ActionBuy:
		return 1
	case ActionSell:
		return -1
	default:
		return 0
	}
}

// AccuracyOr возвращает историческую точность или fallback, если данных нет
func (s *StrategySignal) AccuracyOr(fallback float64) float64 {
	if s.Accuracy == nil {
		return fallback
	}
	return *s.Accuracy
}
