package models

import "time"

// Методы комбинирования сигналов ансамблем
const (
	MethodVoting        = "voting"     // мажоритарное голосование
	MethodWeighted      = "weighted"   // взвешенная сумма
	MethodConfidence    = "confidence" // сигнал с максимальной уверенностью
	MethodBestPerformer = "best"       // стратегия с лучшей исторической точностью
)

// EnsembleDecision - итоговое решение ансамбля по одному активу.
//
// Создаётся заново каждый цикл оценки и не мутирует.
// Strength: знак = направление, модуль = убеждённость, всегда в [-1, 1].
type EnsembleDecision struct {
	Asset        string    `json:"asset"`
	Action       string    `json:"action"`   // BUY, SELL, HOLD
	Strength     float64   `json:"strength"` // [-1, 1]
	Method       string    `json:"method"`
	Contributing []string  `json:"contributing"` // strategy_id участвовавших сигналов
	Timestamp    time.Time `json:"timestamp"`
}

// IsHold возвращает true, если решение не требует действий
func (d *EnsembleDecision) IsHold() bool {
	return d.Action == ActionHold
}

// Виды одобренных действий
const (
	ActionKindNone     = "none"
	ActionKindOpen     = "open"
	ActionKindIncrease = "increase"
	ActionKindDecrease = "decrease"
	ActionKindClose    = "close"
)

// ApprovedAction - решение, прошедшее (или не прошедшее) риск-контроль.
//
// Kind=none означает даунгрейд до HOLD: Reason содержит причину блокировки.
// Notional и Leverage заполняются только для open/increase/decrease.
type ApprovedAction struct {
	Asset    string  `json:"asset"`
	Kind     string  `json:"kind"`
	Side     string  `json:"side,omitempty"`     // long, short
	Notional float64 `json:"notional,omitempty"` // размер в USD
	Leverage float64 `json:"leverage,omitempty"`
	Reason   string  `json:"reason,omitempty"` // причина блокировки/даунгрейда
}

// Approved возвращает true, если действие требует исполнения
func (a *ApprovedAction) Approved() bool {
	return a.Kind != ActionKindNone
}

// OrderIntent - намерение ордера для execution-коллаборатора.
// Ядро не знает протоколов бирж: исполнение полностью снаружи.
type OrderIntent struct {
	Asset    string  `json:"asset"`
	Side     string  `json:"side"` // long, short
	Kind     string  `json:"kind"` // open, increase, decrease, close
	Notional float64 `json:"notional"`
	Leverage float64 `json:"leverage"`
}

// PositionDelta - запись об изменении позиции для аудита
type PositionDelta struct {
	Asset      string    `json:"asset"`
	Kind       string    `json:"kind"`
	Side       string    `json:"side,omitempty"`
	SizeBefore float64   `json:"size_before"`
	SizeAfter  float64   `json:"size_after"`
	Timestamp  time.Time `json:"timestamp"`
}
