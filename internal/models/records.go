package models

import "time"

// TradeRecord - строка журнала изменений позиций (таблица trades).
// Каждый PositionDelta ядра порождает ровно одну строку.
type TradeRecord struct {
	ID         int       `json:"id" db:"id"`
	Asset      string    `json:"asset" db:"asset"`
	Kind       string    `json:"kind" db:"kind"`
	Side       string    `json:"side,omitempty" db:"side"`
	SizeBefore float64   `json:"size_before" db:"size_before"`
	SizeAfter  float64   `json:"size_after" db:"size_after"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// TradeRecordFromDelta конвертирует аудит-событие ядра в строку журнала
func TradeRecordFromDelta(d PositionDelta) *TradeRecord {
	return &TradeRecord{
		Asset:      d.Asset,
		Kind:       d.Kind,
		Side:       d.Side,
		SizeBefore: d.SizeBefore,
		SizeAfter:  d.SizeAfter,
		CreatedAt:  d.Timestamp,
	}
}

// DecisionRecord - строка журнала решений ансамбля (таблица decisions).
// Пишутся только решения, дошедшие до исполнения; HOLD'ы не журналируются.
type DecisionRecord struct {
	ID           int       `json:"id" db:"id"`
	Asset        string    `json:"asset" db:"asset"`
	Action       string    `json:"action" db:"action"`
	Strength     float64   `json:"strength" db:"strength"`
	Method       string    `json:"method" db:"method"`
	Contributing []string  `json:"contributing" db:"contributing"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DecisionRecordFrom конвертирует решение ансамбля в строку журнала
func DecisionRecordFrom(d EnsembleDecision) *DecisionRecord {
	return &DecisionRecord{
		Asset:        d.Asset,
		Action:       d.Action,
		Strength:     d.Strength,
		Method:       d.Method,
		Contributing: d.Contributing,
		CreatedAt:    d.Timestamp,
	}
}
