package models

import "time"

// FundingWindow - окно funding-ставки для актива.
// Одно окно на актив на период расчёта; rollover создаёт новое окно
// и финализирует предыдущее (начисления сбрасываются ровно один раз).
type FundingWindow struct {
	Asset       string    `json:"asset"`
	Rate        float64   `json:"rate"` // за период, доля (0.001 = 0.1%)
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// Состояния funding-арбитражной машины (state machine, один экземпляр на актив)
const (
	FundingIdle       = "IDLE"       // нет данных funding по активу
	FundingMonitoring = "MONITORING" // данные есть, ждём экстремума ставки
	FundingEntered    = "ENTERED"    // позиция открыта против знака funding
	FundingScaling    = "SCALING"    // ставка усилилась, позиция наращивается
	FundingExiting    = "EXITING"    // закрытие позиции
	FundingFailed     = "FAILED"     // исчерпаны retry закрытия, ждём оператора
)

// Ярусы жёсткости funding-ставки. Чем дальше ставка от нуля,
// тем агрессивнее множитель размера входа.
const (
	FundingTierNone    = ""
	FundingTierWeak    = "weak"
	FundingTierStrong  = "strong"
	FundingTierExtreme = "extreme"
)
