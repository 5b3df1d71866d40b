package models

import "time"

// Стороны позиции
const (
	SideLong  = "long"
	SideShort = "short"
)

// Position - открытая позиция по perpetual-контракту.
//
// Принадлежит исключительно PositionManager: мутации только через его
// Apply, чтение только через его копирующие запросы. На актив существует
// не более одной нетто-позиции: встречное действие уменьшает или
// переворачивает существующую, второй позиции не бывает.
type Position struct {
	Asset      string    `json:"asset"`
	Side       string    `json:"side"`
	Notional   float64   `json:"notional"` // размер в USD
	EntryPrice float64   `json:"entry_price"`
	Leverage   float64   `json:"leverage"`
	OpenedAt   time.Time `json:"opened_at"`

	// Funding: начисление в рамках текущего окна (монотонно растёт,
	// сбрасывается ровно один раз на границе окна) и накопленная
	// стоимость funding за торговый день
	FundingAccruedInWindow float64 `json:"funding_accrued_in_window"`
	FundingCostToday       float64 `json:"funding_cost_today"`

	StopLoss    float64       `json:"stop_loss,omitempty"`   // цена
	TakeProfit  float64       `json:"take_profit,omitempty"` // цена
	MaxHoldTime time.Duration `json:"max_hold_time,omitempty"`
}

// Quantity возвращает размер позиции в монетах по указанной цене
func (p *Position) Quantity(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return p.Notional / price
}

// UnrealizedPnl считает нереализованный PNL по текущей цене.
// Лонг: (цена - вход) × количество; шорт: (вход - цена) × количество.
func (p *Position) UnrealizedPnl(price float64) float64 {
	qty := p.Quantity(p.EntryPrice)
	if p.Side == SideLong {
		return (price - p.EntryPrice) * qty
	}
	return (p.EntryPrice - price) * qty
}

// Margin возвращает маржу, занятую позицией
func (p *Position) Margin() float64 {
	if p.Leverage <= 0 {
		return p.Notional
	}
	return p.Notional / p.Leverage
}

// HoldTimeExceeded проверяет превышение максимального времени удержания
func (p *Position) HoldTimeExceeded(now time.Time) bool {
	return p.MaxHoldTime > 0 && now.Sub(p.OpenedAt) >= p.MaxHoldTime
}

// OppositeSide возвращает противоположную сторону
func OppositeSide(side string) string {
	if side == SideLong {
		return SideShort
	}
	return SideLong
}
