package models

import "time"

// RiskState - снимок рискового состояния счёта.
//
// Пересчитывается PositionManager'ом атомарно с каждым изменением позиций
// (минимум раз за цикл оценки и раз за funding rollover). Производное от
// позиций и снимка счёта, не персистится отдельно — кэш для дешёвых чтений.
type RiskState struct {
	FreeCollateralPct    float64            `json:"free_collateral_pct"` // % от equity
	TotalLeverage        float64            `json:"total_leverage"`
	AssetExposurePct     map[string]float64 `json:"asset_exposure_pct"`   // актив → % от equity
	ClusterExposurePct   map[string]float64 `json:"cluster_exposure_pct"` // кластер корреляции → %
	DailyRealizedLossPct float64            `json:"daily_realized_loss_pct"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Clone возвращает глубокую копию (map'ы копируются)
func (rs *RiskState) Clone() RiskState {
	out := *rs
	out.AssetExposurePct = make(map[string]float64, len(rs.AssetExposurePct))
	for k, v := range rs.AssetExposurePct {
		out.AssetExposurePct[k] = v
	}
	out.ClusterExposurePct = make(map[string]float64, len(rs.ClusterExposurePct))
	for k, v := range rs.ClusterExposurePct {
		out.ClusterExposurePct[k] = v
	}
	return out
}

// AssetTier - статический класс актива с лимитами.
// Read-only для ядра: задаётся конфигурацией при старте.
type AssetTier struct {
	ID                  string        `json:"id"`
	MaxLeverage         float64       `json:"max_leverage"`
	MaxPositionNotional float64       `json:"max_position_notional"` // USD
	MaxHoldTime         time.Duration `json:"max_hold_time"`
	FundingPeriod       time.Duration `json:"funding_period"` // 1h или 8h, задаётся per-market
}

// AccountSnapshot - снимок счёта от exchange-коллаборатора
type AccountSnapshot struct {
	Equity         float64   `json:"equity"` // USD
	FreeCollateral float64   `json:"free_collateral"`
	Timestamp      time.Time `json:"timestamp"`
}

// PriceSnapshot - снимок цены от market-data коллаборатора
type PriceSnapshot struct {
	Asset     string    `json:"asset"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
