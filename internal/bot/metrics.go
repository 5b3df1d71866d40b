package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"perpbot/internal/models"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// - Латентность цикла оценки (tick budget)
// - Счётчики решений ансамбля и блокировок риск-контроля
// - Состояние funding-машин и лестницы ликвидации
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о kill-switch и FAILED

// ============ Метрики латентности ============

// TickDuration - длительность полного цикла оценки по активу
var TickDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "perpbot",
		Subsystem: "engine",
		Name:      "tick_duration_ms",
		Help:      "Duration of a full evaluation tick in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 3000},
	},
	[]string{"asset"},
)

// OrderExecutionLatency - время исполнения order intent
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "perpbot",
		Subsystem: "engine",
		Name:      "order_execution_latency_ms",
		Help:      "Time to execute an order intent in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"asset", "kind"},
)

// ============ Счётчики решений ============

// EnsembleDecisions - решения ансамбля по методам и действиям
var EnsembleDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perpbot",
		Subsystem: "ensemble",
		Name:      "decisions_total",
		Help:      "Ensemble decisions by method and action",
	},
	[]string{"method", "action"},
)

// SignalsRejected - отброшенные сигналы стратегий
var SignalsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perpbot",
		Subsystem: "ensemble",
		Name:      "signals_rejected_total",
		Help:      "Strategy signals rejected by validation or staleness",
	},
	[]string{"reason"}, // invalid, stale
)

// RiskBlocks - блокировки решений риск-контролем
var RiskBlocks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perpbot",
		Subsystem: "risk",
		Name:      "blocks_total",
		Help:      "Decisions blocked by the risk governor",
	},
	[]string{"check"}, // tier_leverage, asset_exposure, cluster_exposure, free_collateral, kill_switch, funding_cost
)

// LadderActions - срабатывания лестницы ликвидации
var LadderActions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perpbot",
		Subsystem: "risk",
		Name:      "ladder_actions_total",
		Help:      "Liquidation ladder band crossings",
	},
	[]string{"band"}, // entry_block, reduce, emergency
)

// TradesTotal - исполненные сделки
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perpbot",
		Subsystem: "engine",
		Name:      "trades_total",
		Help:      "Executed trades by asset and result",
	},
	[]string{"asset", "result"}, // result: success, failed
)

// ============ Метрики состояния ============

// FundingMachines - funding-машины по состояниям
var FundingMachines = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "perpbot",
		Subsystem: "funding",
		Name:      "machines",
		Help:      "Funding state machines by state",
	},
	[]string{"state"},
)

// FundingRolloversTotal - выполненные rollover'ы funding-периодов
var FundingRolloversTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perpbot",
		Subsystem: "funding",
		Name:      "rollovers_total",
		Help:      "Funding period rollovers applied",
	},
	[]string{"asset"},
)

// OpenPositions - открытые позиции
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "perpbot",
		Subsystem: "engine",
		Name:      "open_positions",
		Help:      "Current number of open positions",
	},
)

// FreeCollateralPct - свободный коллатерал в процентах от equity
var FreeCollateralPct = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "perpbot",
		Subsystem: "risk",
		Name:      "free_collateral_pct",
		Help:      "Free collateral as percent of equity",
	},
)

// DailyRealizedLossPct - дневной реализованный убыток
var DailyRealizedLossPct = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "perpbot",
		Subsystem: "risk",
		Name:      "daily_realized_loss_pct",
		Help:      "Realized loss today as percent of equity",
	},
)

// LiquidationDistance - оценка дистанции до ликвидации позиции
var LiquidationDistance = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "perpbot",
		Subsystem: "risk",
		Name:      "liquidation_distance_pct",
		Help:      "Estimated price move to liquidation as percent, per open position",
	},
	[]string{"asset"},
)

// SafeMode - флаг safe mode (1 = только выходы)
var SafeMode = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "perpbot",
		Subsystem: "engine",
		Name:      "safe_mode",
		Help:      "Safe mode flag (1 = exits only, stale data)",
	},
)

// ============ Метрики производительности ============

// BufferOverflows - переполнения буферов каналов
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perpbot",
		Subsystem: "engine",
		Name:      "buffer_overflows_total",
		Help:      "Number of channel buffer overflows (events dropped)",
	},
	[]string{"buffer"}, // notification, delta, decision, ws_broadcast
)

// TickBudgetExceeded - циклы, не уложившиеся в бюджет
var TickBudgetExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perpbot",
		Subsystem: "engine",
		Name:      "tick_budget_exceeded_total",
		Help:      "Evaluation ticks that exceeded the tick budget",
	},
	[]string{"asset"},
)

// ============ Вспомогательные функции ============

// RecordDecision записывает решение ансамбля
func RecordDecision(method, action string) {
	EnsembleDecisions.WithLabelValues(method, action).Inc()
}

// RecordRiskBlock записывает блокировку риск-контроля
func RecordRiskBlock(check string) {
	RiskBlocks.WithLabelValues(check).Inc()
}

// RecordTrade записывает исполненную сделку
func RecordTrade(asset, result string) {
	TradesTotal.WithLabelValues(asset, result).Inc()
}

// RecordBufferOverflow записывает переполнение буфера
func RecordBufferOverflow(bufferName string) {
	BufferOverflows.WithLabelValues(bufferName).Inc()
}

// UpdateRiskGauges обновляет gauge'и рискового состояния
func UpdateRiskGauges(rs models.RiskState) {
	FreeCollateralPct.Set(rs.FreeCollateralPct)
	DailyRealizedLossPct.Set(rs.DailyRealizedLossPct)
}
