package bot

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"perpbot/internal/config"
	"perpbot/internal/models"
	"perpbot/pkg/utils"
)

// Причины блокировок (метрика RiskBlocks и поле Reason)
const (
	BlockTierLeverage    = "tier_leverage"
	BlockAssetExposure   = "asset_exposure"
	BlockClusterExposure = "cluster_exposure"
	BlockFreeCollateral  = "free_collateral"
	BlockKillSwitch      = "kill_switch"
	BlockAssetHalted     = "asset_halted"
	BlockSafeMode        = "safe_mode"
)

// Полосы ликвидационной лестницы
const (
	ladderBandNone      = 0 // коллатерал в норме
	ladderBandEntry     = 1 // < MinFreeCollateralPct: входы заблокированы
	ladderBandReduce    = 2 // < ReduceCollateralPct: принудительное сокращение
	ladderBandEmergency = 3 // < EmergencyCollateralPct: экстренное закрытие
)

// ReduceFraction - доля позиции, закрываемая при принудительном сокращении
const ReduceFraction = 0.5

// RiskGovernor проверяет решения ансамбля и funding-машин против лимитов.
//
// Проверки входа выполняются по порядку с short-circuit на первой
// неудаче. Закрытия и сокращения не блокируются никогда: единственный
// способ снизить риск - дать позиции закрыться.
//
// Лестница ликвидации edge-triggered: защитное действие срабатывает
// один раз на пересечении порога, а не каждый цикл пока коллатерал
// ниже порога. Восстановление выше порога взводит полосу заново.
type RiskGovernor struct {
	cfg    config.RiskConfig
	logger *zap.Logger

	mu            sync.Mutex
	ladderBand    int
	killSwitchDay time.Time       // день UTC, в который сработал kill-switch
	halted        map[string]bool // активы, остановленные до сброса оператором

	// onEvent вызывается для risk-событий (блокировки, лестница, kill-switch).
	// Обязан быть неблокирующим.
	onEvent func(models.Notification)
}

// NewRiskGovernor создаёт риск-контроль
func NewRiskGovernor(cfg config.RiskConfig, logger *zap.Logger, onEvent func(models.Notification)) *RiskGovernor {
	if onEvent == nil {
		onEvent = func(models.Notification) {}
	}
	return &RiskGovernor{
		cfg:     cfg,
		logger:  logger,
		halted:  make(map[string]bool),
		onEvent: onEvent,
	}
}

// Sizing вычисляет размер и плечо для решения.
//
//	notional = BasePositionPct × equity × |strength|
//	clamp до min(MaxSinglePositionPct × equity, tier.MaxPositionNotional)
//	leverage = min(RecommendedLeverage, tier.MaxLeverage)
func (rg *RiskGovernor) Sizing(asset string, strength, equity float64) (notional, leverage float64) {
	tier, ok := rg.cfg.Tiers[asset]
	if !ok {
		return 0, 0
	}

	notional = rg.cfg.BasePositionPct / 100 * equity * utils.Abs(strength)
	cap := utils.Min(rg.cfg.MaxSinglePositionPct/100*equity, tier.MaxPositionNotional)
	notional = utils.Clamp(notional, 0, cap)

	leverage = utils.Min(rg.cfg.RecommendedLeverage, tier.MaxLeverage)
	return notional, leverage
}

// Review проверяет решение ансамбля и возвращает одобренное действие.
//
// Параметры:
//   - decision: решение ансамбля
//   - pos: текущая позиция по активу (nil если позиции нет)
//   - rs: консистентный снимок рискового состояния
//   - acct: снимок счёта
//
// HOLD и отклонённые решения дают Kind=none с заполненным Reason.
func (rg *RiskGovernor) Review(decision models.EnsembleDecision, pos *models.Position, rs models.RiskState, acct models.AccountSnapshot) models.ApprovedAction {
	asset := decision.Asset
	noop := models.ApprovedAction{Asset: asset, Kind: models.ActionKindNone}

	if rg.IsHalted(asset) {
		noop.Reason = BlockAssetHalted
		return noop
	}

	if decision.IsHold() {
		return noop
	}

	desiredSide := models.SideLong
	if decision.Action == models.ActionSell {
		desiredSide = models.SideShort
	}

	desiredNotional, leverage := rg.Sizing(asset, decision.Strength, acct.Equity)
	if desiredNotional <= 0 || leverage <= 0 {
		return noop
	}

	// Классификация действия относительно текущей позиции.
	// Противоположная сторона - это flip: PositionManager неттингует
	// существующую позицию и открывает остаток.
	var kind string
	var orderNotional float64
	switch {
	case pos == nil:
		kind = models.ActionKindOpen
		orderNotional = desiredNotional
	case pos.Side != desiredSide:
		kind = models.ActionKindOpen
		orderNotional = desiredNotional
	case desiredNotional > pos.Notional:
		kind = models.ActionKindIncrease
		orderNotional = desiredNotional - pos.Notional
	case desiredNotional < pos.Notional:
		kind = models.ActionKindDecrease
		orderNotional = pos.Notional - desiredNotional
	default:
		return noop
	}

	// Сокращение снижает риск, проверки входа не применяются
	if kind == models.ActionKindDecrease {
		return models.ApprovedAction{
			Asset:    asset,
			Kind:     kind,
			Side:     desiredSide,
			Notional: orderNotional,
			Leverage: leverage,
		}
	}

	if reason := rg.checkEntry(asset, desiredNotional, leverage, rs, acct); reason != "" {
		RecordRiskBlock(reason)
		rg.emitBlock(asset, reason, decision)
		noop.Reason = reason
		return noop
	}

	return models.ApprovedAction{
		Asset:    asset,
		Kind:     kind,
		Side:     desiredSide,
		Notional: orderNotional,
		Leverage: leverage,
	}
}

// checkEntry выполняет упорядоченные проверки входа.
// Возвращает причину первой неудачи или "" если все проверки прошли.
func (rg *RiskGovernor) checkEntry(asset string, desiredNotional, leverage float64, rs models.RiskState, acct models.AccountSnapshot) string {
	tier, ok := rg.cfg.Tiers[asset]
	if !ok {
		return BlockAssetHalted
	}

	// 1. Плечо против tier-лимита
	if leverage > tier.MaxLeverage {
		return BlockTierLeverage
	}

	if acct.Equity <= 0 {
		return BlockFreeCollateral
	}

	// 2. Экспозиция по активу после изменения
	desiredPct := utils.PctOf(desiredNotional, acct.Equity)
	if desiredPct > rg.cfg.MaxAssetExposurePct {
		return BlockAssetExposure
	}

	// 3. Экспозиция кластера корреляции после изменения
	if cluster, ok := rg.cfg.Clusters[asset]; ok {
		clusterPct := rs.ClusterExposurePct[cluster] - rs.AssetExposurePct[asset] + desiredPct
		if clusterPct > rg.cfg.MaxClusterExposurePct {
			return BlockClusterExposure
		}
	}

	// 4. Свободный коллатерал после изменения
	addedMargin := desiredNotional / leverage
	afterPct := utils.PctOf(acct.FreeCollateral-addedMargin, acct.Equity)
	if afterPct < rg.cfg.MinFreeCollateralPct {
		return BlockFreeCollateral
	}

	// 5. Дневной kill-switch. Сработавший лимит защёлкивается до конца
	// торгового дня: входы остаются заблокированными, даже если убыток
	// позже отыгран прибыльными выходами.
	if rg.killSwitchEngaged() {
		return BlockKillSwitch
	}
	if rs.DailyRealizedLossPct > rg.cfg.MaxDailyLossPct {
		rg.fireKillSwitch(rs)
		return BlockKillSwitch
	}

	return ""
}

// killSwitchEngaged возвращает true, если kill-switch уже срабатывал
// в текущий день UTC
func (rg *RiskGovernor) killSwitchEngaged() bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return rg.killSwitchDay.Equal(utils.GetDayStart())
}

// fireKillSwitch эмитит событие kill-switch один раз за торговый день
func (rg *RiskGovernor) fireKillSwitch(rs models.RiskState) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	today := utils.GetDayStart()
	if rg.killSwitchDay.Equal(today) {
		return
	}
	rg.killSwitchDay = today

	rg.logger.Error("daily loss kill-switch engaged",
		zap.Float64("daily_realized_loss_pct", rs.DailyRealizedLossPct),
		zap.Float64("limit_pct", rg.cfg.MaxDailyLossPct))

	rg.onEvent(models.Notification{
		Timestamp: time.Now().UTC(),
		Type:      models.NotificationTypeKillSwitch,
		Severity:  models.SeverityError,
		Message: fmt.Sprintf("daily realized loss %.2f%% exceeded limit %.2f%%, entries blocked until next trading day",
			rs.DailyRealizedLossPct, rg.cfg.MaxDailyLossPct),
	})
}

// ============================================================
// Ликвидационная лестница
// ============================================================

// EvaluateLadder сравнивает свободный коллатерал с порогами лестницы
// и возвращает защитные действия для новой пересечённой полосы.
//
// Идемпотентность: пока коллатерал остаётся внутри той же полосы,
// повторные вызовы возвращают nil. Углубление в следующую полосу
// даёт действия этой полосы. Восстановление взводит лестницу заново.
func (rg *RiskGovernor) EvaluateLadder(rs models.RiskState, positions []models.Position) []models.ApprovedAction {
	band := rg.classifyBand(rs.FreeCollateralPct)

	rg.mu.Lock()
	prev := rg.ladderBand
	rg.ladderBand = band
	rg.mu.Unlock()

	if band <= prev {
		// Та же полоса или восстановление - действий нет
		return nil
	}

	switch band {
	case ladderBandEntry:
		LadderActions.WithLabelValues("entry_block").Inc()
		rg.logger.Warn("free collateral below entry threshold, new entries blocked",
			zap.Float64("free_collateral_pct", rs.FreeCollateralPct))
		rg.onEvent(models.Notification{
			Timestamp: time.Now().UTC(),
			Type:      models.NotificationTypeRiskBlock,
			Severity:  models.SeverityWarn,
			Message: fmt.Sprintf("free collateral %.2f%% below %.2f%%, new entries blocked",
				rs.FreeCollateralPct, rg.cfg.MinFreeCollateralPct),
		})
		// Блокировка входов реализуется проверкой 4 в checkEntry
		return nil

	case ladderBandReduce:
		LadderActions.WithLabelValues("reduce").Inc()
		target := largestRiskPosition(positions)
		if target == nil {
			return nil
		}
		rg.logger.Warn("free collateral below reduce threshold, forcing partial reduction",
			zap.Float64("free_collateral_pct", rs.FreeCollateralPct),
			zap.String("asset", target.Asset))
		rg.onEvent(models.Notification{
			Timestamp: time.Now().UTC(),
			Type:      models.NotificationTypeReduce,
			Severity:  models.SeverityWarn,
			Asset:     target.Asset,
			Message: fmt.Sprintf("free collateral %.2f%% below %.2f%%, reducing %s by %.0f%%",
				rs.FreeCollateralPct, rg.cfg.ReduceCollateralPct, target.Asset, ReduceFraction*100),
		})
		return []models.ApprovedAction{{
			Asset:    target.Asset,
			Kind:     models.ActionKindDecrease,
			Side:     target.Side,
			Notional: target.Notional * ReduceFraction,
			Leverage: target.Leverage,
			Reason:   "ladder_reduce",
		}}

	case ladderBandEmergency:
		LadderActions.WithLabelValues("emergency").Inc()
		rg.logger.Error("free collateral below emergency threshold, closing all positions",
			zap.Float64("free_collateral_pct", rs.FreeCollateralPct))
		rg.onEvent(models.Notification{
			Timestamp: time.Now().UTC(),
			Type:      models.NotificationTypeEmergencyClose,
			Severity:  models.SeverityError,
			Message: fmt.Sprintf("free collateral %.2f%% below %.2f%%, emergency close of all positions",
				rs.FreeCollateralPct, rg.cfg.EmergencyCollateralPct),
		})
		actions := make([]models.ApprovedAction, 0, len(positions))
		for _, pos := range positions {
			actions = append(actions, models.ApprovedAction{
				Asset:    pos.Asset,
				Kind:     models.ActionKindClose,
				Side:     pos.Side,
				Notional: pos.Notional,
				Leverage: pos.Leverage,
				Reason:   "ladder_emergency",
			})
		}
		return actions
	}

	return nil
}

// AssessLiquidationRisk оценивает дистанцию до ликвидации каждой
// открытой позиции и публикует её в gauge.
//
// Некорректное плечо в книге означает, что дистанция несчитаема,
// а торговать вслепую по этому активу нельзя: актив останавливается
// до сброса оператором.
func (rg *RiskGovernor) AssessLiquidationRisk(positions []models.Position) {
	for _, pos := range positions {
		distance := utils.LiquidationDistancePct(pos.Leverage, rg.cfg.MaintenanceMarginPct)
		if distance <= 0 {
			rg.HaltAsset(pos.Asset, "liquidation distance computation failed")
			continue
		}
		LiquidationDistance.WithLabelValues(pos.Asset).Set(distance)
	}
}

func (rg *RiskGovernor) classifyBand(freeCollateralPct float64) int {
	switch {
	case freeCollateralPct < rg.cfg.EmergencyCollateralPct:
		return ladderBandEmergency
	case freeCollateralPct < rg.cfg.ReduceCollateralPct:
		return ladderBandReduce
	case freeCollateralPct < rg.cfg.MinFreeCollateralPct:
		return ladderBandEntry
	default:
		return ladderBandNone
	}
}

// largestRiskPosition выбирает позицию с наибольшей маржой.
// Её сокращение высвобождает больше всего коллатерала.
func largestRiskPosition(positions []models.Position) *models.Position {
	var best *models.Position
	for i := range positions {
		if best == nil || positions[i].Margin() > best.Margin() {
			best = &positions[i]
		}
	}
	return best
}

// ============================================================
// Funding-cost governor
// ============================================================

// CheckFundingCost проверяет дневную стоимость funding позиции.
// Вызывается после каждого rollover'а. Превышение лимита даёт
// принудительное закрытие независимо от текущего P&L.
func (rg *RiskGovernor) CheckFundingCost(pos models.Position, equity float64) *models.ApprovedAction {
	if equity <= 0 {
		return nil
	}

	limit := rg.cfg.MaxDailyFundingCostPct / 100 * equity
	if pos.FundingCostToday <= limit {
		return nil
	}

	rg.logger.Warn("daily funding cost limit exceeded, force closing",
		zap.String("asset", pos.Asset),
		zap.Float64("funding_cost_today", pos.FundingCostToday),
		zap.Float64("limit", limit))
	rg.onEvent(models.Notification{
		Timestamp: time.Now().UTC(),
		Type:      models.NotificationTypeFundingCost,
		Severity:  models.SeverityWarn,
		Asset:     pos.Asset,
		Message: fmt.Sprintf("funding cost today %.2f exceeded limit %.2f, closing %s",
			pos.FundingCostToday, limit, pos.Asset),
	})

	return &models.ApprovedAction{
		Asset:    pos.Asset,
		Kind:     models.ActionKindClose,
		Side:     pos.Side,
		Notional: pos.Notional,
		Leverage: pos.Leverage,
		Reason:   "funding_cost",
	}
}

// ============================================================
// Halt / reset актива
// ============================================================

// HaltAsset останавливает автоматическую торговлю по активу.
// Используется при фатальных ошибках (сломан расчёт дистанции
// ликвидации, исчерпаны retry закрытия).
func (rg *RiskGovernor) HaltAsset(asset, reason string) {
	rg.mu.Lock()
	already := rg.halted[asset]
	rg.halted[asset] = true
	rg.mu.Unlock()

	if already {
		return
	}

	rg.logger.Error("asset halted", zap.String("asset", asset), zap.String("reason", reason))
	rg.onEvent(models.Notification{
		Timestamp: time.Now().UTC(),
		Type:      models.NotificationTypeHalt,
		Severity:  models.SeverityError,
		Asset:     asset,
		Message:   fmt.Sprintf("trading halted on %s: %s", asset, reason),
	})
}

// IsHalted возвращает true если актив остановлен
func (rg *RiskGovernor) IsHalted(asset string) bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return rg.halted[asset]
}

// ResetAsset снимает halt. Только по явной команде оператора.
func (rg *RiskGovernor) ResetAsset(asset string) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	delete(rg.halted, asset)
}

// HaltedAssets возвращает список остановленных активов
func (rg *RiskGovernor) HaltedAssets() []string {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	out := make([]string, 0, len(rg.halted))
	for asset := range rg.halted {
		out = append(out, asset)
	}
	return out
}

func (rg *RiskGovernor) emitBlock(asset, reason string, decision models.EnsembleDecision) {
	rg.logger.Info("decision blocked by risk governor",
		zap.String("asset", asset),
		zap.String("reason", reason),
		zap.String("action", decision.Action),
		zap.Float64("strength", decision.Strength))

	// Kill-switch эмитит собственное событие с дневной дедупликацией
	if reason == BlockKillSwitch {
		return
	}

	rg.onEvent(models.Notification{
		Timestamp: time.Now().UTC(),
		Type:      models.NotificationTypeRiskBlock,
		Severity:  models.SeverityInfo,
		Asset:     asset,
		Message:   fmt.Sprintf("%s %s blocked: %s", decision.Action, asset, reason),
	})
}
