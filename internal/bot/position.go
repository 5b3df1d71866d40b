package bot

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"perpbot/internal/models"
	"perpbot/pkg/utils"
)

// PositionManager владеет позициями и рисковым состоянием счёта.
//
// Инвариант: не более одной нетто-позиции на актив. Одобренное
// действие противоположной стороны неттингуется против существующей
// позиции (сокращает или переворачивает её), второй позиции не бывает.
//
// Каждая мутация позиции и пересчёт RiskState выполняются атомарно
// под одним мьютексом: никакой читатель не увидит RiskState,
// отражающий частично применённое изменение.
type PositionManager struct {
	mu       sync.Mutex
	clusters map[string]string // актив → кластер корреляции

	positions map[string]*models.Position
	account   models.AccountSnapshot
	riskState models.RiskState

	realizedPnlToday float64
	dayStart         time.Time

	logger *zap.Logger

	// onDelta вызывается для каждого применённого изменения (аудит).
	// Обязан быть неблокирующим.
	onDelta func(models.PositionDelta)
}

// NewPositionManager создаёт менеджер позиций
func NewPositionManager(clusters map[string]string, logger *zap.Logger, onDelta func(models.PositionDelta)) *PositionManager {
	if onDelta == nil {
		onDelta = func(models.PositionDelta) {}
	}
	return &PositionManager{
		clusters:  clusters,
		positions: make(map[string]*models.Position),
		dayStart:  utils.GetDayStart(),
		logger:    logger,
		onDelta:   onDelta,
		riskState: models.RiskState{
			AssetExposurePct:   map[string]float64{},
			ClusterExposurePct: map[string]float64{},
		},
	}
}

// UpdateAccount принимает свежий снимок счёта и пересчитывает RiskState
func (pm *PositionManager) UpdateAccount(acct models.AccountSnapshot) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.account = acct
	pm.maybeRollDay(acct.Timestamp)
	pm.recompute(acct.Timestamp)
}

// Apply применяет одобренное действие как одну атомарную мутацию.
//
// Параметры:
//   - action: одобренное действие (open/increase/decrease/close)
//   - fillPrice: цена исполнения от execution-коллаборатора
//   - maxHold: лимит удержания из tier'а (для новых позиций)
//
// Возвращает дельту для аудита.
func (pm *PositionManager) Apply(action models.ApprovedAction, fillPrice float64, maxHold time.Duration, now time.Time) (models.PositionDelta, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.maybeRollDay(now)

	if fillPrice <= 0 {
		return models.PositionDelta{}, fmt.Errorf("invalid fill price %v for %s", fillPrice, action.Asset)
	}

	pos := pm.positions[action.Asset]
	var before float64
	if pos != nil {
		before = pos.Notional
	}

	var err error
	switch action.Kind {
	case models.ActionKindOpen:
		err = pm.applyOpen(action, fillPrice, maxHold, now)
	case models.ActionKindIncrease:
		err = pm.applyIncrease(action, fillPrice)
	case models.ActionKindDecrease:
		err = pm.applyReduce(action.Asset, action.Notional, fillPrice, now)
	case models.ActionKindClose:
		err = pm.applyReduce(action.Asset, before, fillPrice, now)
	default:
		err = fmt.Errorf("unknown action kind %q", action.Kind)
	}
	if err != nil {
		return models.PositionDelta{}, err
	}

	pm.recompute(now)

	var after float64
	var side string
	if p := pm.positions[action.Asset]; p != nil {
		after = p.Notional
		side = p.Side
	}

	delta := models.PositionDelta{
		Asset:      action.Asset,
		Kind:       action.Kind,
		Side:       side,
		SizeBefore: before,
		SizeAfter:  after,
		Timestamp:  now,
	}
	pm.onDelta(delta)
	return delta, nil
}

// applyOpen открывает позицию или неттингует против противоположной.
// ВАЖНО: вызывается под lock'ом.
func (pm *PositionManager) applyOpen(action models.ApprovedAction, fillPrice float64, maxHold time.Duration, now time.Time) error {
	pos := pm.positions[action.Asset]

	if pos == nil {
		pm.positions[action.Asset] = &models.Position{
			Asset:       action.Asset,
			Side:        action.Side,
			Notional:    action.Notional,
			EntryPrice:  fillPrice,
			Leverage:    action.Leverage,
			OpenedAt:    now,
			MaxHoldTime: maxHold,
		}
		return nil
	}

	if pos.Side == action.Side {
		// Одна сторона - это increase, не open
		return pm.increaseInto(pos, action.Notional, fillPrice)
	}

	// Неттинг против противоположной позиции
	net := action.Notional - pos.Notional
	switch {
	case net < 0:
		// Противоположный ордер меньше позиции - сокращение
		return pm.reduceInto(action.Asset, pos, action.Notional, fillPrice, now)
	case net == 0:
		return pm.reduceInto(action.Asset, pos, pos.Notional, fillPrice, now)
	default:
		// Переворот: закрываем существующую, остаток открывает новую сторону
		if err := pm.reduceInto(action.Asset, pos, pos.Notional, fillPrice, now); err != nil {
			return err
		}
		pm.positions[action.Asset] = &models.Position{
			Asset:       action.Asset,
			Side:        action.Side,
			Notional:    net,
			EntryPrice:  fillPrice,
			Leverage:    action.Leverage,
			OpenedAt:    now,
			MaxHoldTime: maxHold,
		}
		return nil
	}
}

// applyIncrease наращивает существующую позицию той же стороны.
// ВАЖНО: вызывается под lock'ом.
func (pm *PositionManager) applyIncrease(action models.ApprovedAction, fillPrice float64) error {
	pos := pm.positions[action.Asset]
	if pos == nil {
		return fmt.Errorf("increase on %s without a position", action.Asset)
	}
	if pos.Side != action.Side {
		return fmt.Errorf("increase side %s does not match position side %s on %s", action.Side, pos.Side, action.Asset)
	}
	return pm.increaseInto(pos, action.Notional, fillPrice)
}

// increaseInto добавляет notional со средневзвешенной ценой входа.
// ВАЖНО: вызывается под lock'ом.
func (pm *PositionManager) increaseInto(pos *models.Position, addNotional, fillPrice float64) error {
	if addNotional <= 0 {
		return fmt.Errorf("increase notional must be positive, got %v", addNotional)
	}

	total := pos.Notional + addNotional
	pos.EntryPrice = (pos.EntryPrice*pos.Notional + fillPrice*addNotional) / total
	pos.Notional = total
	return nil
}

// applyReduce сокращает или закрывает позицию.
// ВАЖНО: вызывается под lock'ом.
func (pm *PositionManager) applyReduce(asset string, reduceNotional, fillPrice float64, now time.Time) error {
	pos := pm.positions[asset]
	if pos == nil {
		return fmt.Errorf("reduce on %s without a position", asset)
	}
	return pm.reduceInto(asset, pos, reduceNotional, fillPrice, now)
}

// reduceInto реализует P&L закрываемой доли и удаляет позицию при
// полном закрытии.
// ВАЖНО: вызывается под lock'ом.
func (pm *PositionManager) reduceInto(asset string, pos *models.Position, reduceNotional, fillPrice float64, now time.Time) error {
	if reduceNotional <= 0 {
		return fmt.Errorf("reduce notional must be positive, got %v", reduceNotional)
	}
	if reduceNotional > pos.Notional {
		reduceNotional = pos.Notional
	}

	fraction := reduceNotional / pos.Notional
	realized := pos.UnrealizedPnl(fillPrice) * fraction
	pm.realizedPnlToday += realized

	pm.logger.Info("position reduced",
		zap.String("asset", asset),
		zap.Float64("reduced_notional", reduceNotional),
		zap.Float64("realized_pnl", realized))

	if reduceNotional >= pos.Notional {
		delete(pm.positions, asset)
		return nil
	}
	pos.Notional -= reduceNotional
	return nil
}

// ============================================================
// Funding rollover
// ============================================================

// ApplyFundingRollover начисляет funding-платёж позиции.
//
// Идемпотентность границы периода обеспечивает FundingManager,
// сюда платёж приходит ровно один раз на окно.
func (pm *PositionManager) ApplyFundingRollover(asset string, rate float64, now time.Time) float64 {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.maybeRollDay(now)

	pos := pm.positions[asset]
	if pos == nil {
		return 0
	}

	payment := utils.FundingPayment(rate, pos.Notional, pos.Side)
	pos.FundingAccruedInWindow = payment
	pos.FundingCostToday += payment
	pm.realizedPnlToday -= payment

	pm.recompute(now)
	return payment
}

// ============================================================
// Чтение
// ============================================================

// Position возвращает копию позиции актива (nil если позиции нет)
func (pm *PositionManager) Position(asset string) *models.Position {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pos, ok := pm.positions[asset]
	if !ok {
		return nil
	}
	cp := *pos
	return &cp
}

// Positions возвращает копии всех открытых позиций
func (pm *PositionManager) Positions() []models.Position {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	out := make([]models.Position, 0, len(pm.positions))
	for _, pos := range pm.positions {
		out = append(out, *pos)
	}
	return out
}

// RiskState возвращает консистентный снимок рискового состояния
func (pm *PositionManager) RiskState() models.RiskState {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.riskState.Clone()
}

// Account возвращает последний снимок счёта
func (pm *PositionManager) Account() models.AccountSnapshot {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.account
}

// RealizedPnlToday возвращает реализованный P&L текущего дня UTC
func (pm *PositionManager) RealizedPnlToday() float64 {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.realizedPnlToday
}

// ============================================================
// Внутреннее
// ============================================================

// maybeRollDay сбрасывает дневные счётчики на границе дня UTC.
// ВАЖНО: вызывается под lock'ом.
func (pm *PositionManager) maybeRollDay(now time.Time) {
	day := utils.GetDayStartFrom(now)
	if day.Equal(pm.dayStart) {
		return
	}
	pm.dayStart = day
	pm.realizedPnlToday = 0
	for _, pos := range pm.positions {
		pos.FundingCostToday = 0
	}
}

// recompute пересчитывает RiskState из позиций и снимка счёта.
// ВАЖНО: вызывается под lock'ом.
func (pm *PositionManager) recompute(now time.Time) {
	equity := pm.account.Equity

	rs := models.RiskState{
		AssetExposurePct:   make(map[string]float64, len(pm.positions)),
		ClusterExposurePct: make(map[string]float64),
		UpdatedAt:          now,
	}

	var totalNotional, totalMargin float64
	for asset, pos := range pm.positions {
		totalNotional += pos.Notional
		totalMargin += pos.Margin()

		pct := utils.PctOf(pos.Notional, equity)
		rs.AssetExposurePct[asset] = pct
		if cluster, ok := pm.clusters[asset]; ok {
			rs.ClusterExposurePct[cluster] += pct
		}
	}

	if equity > 0 {
		rs.TotalLeverage = totalNotional / equity
	}
	rs.FreeCollateralPct = utils.PctOf(pm.account.FreeCollateral, equity)
	if pm.realizedPnlToday < 0 {
		rs.DailyRealizedLossPct = utils.PctOf(-pm.realizedPnlToday, equity)
	}

	pm.riskState = rs

	OpenPositions.Set(float64(len(pm.positions)))
	UpdateRiskGauges(rs)
}
