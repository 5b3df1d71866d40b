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

// Виды funding-намерений
const (
	FundingIntentEnter = "enter"
	FundingIntentScale = "scale"
	FundingIntentExit  = "exit"
)

// FundingIntent - намерение funding-машины, требующее одобрения
// риск-контроля и исполнения. Машина сама ордеров не отправляет.
type FundingIntent struct {
	Asset    string
	Kind     string  // enter, scale, exit
	Side     string  // long, short
	Notional float64 // для enter - полный размер, для scale - добавка
	Tier     string  // ярус ставки, давший намерение
	Reason   string  // для exit - причина
}

// FundingMachine - состояние funding-арбитража по одному активу
type FundingMachine struct {
	Asset        string    `json:"asset"`
	State        string    `json:"state"`
	Tier         string    `json:"tier"` // ярус текущего входа
	EnteredAt    time.Time `json:"entered_at,omitempty"`
	BaseNotional float64   `json:"base_notional,omitempty"` // базовый размер на момент входа
	LastBoundary time.Time `json:"last_boundary,omitempty"` // последняя обработанная граница периода
	LastRate     float64   `json:"last_rate"`
}

// FundingManager ведёт funding-машины всех активов.
//
// Переходы - чистые функции последнего FundingWindow и пары
// позиция/состояние. Подтверждения исполнения (ConfirmEntered,
// ConfirmClosed) приходят от движка после фактического исполнения.
type FundingManager struct {
	cfg    config.FundingConfig
	logger *zap.Logger

	mu       sync.Mutex
	machines map[string]*FundingMachine

	onEvent func(models.Notification)
}

// NewFundingManager создаёт менеджер funding-машин
func NewFundingManager(cfg config.FundingConfig, logger *zap.Logger, onEvent func(models.Notification)) *FundingManager {
	if onEvent == nil {
		onEvent = func(models.Notification) {}
	}
	return &FundingManager{
		cfg:      cfg,
		logger:   logger,
		machines: make(map[string]*FundingMachine),
		onEvent:  onEvent,
	}
}

// machine возвращает машину актива, создавая её в IDLE при первом обращении.
// ВАЖНО: вызывается под lock'ом.
func (fm *FundingManager) machine(asset string) *FundingMachine {
	m, ok := fm.machines[asset]
	if !ok {
		m = &FundingMachine{Asset: asset, State: models.FundingIdle}
		fm.machines[asset] = m
		FundingMachines.WithLabelValues(models.FundingIdle).Inc()
	}
	return m
}

// setState выполняет переход с проверкой допустимости.
// ВАЖНО: вызывается под lock'ом.
func (fm *FundingManager) setState(m *FundingMachine, to string) bool {
	if !CanTransition(m.State, to) {
		fm.logger.Error("invalid funding transition",
			zap.String("asset", m.Asset),
			zap.String("from", m.State),
			zap.String("to", to))
		return false
	}

	FundingMachines.WithLabelValues(m.State).Dec()
	FundingMachines.WithLabelValues(to).Inc()

	fm.logger.Info("funding machine transition",
		zap.String("asset", m.Asset),
		zap.String("from", m.State),
		zap.String("to", to))
	m.State = to
	return true
}

// classifyTier возвращает ярус жёсткости ставки и множитель размера
func (fm *FundingManager) classifyTier(rate float64) (string, float64) {
	abs := utils.Abs(rate)
	switch {
	case abs >= fm.cfg.ExtremeThreshold:
		return models.FundingTierExtreme, fm.cfg.ExtremeMultiplier
	case abs >= fm.cfg.StrongThreshold:
		return models.FundingTierStrong, fm.cfg.StrongMultiplier
	case abs >= fm.cfg.WeakThreshold:
		return models.FundingTierWeak, fm.cfg.WeakMultiplier
	default:
		return models.FundingTierNone, 0
	}
}

func tierSeverity(tier string) int {
	switch tier {
	case models.FundingTierWeak:
		return 1
	case models.FundingTierStrong:
		return 2
	case models.FundingTierExtreme:
		return 3
	default:
		return 0
	}
}

// fundingSide возвращает сторону входа против знака ставки:
// положительный funding платят лонги - открываем шорт и собираем его.
func fundingSide(rate float64) string {
	if rate > 0 {
		return models.SideShort
	}
	return models.SideLong
}

// Evaluate оценивает машину актива по последнему окну funding.
//
// Параметры:
//   - window: последний снимок funding (nil = данных нет)
//   - pos: текущая позиция актива (nil если нет)
//   - price: текущая цена для расчёта нереализованного P&L
//   - equity: equity счёта для базового размера
//   - maxHold: лимит удержания из tier'а актива
//
// Возвращает намерение или nil, если действий не требуется.
func (fm *FundingManager) Evaluate(asset string, window *models.FundingWindow, pos *models.Position, price, equity float64, maxHold time.Duration, now time.Time) *FundingIntent {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)

	if window != nil {
		m.LastRate = window.Rate
	}

	switch m.State {
	case models.FundingIdle:
		if window == nil {
			return nil
		}
		if !fm.setState(m, models.FundingMonitoring) {
			return nil
		}
		return fm.evaluateMonitoring(m, window, equity)

	case models.FundingMonitoring:
		if window == nil {
			return nil
		}
		return fm.evaluateMonitoring(m, window, equity)

	case models.FundingEntered, models.FundingScaling:
		if pos == nil {
			// Позиция исчезла вне нашего контроля (ручное закрытие на бирже)
			fm.forceIdle(m)
			return nil
		}
		if intent := fm.exitCondition(m, window, pos, price, maxHold, now); intent != nil {
			return intent
		}
		if m.State == models.FundingEntered {
			return fm.scalingCondition(m, window, pos, equity)
		}
		return nil

	case models.FundingExiting, models.FundingFailed:
		// Закрытие ведёт движок, FAILED ждёт оператора
		return nil
	}

	return nil
}

// evaluateMonitoring проверяет условие входа.
// ВАЖНО: вызывается под lock'ом, состояние MONITORING.
func (fm *FundingManager) evaluateMonitoring(m *FundingMachine, window *models.FundingWindow, equity float64) *FundingIntent {
	tier, mult := fm.classifyTier(window.Rate)
	if tier == models.FundingTierNone {
		return nil
	}

	base := fm.cfg.BaseTradePct / 100 * equity
	return &FundingIntent{
		Asset:    m.Asset,
		Kind:     FundingIntentEnter,
		Side:     fundingSide(window.Rate),
		Notional: base * mult,
		Tier:     tier,
	}
}

// exitCondition проверяет условия выхода для ENTERED/SCALING.
// ВАЖНО: вызывается под lock'ом.
func (fm *FundingManager) exitCondition(m *FundingMachine, window *models.FundingWindow, pos *models.Position, price float64, maxHold time.Duration, now time.Time) *FundingIntent {
	exit := func(reason string) *FundingIntent {
		return &FundingIntent{
			Asset:    m.Asset,
			Kind:     FundingIntentExit,
			Side:     pos.Side,
			Notional: pos.Notional,
			Reason:   reason,
		}
	}

	// Ставка вернулась в нейтральную полосу - преимущество исчезло
	if window != nil && utils.Abs(window.Rate) <= fm.cfg.NeutralBand {
		return exit("rate_reverted")
	}

	if price > 0 {
		pnl := pos.UnrealizedPnl(price)
		if pnl >= fm.cfg.ProfitTargetPct/100*pos.Notional {
			return exit("profit_target")
		}
		if pnl <= -fm.cfg.StopLossPct/100*pos.Notional {
			return exit("stop_loss")
		}
	}

	if maxHold > 0 && !m.EnteredAt.IsZero() && now.Sub(m.EnteredAt) > maxHold {
		return exit("max_hold_time")
	}

	return nil
}

// scalingCondition проверяет усиление ставки в том же направлении.
// ВАЖНО: вызывается под lock'ом, состояние ENTERED.
func (fm *FundingManager) scalingCondition(m *FundingMachine, window *models.FundingWindow, pos *models.Position, equity float64) *FundingIntent {
	if window == nil {
		return nil
	}

	// Направление ставки должно совпадать с направлением входа
	if fundingSide(window.Rate) != pos.Side {
		return nil
	}

	tier, mult := fm.classifyTier(window.Rate)
	if tierSeverity(tier) <= tierSeverity(m.Tier) {
		return nil
	}

	base := m.BaseNotional
	if base <= 0 {
		base = fm.cfg.BaseTradePct / 100 * equity
	}

	// Целевой размер с потолком наращивания
	target := utils.Min(base*mult, base*fm.cfg.ScalingCapMult)
	if target <= pos.Notional {
		return nil
	}

	return &FundingIntent{
		Asset:    m.Asset,
		Kind:     FundingIntentScale,
		Side:     pos.Side,
		Notional: target - pos.Notional,
		Tier:     tier,
	}
}

// ============================================================
// Подтверждения исполнения от движка
// ============================================================

// ConfirmEntered переводит машину в ENTERED после исполнения входа
func (fm *FundingManager) ConfirmEntered(asset, tier string, baseNotional float64, at time.Time) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)
	if m.State != models.FundingMonitoring {
		return
	}
	if fm.setState(m, models.FundingEntered) {
		m.Tier = tier
		m.EnteredAt = at
		m.BaseNotional = baseNotional

		fm.onEvent(models.Notification{
			Timestamp: at.UTC(),
			Type:      models.NotificationTypeFundingEnter,
			Severity:  models.SeverityInfo,
			Asset:     asset,
			Message:   fmt.Sprintf("funding entry on %s, tier %s", asset, tier),
		})
	}
}

// BeginScaling помечает начало наращивания
func (fm *FundingManager) BeginScaling(asset string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)
	if m.State == models.FundingEntered {
		fm.setState(m, models.FundingScaling)
	}
}

// ConfirmScaled возвращает машину в ENTERED с обновлённым ярусом
func (fm *FundingManager) ConfirmScaled(asset, tier string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)
	if m.State != models.FundingScaling {
		return
	}
	if fm.setState(m, models.FundingEntered) {
		m.Tier = tier
	}
}

// BeginExit переводит машину в EXITING
func (fm *FundingManager) BeginExit(asset, reason string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)
	if m.State != models.FundingEntered && m.State != models.FundingScaling {
		return
	}
	if fm.setState(m, models.FundingExiting) {
		fm.logger.Info("funding exit started",
			zap.String("asset", asset),
			zap.String("reason", reason))
	}
}

// ConfirmClosed завершает выход: EXITING → IDLE
func (fm *FundingManager) ConfirmClosed(asset string, at time.Time) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)
	if m.State != models.FundingExiting {
		return
	}
	if fm.setState(m, models.FundingIdle) {
		m.Tier = models.FundingTierNone
		m.EnteredAt = time.Time{}
		m.BaseNotional = 0

		fm.onEvent(models.Notification{
			Timestamp: at.UTC(),
			Type:      models.NotificationTypeFundingExit,
			Severity:  models.SeverityInfo,
			Asset:     asset,
			Message:   fmt.Sprintf("funding position on %s closed", asset),
		})
	}
}

// MarkFailed фиксирует исчерпание retry закрытия: EXITING → FAILED.
// Дальнейшие автоматические действия по активу останавливаются
// до сброса оператором.
func (fm *FundingManager) MarkFailed(asset string, err error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)
	if m.State != models.FundingExiting {
		return
	}
	if fm.setState(m, models.FundingFailed) {
		fm.logger.Error("funding close retries exhausted",
			zap.String("asset", asset),
			zap.Error(err))
		fm.onEvent(models.Notification{
			Timestamp: time.Now().UTC(),
			Type:      models.NotificationTypeError,
			Severity:  models.SeverityError,
			Asset:     asset,
			Message:   fmt.Sprintf("funding close failed on %s: %v, operator reset required", asset, err),
		})
	}
}

// Reset сбрасывает машину из FAILED в IDLE. Команда оператора.
func (fm *FundingManager) Reset(asset string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)
	if m.State != models.FundingFailed {
		return fmt.Errorf("machine for %s is in %s, only FAILED can be reset", asset, m.State)
	}
	fm.setState(m, models.FundingIdle)
	m.Tier = models.FundingTierNone
	m.EnteredAt = time.Time{}
	m.BaseNotional = 0
	return nil
}

// forceIdle аварийно возвращает машину в IDLE через EXITING.
// ВАЖНО: вызывается под lock'ом.
func (fm *FundingManager) forceIdle(m *FundingMachine) {
	if fm.setState(m, models.FundingExiting) {
		fm.setState(m, models.FundingIdle)
		m.Tier = models.FundingTierNone
		m.EnteredAt = time.Time{}
		m.BaseNotional = 0
	}
}

// ============================================================
// Rollover
// ============================================================

// ShouldApplyRollover проверяет идемпотентность rollover'а.
//
// Граница периода сравнивается с последней обработанной: повторная
// доставка того же окна (retry планировщика) возвращает false и
// начисление не применяется второй раз.
func (fm *FundingManager) ShouldApplyRollover(asset string, periodEnd time.Time) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	m := fm.machine(asset)
	if !periodEnd.After(m.LastBoundary) {
		return false
	}
	m.LastBoundary = periodEnd
	FundingRolloversTotal.WithLabelValues(asset).Inc()
	return true
}

// State возвращает снимок машины актива
func (fm *FundingManager) State(asset string) FundingMachine {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return *fm.machine(asset)
}

// States возвращает снимки всех машин
func (fm *FundingManager) States() []FundingMachine {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	out := make([]FundingMachine, 0, len(fm.machines))
	for _, m := range fm.machines {
		out = append(out, *m)
	}
	return out
}
