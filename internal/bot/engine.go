package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"perpbot/internal/config"
	"perpbot/internal/exchange"
	"perpbot/internal/models"
	"perpbot/pkg/retry"
	"perpbot/pkg/utils"
)

// Engine - оркестратор торгового ядра.
//
// Планировщик с фиксированным периодом запускает цикл оценки по
// каждому активу и, независимо, rollover funding-периодов. Циклы
// разных активов выполняются параллельно; внутри одного актива
// действует single-writer: мутации сериализуются per-asset мьютексом.
//
// Last-write-wins: новый tick по активу отменяет незавершённый
// предыдущий через context. Исключение - закрытия позиций: они
// всегда доводятся до конца или до явного исчерпания retry.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	aggregator  *SignalAggregator
	ensemble    *Ensemble
	performance *PerformanceTracker
	governor    *RiskGovernor
	positions   *PositionManager
	funding     *FundingManager

	executor exchange.ExecutionClient
	market   exchange.MarketDataFeed
	account  exchange.AccountProvider

	notifyCh   chan models.Notification
	deltaCh    chan models.PositionDelta
	decisionCh chan models.EnsembleDecision

	mu        sync.Mutex
	assetMu   map[string]*sync.Mutex        // single-writer per asset
	cancels   map[string]context.CancelFunc // отмена незавершённого цикла
	safeModes map[string]bool
	sinks     []func(models.Notification)
	deltas    []func(models.PositionDelta)
	decisions []func(models.EnsembleDecision)

	// стратегии, чьи сигналы участвовали в открытии позиции актива;
	// при закрытии их исход попадает в PerformanceTracker
	contributors map[string][]string

	wg sync.WaitGroup
}

// NewEngine собирает движок из компонентов
func NewEngine(
	cfg *config.Config,
	logger *zap.Logger,
	executor exchange.ExecutionClient,
	market exchange.MarketDataFeed,
	account exchange.AccountProvider,
) (*Engine, error) {
	ens, err := NewEnsemble(cfg.Trading.EnsembleMethod, cfg.Trading.MinConfidence, cfg.Trading.NeutralBand)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		logger:       logger,
		aggregator:   NewSignalAggregator(logger),
		ensemble:     ens,
		performance:  NewPerformanceTracker(DefaultPerformanceWindow),
		executor:     executor,
		market:       market,
		account:      account,
		notifyCh:     make(chan models.Notification, 256),
		deltaCh:      make(chan models.PositionDelta, 256),
		decisionCh:   make(chan models.EnsembleDecision, 256),
		assetMu:      make(map[string]*sync.Mutex),
		cancels:      make(map[string]context.CancelFunc),
		safeModes:    make(map[string]bool),
		contributors: make(map[string][]string),
	}

	e.governor = NewRiskGovernor(cfg.Risk, logger, e.Notify)
	e.funding = NewFundingManager(cfg.Funding, logger, e.Notify)
	e.positions = NewPositionManager(cfg.Risk.Clusters, logger, e.emitDelta)

	for _, asset := range cfg.Trading.Assets {
		e.assetMu[asset] = &sync.Mutex{}
	}

	return e, nil
}

// ============================================================
// Доступ к компонентам (API слой, тесты)
// ============================================================

// Aggregator возвращает приёмник сигналов стратегий
func (e *Engine) Aggregator() *SignalAggregator { return e.aggregator }

// Positions возвращает менеджер позиций
func (e *Engine) Positions() *PositionManager { return e.positions }

// Governor возвращает риск-контроль
func (e *Engine) Governor() *RiskGovernor { return e.governor }

// Funding возвращает менеджер funding-машин
func (e *Engine) Funding() *FundingManager { return e.funding }

// OnNotification регистрирует потребителя уведомлений.
// Вызывать до Run.
func (e *Engine) OnNotification(sink func(models.Notification)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// OnPositionDelta регистрирует потребителя аудит-записей.
// Доставка асинхронная, через dispatchLoop. Вызывать до Run.
func (e *Engine) OnPositionDelta(sink func(models.PositionDelta)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deltas = append(e.deltas, sink)
}

// OnDecision регистрирует потребителя решений ансамбля, дошедших
// до исполнения. HOLD'ы не публикуются, доставка асинхронная.
// Вызывать до Run.
func (e *Engine) OnDecision(sink func(models.EnsembleDecision)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decisions = append(e.decisions, sink)
}

// Notify публикует уведомление. Неблокирующий.
func (e *Engine) Notify(n models.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	tryEnqueueNotification(e.notifyCh, n)
}

// emitDelta вызывается PositionManager'ом под его lock'ом:
// только неблокирующая постановка в буфер, никаких вызовов потребителей
func (e *Engine) emitDelta(d models.PositionDelta) {
	tryEnqueueDelta(e.deltaCh, d)
}

func (e *Engine) emitDecision(d models.EnsembleDecision) {
	tryEnqueueDecision(e.decisionCh, d)
}

// ============================================================
// Запуск
// ============================================================

// Run запускает планировщик и блокируется до отмены контекста
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("engine starting",
		zap.Strings("assets", e.cfg.Trading.Assets),
		zap.String("ensemble_method", e.cfg.Trading.EnsembleMethod),
		zap.Duration("tick_interval", e.cfg.Trading.TickInterval))

	e.wg.Add(2)
	go e.dispatchLoop(ctx)
	go e.rolloverLoop(ctx)

	ticker := time.NewTicker(e.cfg.Trading.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			e.wg.Wait()
			return
		case <-ticker.C:
			for _, asset := range e.cfg.Trading.Assets {
				e.scheduleTick(ctx, asset)
			}
		}
	}
}

// scheduleTick запускает цикл оценки актива, отменяя незавершённый
// предыдущий (last-write-wins)
func (e *Engine) scheduleTick(parent context.Context, asset string) {
	tickCtx, cancel := context.WithTimeout(parent, e.cfg.Trading.TickBudget)

	e.mu.Lock()
	if prev, ok := e.cancels[asset]; ok {
		prev()
	}
	e.cancels[asset] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.evaluateAsset(tickCtx, asset)
	}()
}

// dispatchLoop раздаёт уведомления, аудит-записи и решения
// зарегистрированным потребителям. Медленный потребитель (запись в
// Postgres) тормозит только этот цикл, буферы сглаживают всплески.
func (e *Engine) dispatchLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-e.notifyCh:
			e.mu.Lock()
			sinks := e.sinks
			e.mu.Unlock()
			for _, sink := range sinks {
				sink(n)
			}
		case d := <-e.deltaCh:
			e.mu.Lock()
			sinks := e.deltas
			e.mu.Unlock()
			for _, sink := range sinks {
				sink(d)
			}
		case d := <-e.decisionCh:
			e.mu.Lock()
			sinks := e.decisions
			e.mu.Unlock()
			for _, sink := range sinks {
				sink(d)
			}
		}
	}
}

// ============================================================
// Цикл оценки
// ============================================================

// evaluateAsset выполняет один цикл оценки по активу.
//
// Порядок: рыночные данные → лестница ликвидации → funding-машина →
// ансамбль → риск-контроль → исполнение. Превышение бюджета на любом
// шаге даёт HOLD и событие TICK_BUDGET.
func (e *Engine) evaluateAsset(ctx context.Context, asset string) {
	mu := e.assetLock(asset)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	defer func() {
		TickDuration.WithLabelValues(asset).Observe(float64(time.Since(start).Milliseconds()))
	}()

	now := time.Now().UTC()
	tier, ok := e.cfg.Risk.Tiers[asset]
	if !ok {
		return
	}

	// Снимки коллабораторов
	acct, err := e.account.Snapshot(ctx)
	if err != nil {
		e.tickAborted(ctx, asset, fmt.Errorf("account snapshot: %w", err))
		return
	}
	e.positions.UpdateAccount(acct)

	price, priceErr := e.market.Price(ctx, asset)
	window, fundingErr := e.market.FundingWindow(ctx, asset)

	// Устаревшие данные переводят актив в safe mode: входы запрещены,
	// мониторинг выходов и защитные триггеры продолжают работать
	stale := priceErr != nil ||
		utils.IsStale(price.Timestamp, now, e.cfg.Trading.StalenessTolerance)
	e.setSafeMode(asset, stale)

	var fw *models.FundingWindow
	if fundingErr == nil && !utils.IsStale(window.PeriodStart, now, window.PeriodEnd.Sub(window.PeriodStart)+e.cfg.Trading.StalenessTolerance) {
		fw = &window
	}

	// Лестница ликвидации: независима от остальных проверок
	rs := e.positions.RiskState()
	positions := e.positions.Positions()
	e.governor.AssessLiquidationRisk(positions)
	if protective := e.governor.EvaluateLadder(rs, positions); len(protective) > 0 {
		for _, action := range protective {
			e.executeProtective(ctx, action, now)
		}
		return
	}

	// Funding-машина
	pos := e.positions.Position(asset)
	var priceVal float64
	if priceErr == nil {
		priceVal = price.Price
	}
	if intent := e.funding.Evaluate(asset, fw, pos, priceVal, acct.Equity, tier.MaxHoldTime, now); intent != nil {
		e.handleFundingIntent(ctx, intent, tier, stale, now)
	}

	// Превышение бюджета после funding-шага: решение ансамбля = HOLD
	if ctx.Err() != nil {
		e.tickAborted(ctx, asset, ctx.Err())
		return
	}

	// Safe mode: новых входов по сигналам нет
	if stale {
		return
	}
	if e.governor.IsHalted(asset) {
		return
	}

	// Ансамбль
	signals := e.aggregator.Snapshot(asset, now, e.cfg.Trading.StalenessTolerance)
	e.performance.Annotate(signals)
	decision := e.ensemble.Combine(asset, signals, now)

	pos = e.positions.Position(asset)
	action := e.governor.Review(decision, pos, e.positions.RiskState(), acct)
	if !action.Approved() {
		return
	}

	if ctx.Err() != nil {
		e.tickAborted(ctx, asset, ctx.Err())
		return
	}

	e.executeAction(ctx, action, decision, tier, now)
}

// tickAborted фиксирует прерванный цикл: бюджет исчерпан или данные
// недоступны. Решение трактуется как HOLD, следующий tick не блокируется.
func (e *Engine) tickAborted(ctx context.Context, asset string, err error) {
	if ctx.Err() == context.DeadlineExceeded {
		TickBudgetExceeded.WithLabelValues(asset).Inc()
		e.Notify(models.Notification{
			Type:     models.NotificationTypeTickBudget,
			Severity: models.SeverityWarn,
			Asset:    asset,
			Message:  fmt.Sprintf("evaluation tick on %s exceeded budget, treated as HOLD", asset),
		})
		return
	}
	if ctx.Err() == context.Canceled {
		// Last-write-wins: новый tick отменил этот
		return
	}

	e.logger.Warn("tick aborted", zap.String("asset", asset), zap.Error(err))
}

// setSafeMode переключает safe mode актива с edge-событием
func (e *Engine) setSafeMode(asset string, on bool) {
	e.mu.Lock()
	was := e.safeModes[asset]
	e.safeModes[asset] = on
	var count float64
	for _, v := range e.safeModes {
		if v {
			count++
		}
	}
	e.mu.Unlock()

	SafeMode.Set(count)

	if on && !was {
		e.logger.Warn("asset entered safe mode, stale market data", zap.String("asset", asset))
		e.Notify(models.Notification{
			Type:     models.NotificationTypeSafeMode,
			Severity: models.SeverityWarn,
			Asset:    asset,
			Message:  fmt.Sprintf("stale market data on %s, new entries disabled", asset),
		})
	}
	if !on && was {
		e.logger.Info("asset left safe mode", zap.String("asset", asset))
	}
}

// InSafeMode возвращает true если актив в safe mode
func (e *Engine) InSafeMode(asset string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.safeModes[asset]
}

func (e *Engine) assetLock(asset string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	mu, ok := e.assetMu[asset]
	if !ok {
		mu = &sync.Mutex{}
		e.assetMu[asset] = mu
	}
	return mu
}

// ============================================================
// Исполнение
// ============================================================

// executeAction исполняет одобренное действие ансамбля
func (e *Engine) executeAction(ctx context.Context, action models.ApprovedAction, decision models.EnsembleDecision, tier models.AssetTier, now time.Time) {
	e.emitDecision(decision)

	fill, err := e.submit(ctx, action, false)
	if err != nil {
		RecordTrade(action.Asset, "failed")
		e.logger.Error("order execution failed",
			zap.String("asset", action.Asset),
			zap.String("kind", action.Kind),
			zap.Error(err))
		e.Notify(models.Notification{
			Type:     models.NotificationTypeError,
			Severity: models.SeverityError,
			Asset:    action.Asset,
			Message:  fmt.Sprintf("execution failed for %s %s: %v", action.Kind, action.Asset, err),
		})
		return
	}

	// P&L закрываемой доли считается по цене исполнения до мутации
	realized := e.realizedBy(action, fill.Price)

	delta, err := e.positions.Apply(action, fill.Price, tier.MaxHoldTime, now)
	if err != nil {
		e.logger.Error("position apply failed", zap.String("asset", action.Asset), zap.Error(err))
		return
	}

	switch {
	case delta.SizeAfter > delta.SizeBefore:
		e.rememberContributors(action.Asset, decision.Contributing)
	case delta.SizeAfter < delta.SizeBefore:
		e.resolveOutcome(action.Asset, realized > 0, delta.SizeAfter == 0, now)
	}

	RecordTrade(action.Asset, "success")
	e.notifyTrade(action, decision)
}

// realizedBy оценивает P&L доли позиции, которую закроет действие.
// Ноль для действий, не сокращающих позицию.
func (e *Engine) realizedBy(action models.ApprovedAction, fillPrice float64) float64 {
	pos := e.positions.Position(action.Asset)
	if pos == nil {
		return 0
	}

	var closed float64
	switch action.Kind {
	case models.ActionKindClose:
		closed = pos.Notional
	case models.ActionKindDecrease:
		closed = utils.Min(action.Notional, pos.Notional)
	case models.ActionKindOpen, models.ActionKindIncrease:
		if pos.Side != action.Side {
			// Неттинг против противоположной позиции
			closed = utils.Min(action.Notional, pos.Notional)
		}
	}
	if closed <= 0 {
		return 0
	}

	return pos.UnrealizedPnl(fillPrice) * closed / pos.Notional
}

// rememberContributors запоминает стратегии, участвовавшие во входе
func (e *Engine) rememberContributors(asset string, ids []string) {
	if len(ids) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing := e.contributors[asset]
	for _, id := range ids {
		seen := false
		for _, have := range existing {
			if have == id {
				seen = true
				break
			}
		}
		if !seen {
			existing = append(existing, id)
		}
	}
	e.contributors[asset] = existing
}

// resolveOutcome записывает исход сделки стратегиям-участникам
func (e *Engine) resolveOutcome(asset string, profitable, closedAll bool, now time.Time) {
	e.mu.Lock()
	ids := e.contributors[asset]
	if closedAll {
		delete(e.contributors, asset)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.performance.RecordOutcome(id, profitable, now)
	}
}

// executeProtective исполняет защитное действие лестницы.
// Закрытия не отменяются и ретраятся агрессивно.
func (e *Engine) executeProtective(ctx context.Context, action models.ApprovedAction, now time.Time) {
	// Защитные закрытия доводятся до конца даже если tick отменён
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	fill, err := e.submit(closeCtx, action, true)
	if err != nil {
		e.logger.Error("protective action failed",
			zap.String("asset", action.Asset),
			zap.String("kind", action.Kind),
			zap.Error(err))
		e.governor.HaltAsset(action.Asset, fmt.Sprintf("protective %s failed: %v", action.Kind, err))
		return
	}

	tier := e.cfg.Risk.Tiers[action.Asset]
	if _, err := e.positions.Apply(action, fill.Price, tier.MaxHoldTime, now); err != nil {
		e.logger.Error("protective apply failed", zap.String("asset", action.Asset), zap.Error(err))
	}
}

// handleFundingIntent проводит намерение funding-машины через
// риск-контроль и исполнение
func (e *Engine) handleFundingIntent(ctx context.Context, intent *FundingIntent, tier models.AssetTier, safeMode bool, now time.Time) {
	switch intent.Kind {
	case FundingIntentEnter, FundingIntentScale:
		// Входы в safe mode запрещены
		if safeMode || e.governor.IsHalted(intent.Asset) {
			return
		}
		e.executeFundingEntry(ctx, intent, tier, now)

	case FundingIntentExit:
		e.executeFundingExit(ctx, intent, tier, now)
	}
}

// executeFundingEntry исполняет вход/наращивание funding-позиции
// с повторным одобрением риск-контроля
func (e *Engine) executeFundingEntry(ctx context.Context, intent *FundingIntent, tier models.AssetTier, now time.Time) {
	acct := e.positions.Account()
	rs := e.positions.RiskState()

	kind := models.ActionKindOpen
	if intent.Kind == FundingIntentScale {
		kind = models.ActionKindIncrease
	}

	leverage := utils.Min(e.cfg.Risk.RecommendedLeverage, tier.MaxLeverage)
	action := models.ApprovedAction{
		Asset:    intent.Asset,
		Kind:     kind,
		Side:     intent.Side,
		Notional: intent.Notional,
		Leverage: leverage,
	}

	// Funding-вход проходит те же проверки, что и обычный
	if reason := e.governor.checkEntry(intent.Asset, intent.Notional, leverage, rs, acct); reason != "" {
		RecordRiskBlock(reason)
		e.logger.Info("funding entry blocked",
			zap.String("asset", intent.Asset),
			zap.String("reason", reason))
		return
	}

	fill, err := e.submit(ctx, action, false)
	if err != nil {
		e.logger.Error("funding entry failed", zap.String("asset", intent.Asset), zap.Error(err))
		return
	}

	if intent.Kind == FundingIntentScale {
		e.funding.BeginScaling(intent.Asset)
	}
	if _, err := e.positions.Apply(action, fill.Price, tier.MaxHoldTime, now); err != nil {
		e.logger.Error("funding apply failed", zap.String("asset", intent.Asset), zap.Error(err))
		return
	}

	if intent.Kind == FundingIntentScale {
		e.funding.ConfirmScaled(intent.Asset, intent.Tier)
	} else {
		base := e.cfg.Funding.BaseTradePct / 100 * acct.Equity
		e.funding.ConfirmEntered(intent.Asset, intent.Tier, base, now)
	}
}

// executeFundingExit закрывает funding-позицию. Агрессивный retry,
// исчерпание которого даёт FAILED и halt актива.
func (e *Engine) executeFundingExit(ctx context.Context, intent *FundingIntent, tier models.AssetTier, now time.Time) {
	e.funding.BeginExit(intent.Asset, intent.Reason)

	action := models.ApprovedAction{
		Asset:    intent.Asset,
		Kind:     models.ActionKindClose,
		Side:     intent.Side,
		Notional: intent.Notional,
	}

	// Закрытие не отменяется по last-write-wins
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	fill, err := e.submit(closeCtx, action, true)
	if err != nil {
		e.funding.MarkFailed(intent.Asset, err)
		e.governor.HaltAsset(intent.Asset, fmt.Sprintf("funding close retries exhausted: %v", err))
		return
	}

	if _, err := e.positions.Apply(action, fill.Price, tier.MaxHoldTime, now); err != nil {
		e.logger.Error("funding close apply failed", zap.String("asset", intent.Asset), zap.Error(err))
	}
	e.funding.ConfirmClosed(intent.Asset, now)
}

// submit отправляет order intent с retry.
// closing=true использует агрессивную конфигурацию закрытий.
func (e *Engine) submit(ctx context.Context, action models.ApprovedAction, closing bool) (exchange.Fill, error) {
	intent := models.OrderIntent{
		Asset:    action.Asset,
		Side:     action.Side,
		Kind:     action.Kind,
		Notional: action.Notional,
		Leverage: action.Leverage,
	}

	cfg := retry.DefaultConfig()
	if closing {
		cfg = retry.AggressiveConfig()
	}
	cfg.MaxRetries = e.cfg.Trading.MaxOrderRetries
	if closing && cfg.MaxRetries < e.cfg.Trading.MaxOrderRetries+2 {
		cfg.MaxRetries = e.cfg.Trading.MaxOrderRetries + 2
	}
	cfg.RetryIf = retry.IsRetryable
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.logger.Warn("order retry",
			zap.String("asset", intent.Asset),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	start := time.Now()
	fill, err := retry.DoWithResult(ctx, func() (exchange.Fill, error) {
		opCtx, cancel := context.WithTimeout(ctx, e.cfg.Trading.OrderTimeout)
		defer cancel()
		return e.executor.Execute(opCtx, intent)
	}, cfg)

	OrderExecutionLatency.WithLabelValues(intent.Asset, intent.Kind).
		Observe(float64(time.Since(start).Milliseconds()))
	return fill, err
}

func (e *Engine) notifyTrade(action models.ApprovedAction, decision models.EnsembleDecision) {
	typ := models.NotificationTypeEntry
	if action.Kind == models.ActionKindDecrease || action.Kind == models.ActionKindClose {
		typ = models.NotificationTypeExit
	}
	e.Notify(models.Notification{
		Type:     typ,
		Severity: models.SeverityInfo,
		Asset:    action.Asset,
		Message: fmt.Sprintf("%s %s %.2f USD (method %s, strength %.2f)",
			action.Kind, action.Asset, action.Notional, decision.Method, decision.Strength),
	})
}

// ============================================================
// Rollover funding-периодов
// ============================================================

// rolloverLoop применяет начисления funding на границах периодов.
//
// Идемпотентность: граница сравнивается с последней обработанной
// в FundingManager, повторная проверка того же периода не начисляет
// платёж второй раз даже при retry планировщика.
func (e *Engine) rolloverLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.processRollovers(ctx)
		}
	}
}

func (e *Engine) processRollovers(ctx context.Context) {
	now := time.Now().UTC()

	for _, asset := range e.cfg.Trading.Assets {
		tier, ok := e.cfg.Risk.Tiers[asset]
		if !ok {
			continue
		}

		// Окно запрашивается до фиксации границы: при временной
		// недоступности данных граница остаётся необработанной
		window, err := e.market.FundingWindow(ctx, asset)
		if err != nil {
			continue
		}

		boundary := utils.FundingPeriodStart(now, tier.FundingPeriod)
		if !e.funding.ShouldApplyRollover(asset, boundary) {
			continue
		}

		payment := e.positions.ApplyFundingRollover(asset, window.Rate, now)
		if payment != 0 {
			e.logger.Info("funding rollover applied",
				zap.String("asset", asset),
				zap.Float64("rate", window.Rate),
				zap.Float64("payment", payment))
		}

		// Governor стоимости funding: превышение дневного лимита
		// закрывает позицию независимо от мгновенного P&L
		if pos := e.positions.Position(asset); pos != nil {
			acct := e.positions.Account()
			if closeAction := e.governor.CheckFundingCost(*pos, acct.Equity); closeAction != nil {
				e.executeProtective(ctx, *closeAction, now)
				e.funding.BeginExit(asset, "funding_cost")
				e.funding.ConfirmClosed(asset, now)
			}
		}
	}
}

// ============================================================
// Операторские команды
// ============================================================

// ResetAsset сбрасывает halt и FAILED-машину актива. Команда оператора.
func (e *Engine) ResetAsset(asset string) error {
	st := e.funding.State(asset)
	if st.State == models.FundingFailed {
		if err := e.funding.Reset(asset); err != nil {
			return err
		}
	}
	e.governor.ResetAsset(asset)
	e.logger.Info("asset reset by operator", zap.String("asset", asset))
	return nil
}

// HaltAsset останавливает торговлю по активу. Команда оператора.
func (e *Engine) HaltAsset(asset, reason string) {
	e.governor.HaltAsset(asset, reason)
}
