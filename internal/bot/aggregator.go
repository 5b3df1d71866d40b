package bot

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"perpbot/internal/models"
)

// SignalAggregator принимает сигналы стратегий и хранит последний
// валидный сигнал каждой стратегии по каждому активу до ближайшего
// цикла оценки.
//
// Submit неблокирующий и потокобезопасный: стратегии публикуют сигналы
// асинхронно, цикл оценки забирает их на момент tick'а и расходует.
// Невалидные сигналы отбрасываются целиком, без коррекции значений.
type SignalAggregator struct {
	mu      sync.RWMutex
	signals map[string]map[string]models.StrategySignal // asset → strategyID → последний сигнал
	logger  *zap.Logger
}

// NewSignalAggregator создаёт новый агрегатор
func NewSignalAggregator(logger *zap.Logger) *SignalAggregator {
	return &SignalAggregator{
		signals: make(map[string]map[string]models.StrategySignal),
		logger:  logger,
	}
}

// Submit принимает сигнал стратегии.
// Более новый сигнал той же стратегии замещает предыдущий.
// Возвращает ошибку валидации; сигнал при этом не сохраняется.
func (a *SignalAggregator) Submit(sig models.StrategySignal) error {
	if err := sig.Validate(); err != nil {
		SignalsRejected.WithLabelValues("invalid").Inc()
		a.logger.Warn("signal rejected",
			zap.String("strategy", sig.StrategyID),
			zap.String("asset", sig.Asset),
			zap.Error(err))
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	byStrategy, ok := a.signals[sig.Asset]
	if !ok {
		byStrategy = make(map[string]models.StrategySignal)
		a.signals[sig.Asset] = byStrategy
	}

	// Не даём старому сигналу затереть более новый (out-of-order доставка)
	if prev, ok := byStrategy[sig.StrategyID]; ok && prev.Timestamp.After(sig.Timestamp) {
		return nil
	}

	byStrategy[sig.StrategyID] = sig
	return nil
}

// Snapshot забирает свежие сигналы по активу на момент now.
// Сигнал живёт один цикл оценки: забранные сигналы удаляются из
// хранилища, на следующий tick стратегия публикует новые. Сигналы
// старше tolerance не включаются, учитываются в метрике и тоже
// удаляются: свежее они уже не станут.
func (a *SignalAggregator) Snapshot(asset string, now time.Time, tolerance time.Duration) []models.StrategySignal {
	a.mu.Lock()
	defer a.mu.Unlock()

	byStrategy, ok := a.signals[asset]
	if !ok {
		return nil
	}
	delete(a.signals, asset)

	out := make([]models.StrategySignal, 0, len(byStrategy))
	for _, sig := range byStrategy {
		if now.Sub(sig.Timestamp) > tolerance {
			SignalsRejected.WithLabelValues("stale").Inc()
			continue
		}
		out = append(out, sig)
	}
	return out
}

// Clear удаляет все сигналы по активу. Используется при halt актива.
func (a *SignalAggregator) Clear(asset string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.signals, asset)
}
