package bot

import (
	"sync"
	"time"

	"perpbot/internal/models"
)

// PerformanceTracker ведёт скользящую точность стратегий.
//
// Точность = доля прибыльных исходов в окне последних N закрытых сделок,
// к которым стратегия приложила сигнал. Используется методами weighted
// и best как вес исторической надёжности.
type PerformanceTracker struct {
	mu         sync.RWMutex
	window     int
	outcomes   map[string][]bool // strategyID → последние исходы (true = прибыльный)
	lastUpdate map[string]time.Time
}

// DefaultPerformanceWindow - размер окна по умолчанию
const DefaultPerformanceWindow = 100

// MinOutcomesForAccuracy - минимум исходов, ниже которого точность
// не сообщается (оценка по 2-3 сделкам слишком шумная)
const MinOutcomesForAccuracy = 10

// NewPerformanceTracker создаёт трекер с указанным окном
func NewPerformanceTracker(window int) *PerformanceTracker {
	if window <= 0 {
		window = DefaultPerformanceWindow
	}
	return &PerformanceTracker{
		window:     window,
		outcomes:   make(map[string][]bool),
		lastUpdate: make(map[string]time.Time),
	}
}

// RecordOutcome фиксирует исход закрытой сделки для стратегии
func (pt *PerformanceTracker) RecordOutcome(strategyID string, profitable bool, at time.Time) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	window := append(pt.outcomes[strategyID], profitable)
	if len(window) > pt.window {
		window = window[len(window)-pt.window:]
	}
	pt.outcomes[strategyID] = window
	pt.lastUpdate[strategyID] = at
}

// Accuracy возвращает точность стратегии и признак её наличия.
// Недостаточно исходов - точности нет (nil у сигнала).
func (pt *PerformanceTracker) Accuracy(strategyID string) (float64, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	window := pt.outcomes[strategyID]
	if len(window) < MinOutcomesForAccuracy {
		return 0, false
	}

	var wins int
	for _, profitable := range window {
		if profitable {
			wins++
		}
	}
	return float64(wins) / float64(len(window)), true
}

// Annotate проставляет точность сигналам, у которых её нет.
// Сигналы с уже заполненной точностью (стратегия сообщила сама)
// не перезаписываются.
func (pt *PerformanceTracker) Annotate(signals []models.StrategySignal) {
	for i := range signals {
		if signals[i].Accuracy != nil {
			continue
		}
		if acc, ok := pt.Accuracy(signals[i].StrategyID); ok {
			v := acc
			signals[i].Accuracy = &v
		}
	}
}

// Snapshot возвращает точности всех стратегий с достаточной историей
func (pt *PerformanceTracker) Snapshot() map[string]float64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	out := make(map[string]float64)
	for id, window := range pt.outcomes {
		if len(window) < MinOutcomesForAccuracy {
			continue
		}
		var wins int
		for _, profitable := range window {
			if profitable {
				wins++
			}
		}
		out[id] = float64(wins) / float64(len(window))
	}
	return out
}
