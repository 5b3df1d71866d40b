package bot

import "perpbot/internal/models"

// tryEnqueueNotification кладёт уведомление в канал без блокировки.
// Переполненный буфер роняет событие и инкрементит метрику:
// торговый цикл никогда не ждёт медленных потребителей уведомлений.
func tryEnqueueNotification(ch chan<- models.Notification, n models.Notification) bool {
	select {
	case ch <- n:
		return true
	default:
		RecordBufferOverflow("notification")
		return false
	}
}

// tryEnqueueDelta кладёт аудит-запись изменения позиции без блокировки.
// Вызывается под lock'ом PositionManager, поэтому ждать потребителя
// (запись в Postgres) здесь нельзя.
func tryEnqueueDelta(ch chan<- models.PositionDelta, d models.PositionDelta) bool {
	select {
	case ch <- d:
		return true
	default:
		RecordBufferOverflow("delta")
		return false
	}
}

// tryEnqueueDecision кладёт исполненное решение ансамбля без блокировки
func tryEnqueueDecision(ch chan<- models.EnsembleDecision, d models.EnsembleDecision) bool {
	select {
	case ch <- d:
		return true
	default:
		RecordBufferOverflow("decision")
		return false
	}
}
