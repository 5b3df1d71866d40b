package service

import (
	"strings"

	"go.uber.org/zap"

	"perpbot/internal/models"
)

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений.
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock).
type WebSocketBroadcaster interface {
	BroadcastNotification(n *models.Notification)
}

// NotificationService предоставляет бизнес-логику для управления уведомлениями.
//
// Отвечает за:
// - Приём уведомлений от торгового ядра (sink для Engine.OnNotification)
// - Получение списка уведомлений с фильтрацией
// - Очистку журнала уведомлений
// - Broadcast уведомлений через WebSocket
type NotificationService struct {
	repo   NotificationStoreInterface
	wsHub  WebSocketBroadcaster
	logger *zap.Logger
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(repo NotificationStoreInterface, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		logger: logger,
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast уведомлений.
// Вызывается после инициализации Hub в main.go.
func (s *NotificationService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// Record принимает уведомление от торгового ядра: пишет в БД и
// рассылает подписчикам WebSocket. Ошибка записи не прерывает
// торговый цикл, только логируется.
func (s *NotificationService) Record(n models.Notification) {
	if err := s.repo.Create(&n); err != nil {
		s.logger.Error("notification persist failed",
			zap.String("type", n.Type),
			zap.Error(err))
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(&n)
	}
}

// GetNotifications возвращает список уведомлений с фильтрацией.
//
// types: фильтр по типам (пустой = все), limit: максимум записей
// (по умолчанию 100, потолок 500). Новые сверху.
func (s *NotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	normalized := make([]string, 0, len(types))
	for _, t := range types {
		upper := strings.ToUpper(strings.TrimSpace(t))
		if upper != "" && isValidNotificationType(upper) {
			normalized = append(normalized, upper)
		}
	}

	if len(normalized) > 0 {
		return s.repo.GetByTypes(normalized, limit)
	}
	return s.repo.GetRecent(limit)
}

// GetByAsset возвращает уведомления по конкретному активу
func (s *NotificationService) GetByAsset(asset string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.GetByAsset(asset, limit)
}

// ClearNotifications очищает журнал уведомлений
func (s *NotificationService) ClearNotifications() error {
	return s.repo.DeleteAll()
}

// GetNotificationCount возвращает общее количество уведомлений
func (s *NotificationService) GetNotificationCount() (int, error) {
	return s.repo.Count()
}

func isValidNotificationType(notifType string) bool {
	switch notifType {
	case models.NotificationTypeEntry,
		models.NotificationTypeExit,
		models.NotificationTypeRiskBlock,
		models.NotificationTypeReduce,
		models.NotificationTypeEmergencyClose,
		models.NotificationTypeKillSwitch,
		models.NotificationTypeFundingCost,
		models.NotificationTypeFundingEnter,
		models.NotificationTypeFundingExit,
		models.NotificationTypeSafeMode,
		models.NotificationTypeHalt,
		models.NotificationTypeTickBudget,
		models.NotificationTypeError:
		return true
	}
	return false
}
