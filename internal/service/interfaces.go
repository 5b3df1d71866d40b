package service

import (
	"time"

	"perpbot/internal/bot"
	"perpbot/internal/models"
	"perpbot/internal/repository"
)

// NotificationStoreInterface определяет интерфейс репозитория уведомлений
type NotificationStoreInterface interface {
	Create(n *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	GetByTypes(types []string, limit int) ([]*models.Notification, error)
	GetByAsset(asset string, limit int) ([]*models.Notification, error)
	DeleteAll() error
	DeleteOlderThan(timestamp time.Time) (int64, error)
	Count() (int, error)
}

// TradeStoreInterface определяет интерфейс репозитория журнала сделок
type TradeStoreInterface interface {
	Create(trade *models.TradeRecord) error
	GetRecent(limit int) ([]*models.TradeRecord, error)
	GetByAsset(asset string, limit int) ([]*models.TradeRecord, error)
	DeleteOlderThan(timestamp time.Time) (int64, error)
	Count() (int, error)
}

// DecisionStoreInterface определяет интерфейс репозитория журнала решений
type DecisionStoreInterface interface {
	Create(decision *models.DecisionRecord) error
	GetRecent(limit int) ([]*models.DecisionRecord, error)
	GetByAsset(asset string, limit int) ([]*models.DecisionRecord, error)
	DeleteOlderThan(timestamp time.Time) (int64, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ NotificationStoreInterface = (*repository.NotificationRepository)(nil)
var _ TradeStoreInterface = (*repository.TradeRepository)(nil)
var _ DecisionStoreInterface = (*repository.DecisionRepository)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	GetNotifications(types []string, limit int) ([]*models.Notification, error)
	ClearNotifications() error
	GetNotificationCount() (int, error)
}

// AuditServiceInterface определяет интерфейс сервиса журналов аудита
type AuditServiceInterface interface {
	GetTrades(asset string, limit int) ([]*models.TradeRecord, error)
	GetDecisions(asset string, limit int) ([]*models.DecisionRecord, error)
}

// TradingServiceInterface определяет интерфейс доступа к состоянию ядра
type TradingServiceInterface interface {
	Positions() []models.Position
	Position(asset string) *models.Position
	RiskState() models.RiskState
	Account() models.AccountSnapshot
	FundingStates() []bot.FundingMachine
	HaltedAssets() []string
	InSafeMode(asset string) bool
	SubmitSignal(sig models.StrategySignal) error
	HaltAsset(asset, reason string) error
	ResetAsset(asset string) error
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ NotificationServiceInterface = (*NotificationService)(nil)
var _ AuditServiceInterface = (*AuditService)(nil)
var _ TradingServiceInterface = (*TradingService)(nil)
