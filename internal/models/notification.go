package models

import "time"

// Notification представляет уведомление о событии торгового ядра
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`         // ENTRY, EXIT, RISK_BLOCK, ...
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	Asset     string                 `json:"asset,omitempty" db:"asset"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeEntry          = "ENTRY"           // открытие/наращивание позиции
	NotificationTypeExit           = "EXIT"            // закрытие/сокращение позиции
	NotificationTypeRiskBlock      = "RISK_BLOCK"      // решение заблокировано риск-контролем
	NotificationTypeReduce         = "REDUCE"          // принудительное сокращение (ликвидационная лестница)
	NotificationTypeEmergencyClose = "EMERGENCY_CLOSE" // экстренное закрытие всех позиций
	NotificationTypeKillSwitch     = "KILL_SWITCH"     // дневной лимит убытка, вход запрещён до конца дня
	NotificationTypeFundingCost    = "FUNDING_COST"    // превышен дневной лимит стоимости funding
	NotificationTypeFundingEnter   = "FUNDING_ENTER"   // вход funding-арбитража
	NotificationTypeFundingExit    = "FUNDING_EXIT"    // выход funding-арбитража
	NotificationTypeSafeMode       = "SAFE_MODE"       // устаревшие данные, только выходы
	NotificationTypeHalt           = "HALT"            // актив остановлен, нужен оператор
	NotificationTypeTickBudget     = "TICK_BUDGET"     // цикл оценки не уложился в бюджет
	NotificationTypeError          = "ERROR"           // ошибка исполнения/ядра
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
