package bot

import "perpbot/internal/models"

// ValidTransitions определяет допустимые переходы funding-машины
var ValidTransitions = map[string][]string{
	models.FundingIdle:       {models.FundingMonitoring},
	models.FundingMonitoring: {models.FundingIdle, models.FundingEntered},
	models.FundingEntered:    {models.FundingScaling, models.FundingExiting},
	models.FundingScaling:    {models.FundingEntered, models.FundingExiting},
	models.FundingExiting:    {models.FundingIdle, models.FundingFailed}, // Failed при исчерпании retry
	models.FundingFailed:     {models.FundingIdle},                       // Только ручной сброс оператором
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case models.FundingIdle:
		return "Нет данных funding по активу"
	case models.FundingMonitoring:
		return "Мониторинг funding-ставки (ожидание экстремума)"
	case models.FundingEntered:
		return "Funding-позиция открыта"
	case models.FundingScaling:
		return "Наращивание funding-позиции"
	case models.FundingExiting:
		return "Закрытие funding-позиции..."
	case models.FundingFailed:
		return "Ошибка закрытия! Требуется вмешательство оператора"
	default:
		return "Неизвестное состояние"
	}
}

// HasOpenPosition возвращает true если у машины есть открытая funding-позиция
func HasOpenPosition(s string) bool {
	return s == models.FundingEntered || s == models.FundingScaling || s == models.FundingExiting
}

// NeedsOperator возвращает true если машина ждёт ручного сброса
func NeedsOperator(s string) bool {
	return s == models.FundingFailed
}
