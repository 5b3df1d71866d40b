package websocket

// Типизированные broadcast-сообщения. Известные типы сериализуются
// без map[string]interface{}, что заметно дешевле на горячем пути.

// NotificationMessage - событие торгового ядра
type NotificationMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// PositionUpdateMessage - изменение позиции
type PositionUpdateMessage struct {
	Type  string      `json:"type"`
	Asset string      `json:"asset"`
	Data  interface{} `json:"data"`
}

// RiskUpdateMessage - обновление риск-состояния счёта
type RiskUpdateMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FundingUpdateMessage - смена состояния funding-машины
type FundingUpdateMessage struct {
	Type  string      `json:"type"`
	Asset string      `json:"asset"`
	Data  interface{} `json:"data"`
}
