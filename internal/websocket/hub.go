package websocket

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"perpbot/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул JSON-буферов: убирает аллокации при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями.
//
// Broadcast строго неблокирующий: медленный дашборд оператора не
// имеет права тормозить торговый цикл. Переполненный буфер клиента
// ведёт к отключению этого клиента, переполненный буфер hub'а -
// к потере сообщения (дашборд восстановит состояние по REST).
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewHub создает новый Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run запускает главный цикл Hub.
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock,
			// отправляем без блокировки
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает - отключаем
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.logger.Warn("removed slow ws clients",
					zap.Int("removed", len(toRemove)),
					zap.Int("total", total))
			}
		}
	}
}

// Broadcast сериализует сообщение и рассылает всем клиентам.
// Неблокирующий: при переполненном буфере hub'а сообщение теряется.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("ws message marshal failed", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		h.logger.Warn("ws broadcast buffer full, message dropped")
	}
}

// BroadcastNotification отправляет событие торгового ядра
func (h *Hub) BroadcastNotification(notification *models.Notification) {
	h.Broadcast(&NotificationMessage{
		Type: "notification",
		Data: notification,
	})
}

// BroadcastPositionUpdate отправляет изменение позиции
func (h *Hub) BroadcastPositionUpdate(asset string, data interface{}) {
	h.Broadcast(&PositionUpdateMessage{
		Type:  "positionUpdate",
		Asset: asset,
		Data:  data,
	})
}

// BroadcastRiskUpdate отправляет обновление риск-состояния
func (h *Hub) BroadcastRiskUpdate(risk interface{}) {
	h.Broadcast(&RiskUpdateMessage{
		Type: "riskUpdate",
		Data: risk,
	})
}

// BroadcastFundingUpdate отправляет смену состояния funding-машины
func (h *Hub) BroadcastFundingUpdate(asset string, data interface{}) {
	h.Broadcast(&FundingUpdateMessage{
		Type:  "fundingUpdate",
		Asset: asset,
		Data:  data,
	})
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
