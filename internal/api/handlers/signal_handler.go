package handlers

import (
	"net/http"
	"time"

	"perpbot/internal/models"
	"perpbot/internal/service"
)

// SignalHandler принимает сигналы стратегий
//
// Endpoints:
// - POST /api/v1/signals - подать сигнал во входной буфер ансамбля
//
// Назначение:
// Внешние стратегии (отдельные процессы) публикуют сигналы по HTTP.
// Агрегатор хранит последний сигнал каждой стратегии per-asset;
// ансамбль читает их в начале следующего цикла оценки.
type SignalHandler struct {
	trading service.TradingServiceInterface
}

// NewSignalHandler создает новый SignalHandler с внедрением зависимости
func NewSignalHandler(trading service.TradingServiceInterface) *SignalHandler {
	return &SignalHandler{trading: trading}
}

// SubmitSignal принимает сигнал стратегии
//
// POST /api/v1/signals
//
// Тело запроса: StrategySignal в JSON. Отсутствующий timestamp
// проставляется временем приёма.
//
// HTTP коды:
// - 202 Accepted: сигнал принят в буфер
// - 400 Bad Request: невалидный JSON или сигнал не прошёл валидацию
func (h *SignalHandler) SubmitSignal(w http.ResponseWriter, r *http.Request) {
	var sig models.StrategySignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if sig.Timestamp.IsZero() {
		sig.Timestamp = time.Now().UTC()
	}

	if err := h.trading.SubmitSignal(sig); err != nil {
		respondWithError(w, http.StatusBadRequest, "Signal rejected: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusAccepted, SuccessResponse{Message: "Signal accepted"})
}
