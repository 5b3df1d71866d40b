package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"perpbot/internal/service"
)

// OperatorHandler отвечает за операторские команды
//
// Endpoints (защищены OperatorAuth):
// - POST /api/v1/operator/halt/{asset} - остановить торговлю по активу
// - POST /api/v1/operator/reset/{asset} - сброс halt и FAILED-машины
//
// Назначение:
// Ручное вмешательство: остановка актива при подозрительном поведении
// и возврат в строй после FAILED (исчерпанные retry закрытия требуют
// проверки фактического состояния позиции на бирже).
type OperatorHandler struct {
	trading service.TradingServiceInterface
}

// NewOperatorHandler создает новый OperatorHandler с внедрением зависимости
func NewOperatorHandler(trading service.TradingServiceInterface) *OperatorHandler {
	return &OperatorHandler{trading: trading}
}

// HaltRequest представляет тело запроса остановки
type HaltRequest struct {
	Reason string `json:"reason,omitempty"`
}

// HaltAsset останавливает торговлю по активу
//
// POST /api/v1/operator/halt/{asset}
//
// HTTP коды:
// - 200 OK: актив остановлен
// - 400 Bad Request: невалидный запрос
func (h *OperatorHandler) HaltAsset(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]

	var req HaltRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	if err := h.trading.HaltAsset(asset, req.Reason); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Asset " + asset + " halted"})
}

// ResetAsset сбрасывает halt и FAILED-машину актива
//
// POST /api/v1/operator/reset/{asset}
//
// HTTP коды:
// - 200 OK: сброшено
// - 409 Conflict: машина не в состоянии, допускающем сброс
func (h *OperatorHandler) ResetAsset(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]

	if err := h.trading.ResetAsset(asset); err != nil {
		respondWithError(w, http.StatusConflict, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Asset " + asset + " reset"})
}
