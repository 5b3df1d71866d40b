package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"perpbot/internal/service"
)

// StatusHandler отвечает за состояние торгового ядра
//
// Endpoints:
// - GET /api/v1/status - сводка: счёт, риск, funding-машины, остановки
// - GET /api/v1/risk - снимок риск-состояния
// - GET /api/v1/positions - открытые позиции
// - GET /api/v1/positions/{asset} - позиция по активу
type StatusHandler struct {
	trading service.TradingServiceInterface
}

// NewStatusHandler создает новый StatusHandler с внедрением зависимости
func NewStatusHandler(trading service.TradingServiceInterface) *StatusHandler {
	return &StatusHandler{trading: trading}
}

// StatusResponse представляет сводное состояние ядра
type StatusResponse struct {
	Account       interface{} `json:"account"`
	Risk          interface{} `json:"risk"`
	Positions     interface{} `json:"positions"`
	Funding       interface{} `json:"funding"`
	HaltedAssets  []string    `json:"halted_assets"`
	OpenPositions int         `json:"open_positions"`
}

// GetStatus возвращает сводное состояние ядра
//
// GET /api/v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	positions := h.trading.Positions()

	response := StatusResponse{
		Account:       h.trading.Account(),
		Risk:          h.trading.RiskState(),
		Positions:     positions,
		Funding:       h.trading.FundingStates(),
		HaltedAssets:  h.trading.HaltedAssets(),
		OpenPositions: len(positions),
	}

	respondWithJSON(w, http.StatusOK, response)
}

// GetRisk возвращает снимок риск-состояния счёта
//
// GET /api/v1/risk
func (h *StatusHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.trading.RiskState())
}

// GetPositions возвращает все открытые позиции
//
// GET /api/v1/positions
func (h *StatusHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.trading.Positions())
}

// GetPosition возвращает позицию по активу
//
// GET /api/v1/positions/{asset}
//
// HTTP коды:
// - 200 OK: позиция найдена
// - 404 Not Found: по активу нет открытой позиции
func (h *StatusHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]

	pos := h.trading.Position(asset)
	if pos == nil {
		respondWithError(w, http.StatusNotFound, "No open position for "+asset)
		return
	}

	respondWithJSON(w, http.StatusOK, pos)
}

// GetFunding возвращает состояния funding-машин
//
// GET /api/v1/funding
func (h *StatusHandler) GetFunding(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.trading.FundingStates())
}
