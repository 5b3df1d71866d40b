package handlers

import (
	"net/http"

	"perpbot/internal/service"
)

// AuditHandler отвечает за журналы сделок и решений ансамбля
//
// Endpoints:
// - GET /api/v1/trades - журнал изменений позиций
// - GET /api/v1/trades?asset=BTC-PERP&limit=20 - по активу
// - GET /api/v1/decisions - журнал решений ансамбля
type AuditHandler struct {
	audit service.AuditServiceInterface
}

// NewAuditHandler создает новый AuditHandler с внедрением зависимости
func NewAuditHandler(audit service.AuditServiceInterface) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// GetTrades возвращает журнал изменений позиций
//
// GET /api/v1/trades
//
// Query параметры:
// - asset (string): фильтр по активу
// - limit (int): количество записей (по умолчанию 100)
func (h *AuditHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	limit := parseLimit(r, 100)

	trades, err := h.audit.GetTrades(asset, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get trades: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Data: trades})
}

// GetDecisions возвращает журнал решений ансамбля
//
// GET /api/v1/decisions
//
// Query параметры:
// - asset (string): фильтр по активу
// - limit (int): количество записей (по умолчанию 100)
func (h *AuditHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	limit := parseLimit(r, 100)

	decisions, err := h.audit.GetDecisions(asset, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get decisions: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Data: decisions})
}
