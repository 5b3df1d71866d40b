package handlers

import (
	"context"
	"net/http"
	"time"

	"perpbot/internal/service"
)

// DBPinger проверяет доступность базы данных (реализуется *sql.DB)
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler отвечает за health check
type HealthHandler struct {
	trading service.TradingServiceInterface
	db      DBPinger
	assets  []string
}

// NewHealthHandler создает новый HealthHandler
func NewHealthHandler(trading service.TradingServiceInterface, db DBPinger, assets []string) *HealthHandler {
	return &HealthHandler{trading: trading, db: db, assets: assets}
}

// HealthResponse представляет состояние сервиса
type HealthResponse struct {
	Status       string          `json:"status"`   // ok, degraded
	Database     string          `json:"database"` // ok, unreachable, disabled
	SafeMode     map[string]bool `json:"safe_mode,omitempty"`
	HaltedAssets []string        `json:"halted_assets,omitempty"`
}

// GetHealth возвращает состояние ядра и зависимостей
//
// GET /health
//
// HTTP коды:
// - 200 OK: всегда, состояние в теле (мониторинг читает status)
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "disabled"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Database = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Database = "ok"
		}
	}

	if h.trading != nil {
		resp.SafeMode = make(map[string]bool, len(h.assets))
		for _, asset := range h.assets {
			resp.SafeMode[asset] = h.trading.InSafeMode(asset)
		}
		resp.HaltedAssets = h.trading.HaltedAssets()
	}

	respondWithJSON(w, http.StatusOK, resp)
}
