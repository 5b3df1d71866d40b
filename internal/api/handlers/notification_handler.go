package handlers

import (
	"net/http"
	"strings"

	"perpbot/internal/service"
)

// NotificationHandler отвечает за журнал событий ядра
//
// Endpoints:
// - GET /api/v1/notifications - список уведомлений
// - GET /api/v1/notifications?types=entry,kill_switch - с фильтрацией по типам
// - GET /api/v1/notifications?limit=50 - с ограничением количества
// - DELETE /api/v1/notifications - очистка журнала
type NotificationHandler struct {
	notifications service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notifications service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications interface{} `json:"notifications"`
	Total         int         `json:"total"`
}

// GetNotifications возвращает список уведомлений с фильтрацией
//
// GET /api/v1/notifications
//
// Query параметры:
// - types (string): фильтр по типам через запятую
// - limit (int): количество записей (по умолчанию 100, максимум 500)
//
// HTTP коды:
// - 200 OK: успешно
// - 500 Internal Server Error: ошибка сервера
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	var types []string
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		for _, part := range strings.Split(typesParam, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				types = append(types, trimmed)
			}
		}
	}

	limit := parseLimit(r, 100)

	notifications, err := h.notifications.GetNotifications(types, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get notifications: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: notifications,
		Total:         len(notifications),
	})
}

// ClearNotifications очищает журнал уведомлений
//
// DELETE /api/v1/notifications
//
// HTTP коды:
// - 200 OK: журнал очищен
// - 500 Internal Server Error: ошибка при очистке
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.ClearNotifications(); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to clear notifications: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Notifications cleared successfully"})
}
