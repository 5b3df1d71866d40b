package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"perpbot/internal/api/handlers"
	"perpbot/internal/api/middleware"
	"perpbot/internal/service"
	ws "perpbot/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Logger              *zap.Logger
	TradingService      service.TradingServiceInterface
	NotificationService service.NotificationServiceInterface
	AuditService        service.AuditServiceInterface
	Hub                 *ws.Hub
	DB                  handlers.DBPinger
	Assets              []string
	OperatorTokenHash   string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /status - сводное состояние ядра
//	├── /risk - снимок риск-состояния
//	├── /positions - открытые позиции
//	├── /positions/{asset} - позиция по активу
//	├── /funding - состояния funding-машин
//	├── /signals - POST приём сигналов стратегий
//	├── /trades - журнал изменений позиций
//	├── /decisions - журнал решений ансамбля
//	├── /notifications - журнал событий (GET, DELETE)
//	└── /operator/ (OperatorAuth)
//	    ├── POST /halt/{asset} - остановить актив
//	    └── POST /reset/{asset} - сбросить halt/FAILED
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /health - health check
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS)

	// API v1 routes
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	if deps.TradingService != nil {
		statusHandler := handlers.NewStatusHandler(deps.TradingService)
		apiV1.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")
		apiV1.HandleFunc("/risk", statusHandler.GetRisk).Methods("GET")
		apiV1.HandleFunc("/positions", statusHandler.GetPositions).Methods("GET")
		apiV1.HandleFunc("/positions/{asset}", statusHandler.GetPosition).Methods("GET")
		apiV1.HandleFunc("/funding", statusHandler.GetFunding).Methods("GET")

		signalHandler := handlers.NewSignalHandler(deps.TradingService)
		apiV1.HandleFunc("/signals", signalHandler.SubmitSignal).Methods("POST")

		// Операторские команды защищены bcrypt-токеном
		operatorHandler := handlers.NewOperatorHandler(deps.TradingService)
		operator := apiV1.PathPrefix("/operator").Subrouter()
		operator.Use(middleware.OperatorAuth(deps.OperatorTokenHash))
		operator.HandleFunc("/halt/{asset}", operatorHandler.HaltAsset).Methods("POST")
		operator.HandleFunc("/reset/{asset}", operatorHandler.ResetAsset).Methods("POST")
	}

	if deps.NotificationService != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.NotificationService)
		apiV1.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		apiV1.HandleFunc("/notifications", notificationHandler.ClearNotifications).Methods("DELETE")
	}

	if deps.AuditService != nil {
		auditHandler := handlers.NewAuditHandler(deps.AuditService)
		apiV1.HandleFunc("/trades", auditHandler.GetTrades).Methods("GET")
		apiV1.HandleFunc("/decisions", auditHandler.GetDecisions).Methods("GET")
	}

	// WebSocket route
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", deps.Hub.ServeWS)
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	healthHandler := handlers.NewHealthHandler(deps.TradingService, deps.DB, deps.Assets)
	router.HandleFunc("/health", healthHandler.GetHealth).Methods("GET")

	return router
}
