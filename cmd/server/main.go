package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"perpbot/internal/api"
	"perpbot/internal/bot"
	"perpbot/internal/config"
	"perpbot/internal/exchange"
	"perpbot/internal/repository"
	"perpbot/internal/service"
	ws "perpbot/internal/websocket"
	"perpbot/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// .env для локальной разработки, в проде переменные заданы окружением
	_ = godotenv.Load()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database",
			zap.String("dsn", cfg.Database.DSNWithoutPassword()),
			zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	tradeRepo := repository.NewTradeRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Инициализация сервисов
	notificationService := service.NewNotificationService(notificationRepo, logger)
	auditService := service.NewAuditService(tradeRepo, decisionRepo, logger)

	// WebSocket hub
	hub := ws.NewHub(logger)
	go hub.Run()
	notificationService.SetWebSocketHub(hub)

	// Исполнение: paper-коллаборатор. Живой биржевой клиент подключается
	// той же тройкой интерфейсов (execution, market data, account).
	paper := exchange.NewPaperExchange(cfg.Trading.ExecutionRate, logger)

	// Торговое ядро
	engine, err := bot.NewEngine(cfg, logger, paper, paper, paper)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}
	engine.OnNotification(notificationService.Record)
	engine.OnPositionDelta(auditService.RecordDelta)
	engine.OnDecision(auditService.RecordDecision)

	tradingService := service.NewTradingService(engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(ctx)
	}()

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		Logger:              logger,
		TradingService:      tradingService,
		NotificationService: notificationService,
		AuditService:        auditService,
		Hub:                 hub,
		DB:                  db,
		Assets:              cfg.Trading.Assets,
		OperatorTokenHash:   cfg.Security.OperatorTokenHash,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	stop()
	logger.Info("shutting down")

	// Ядро останавливается первым: незавершённые закрытия доводятся
	// до конца внутри Run перед возвратом
	select {
	case <-engineDone:
	case <-time.After(45 * time.Second):
		logger.Warn("engine did not stop in time")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
