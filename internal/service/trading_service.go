package service

import (
	"fmt"

	"perpbot/internal/bot"
	"perpbot/internal/models"
)

// TradingService - фасад над торговым ядром для API слоя.
//
// Handlers не трогают движок напрямую: сервис ограничивает поверхность
// копирующими запросами состояния и операторскими командами.
type TradingService struct {
	engine *bot.Engine
}

// NewTradingService создает новый экземпляр TradingService
func NewTradingService(engine *bot.Engine) *TradingService {
	return &TradingService{engine: engine}
}

// Positions возвращает все открытые позиции
func (s *TradingService) Positions() []models.Position {
	return s.engine.Positions().Positions()
}

// Position возвращает позицию по активу или nil
func (s *TradingService) Position(asset string) *models.Position {
	return s.engine.Positions().Position(asset)
}

// RiskState возвращает снимок риск-состояния счёта
func (s *TradingService) RiskState() models.RiskState {
	return s.engine.Positions().RiskState()
}

// Account возвращает последний снимок счёта
func (s *TradingService) Account() models.AccountSnapshot {
	return s.engine.Positions().Account()
}

// FundingStates возвращает снимки funding-машин всех активов
func (s *TradingService) FundingStates() []bot.FundingMachine {
	return s.engine.Funding().States()
}

// HaltedAssets возвращает список остановленных активов
func (s *TradingService) HaltedAssets() []string {
	return s.engine.Governor().HaltedAssets()
}

// InSafeMode возвращает true, если актив в safe mode
func (s *TradingService) InSafeMode(asset string) bool {
	return s.engine.InSafeMode(asset)
}

// SubmitSignal принимает сигнал стратегии во входной буфер ансамбля
func (s *TradingService) SubmitSignal(sig models.StrategySignal) error {
	return s.engine.Aggregator().Submit(sig)
}

// HaltAsset останавливает торговлю по активу. Команда оператора.
func (s *TradingService) HaltAsset(asset, reason string) error {
	if asset == "" {
		return fmt.Errorf("asset is required")
	}
	if reason == "" {
		reason = "operator halt"
	}
	s.engine.HaltAsset(asset, reason)
	return nil
}

// ResetAsset сбрасывает halt и FAILED-машину актива. Команда оператора.
func (s *TradingService) ResetAsset(asset string) error {
	if asset == "" {
		return fmt.Errorf("asset is required")
	}
	return s.engine.ResetAsset(asset)
}
