package service

import (
	"time"

	"go.uber.org/zap"

	"perpbot/internal/models"
)

// AuditService предоставляет доступ к журналам сделок и решений ансамбля.
//
// Пишущая сторона подключается к движку как sink'и (RecordDelta,
// RecordDecision), читающая обслуживает API.
type AuditService struct {
	trades    TradeStoreInterface
	decisions DecisionStoreInterface
	logger    *zap.Logger
}

// NewAuditService создает новый экземпляр AuditService
func NewAuditService(trades TradeStoreInterface, decisions DecisionStoreInterface, logger *zap.Logger) *AuditService {
	return &AuditService{
		trades:    trades,
		decisions: decisions,
		logger:    logger,
	}
}

// RecordDelta пишет изменение позиции в журнал сделок.
// Sink для Engine.OnPositionDelta; ошибка записи не прерывает торговлю.
func (s *AuditService) RecordDelta(d models.PositionDelta) {
	if err := s.trades.Create(models.TradeRecordFromDelta(d)); err != nil {
		s.logger.Error("trade audit persist failed",
			zap.String("asset", d.Asset),
			zap.Error(err))
	}
}

// RecordDecision пишет решение ансамбля в журнал
func (s *AuditService) RecordDecision(d models.EnsembleDecision) {
	if err := s.decisions.Create(models.DecisionRecordFrom(d)); err != nil {
		s.logger.Error("decision audit persist failed",
			zap.String("asset", d.Asset),
			zap.Error(err))
	}
}

// GetTrades возвращает журнал сделок, опционально по активу
func (s *AuditService) GetTrades(asset string, limit int) ([]*models.TradeRecord, error) {
	limit = clampLimit(limit)
	if asset != "" {
		return s.trades.GetByAsset(asset, limit)
	}
	return s.trades.GetRecent(limit)
}

// GetDecisions возвращает журнал решений, опционально по активу
func (s *AuditService) GetDecisions(asset string, limit int) ([]*models.DecisionRecord, error) {
	limit = clampLimit(limit)
	if asset != "" {
		return s.decisions.GetByAsset(asset, limit)
	}
	return s.decisions.GetRecent(limit)
}

// Cleanup удаляет журнальные записи старше retention-периода.
// Возвращает суммарное количество удаленных строк.
func (s *AuditService) Cleanup(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	deletedTrades, err := s.trades.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	deletedDecisions, err := s.decisions.DeleteOlderThan(cutoff)
	if err != nil {
		return deletedTrades, err
	}

	return deletedTrades + deletedDecisions, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 500 {
		return 500
	}
	return limit
}
