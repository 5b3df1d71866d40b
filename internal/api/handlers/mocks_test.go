package handlers

import (
	"errors"

	"perpbot/internal/bot"
	"perpbot/internal/models"
)

// ============================================================
// Mock сервисы для unit-тестов handlers
// ============================================================

type mockTradingService struct {
	positions []models.Position
	risk      models.RiskState
	account   models.AccountSnapshot
	funding   []bot.FundingMachine
	halted    []string
	safeModes map[string]bool

	submitted []models.StrategySignal
	submitErr error

	haltCalls  []string
	resetCalls []string
	resetErr   error
}

func (m *mockTradingService) Positions() []models.Position { return m.positions }

func (m *mockTradingService) Position(asset string) *models.Position {
	for i := range m.positions {
		if m.positions[i].Asset == asset {
			return &m.positions[i]
		}
	}
	return nil
}

func (m *mockTradingService) RiskState() models.RiskState        { return m.risk }
func (m *mockTradingService) Account() models.AccountSnapshot    { return m.account }
func (m *mockTradingService) FundingStates() []bot.FundingMachine { return m.funding }
func (m *mockTradingService) HaltedAssets() []string             { return m.halted }
func (m *mockTradingService) InSafeMode(asset string) bool       { return m.safeModes[asset] }

func (m *mockTradingService) SubmitSignal(sig models.StrategySignal) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	if err := sig.Validate(); err != nil {
		return err
	}
	m.submitted = append(m.submitted, sig)
	return nil
}

func (m *mockTradingService) HaltAsset(asset, reason string) error {
	if asset == "" {
		return errors.New("asset is required")
	}
	m.haltCalls = append(m.haltCalls, asset)
	return nil
}

func (m *mockTradingService) ResetAsset(asset string) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resetCalls = append(m.resetCalls, asset)
	return nil
}

type mockNotificationService struct {
	notifications []*models.Notification
	getErr        error
	clearErr      error
	clearCalls    int

	lastTypes []string
	lastLimit int
}

func (m *mockNotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastTypes = types
	m.lastLimit = limit
	return m.notifications, nil
}

func (m *mockNotificationService) ClearNotifications() error {
	m.clearCalls++
	return m.clearErr
}

func (m *mockNotificationService) GetNotificationCount() (int, error) {
	return len(m.notifications), nil
}

type mockAuditService struct {
	trades    []*models.TradeRecord
	decisions []*models.DecisionRecord
	err       error

	lastAsset string
	lastLimit int
}

func (m *mockAuditService) GetTrades(asset string, limit int) ([]*models.TradeRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastAsset = asset
	m.lastLimit = limit
	return m.trades, nil
}

func (m *mockAuditService) GetDecisions(asset string, limit int) ([]*models.DecisionRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastAsset = asset
	m.lastLimit = limit
	return m.decisions, nil
}
