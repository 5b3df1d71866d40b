package service

import (
	"time"

	"perpbot/internal/models"
)

// ============================================================
// Mock репозитории для unit-тестов сервисов
// ============================================================

type mockNotificationStore struct {
	created       []*models.Notification
	stored        []*models.Notification
	createErr     error
	deleteAllHits int

	lastTypes []string
	lastLimit int
}

func (m *mockNotificationStore) Create(n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = len(m.created) + 1
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationStore) GetRecent(limit int) ([]*models.Notification, error) {
	m.lastTypes = nil
	m.lastLimit = limit
	return m.stored, nil
}

func (m *mockNotificationStore) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	m.lastTypes = types
	m.lastLimit = limit
	return m.stored, nil
}

func (m *mockNotificationStore) GetByAsset(asset string, limit int) ([]*models.Notification, error) {
	m.lastLimit = limit
	return m.stored, nil
}

func (m *mockNotificationStore) DeleteAll() error {
	m.deleteAllHits++
	return nil
}

func (m *mockNotificationStore) DeleteOlderThan(timestamp time.Time) (int64, error) {
	return 0, nil
}

func (m *mockNotificationStore) Count() (int, error) {
	return len(m.stored), nil
}

type mockBroadcaster struct {
	broadcasts []*models.Notification
}

func (m *mockBroadcaster) BroadcastNotification(n *models.Notification) {
	m.broadcasts = append(m.broadcasts, n)
}

type mockTradeStore struct {
	created   []*models.TradeRecord
	stored    []*models.TradeRecord
	createErr error
	deleted   int64

	lastAsset string
	lastLimit int
}

func (m *mockTradeStore) Create(trade *models.TradeRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	trade.ID = len(m.created) + 1
	m.created = append(m.created, trade)
	return nil
}

func (m *mockTradeStore) GetRecent(limit int) ([]*models.TradeRecord, error) {
	m.lastAsset = ""
	m.lastLimit = limit
	return m.stored, nil
}

func (m *mockTradeStore) GetByAsset(asset string, limit int) ([]*models.TradeRecord, error) {
	m.lastAsset = asset
	m.lastLimit = limit
	return m.stored, nil
}

func (m *mockTradeStore) DeleteOlderThan(timestamp time.Time) (int64, error) {
	return m.deleted, nil
}

func (m *mockTradeStore) Count() (int, error) {
	return len(m.stored), nil
}

type mockDecisionStore struct {
	created []*models.DecisionRecord
	stored  []*models.DecisionRecord
	deleted int64

	lastAsset string
	lastLimit int
}

func (m *mockDecisionStore) Create(decision *models.DecisionRecord) error {
	decision.ID = len(m.created) + 1
	m.created = append(m.created, decision)
	return nil
}

func (m *mockDecisionStore) GetRecent(limit int) ([]*models.DecisionRecord, error) {
	m.lastAsset = ""
	m.lastLimit = limit
	return m.stored, nil
}

func (m *mockDecisionStore) GetByAsset(asset string, limit int) ([]*models.DecisionRecord, error) {
	m.lastAsset = asset
	m.lastLimit = limit
	return m.stored, nil
}

func (m *mockDecisionStore) DeleteOlderThan(timestamp time.Time) (int64, error) {
	return m.deleted, nil
}
