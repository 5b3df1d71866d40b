package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

func TestGetHealthOK(t *testing.T) {
	svc := &mockTradingService{safeModes: map[string]bool{"BTC-PERP": true}}
	h := NewHealthHandler(svc, &mockPinger{}, []string{"BTC-PERP", "ETH-PERP"})

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	h.GetHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.Database != "ok" {
		t.Errorf("status=%s database=%s", resp.Status, resp.Database)
	}
	if !resp.SafeMode["BTC-PERP"] || resp.SafeMode["ETH-PERP"] {
		t.Errorf("safe_mode = %v", resp.SafeMode)
	}
}

func TestGetHealthDatabaseDown(t *testing.T) {
	h := NewHealthHandler(&mockTradingService{}, &mockPinger{err: errors.New("connection refused")}, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	h.GetHealth(rr, req)

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" || resp.Database != "unreachable" {
		t.Errorf("status=%s database=%s", resp.Status, resp.Database)
	}
}
