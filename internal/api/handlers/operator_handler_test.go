package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func operatorRouter(svc *mockTradingService) *mux.Router {
	h := NewOperatorHandler(svc)
	r := mux.NewRouter()
	r.HandleFunc("/operator/halt/{asset}", h.HaltAsset).Methods("POST")
	r.HandleFunc("/operator/reset/{asset}", h.ResetAsset).Methods("POST")
	return r
}

func TestHaltAsset(t *testing.T) {
	svc := &mockTradingService{}

	body := `{"reason":"manual inspection"}`
	req := httptest.NewRequest("POST", "/operator/halt/BTC-PERP", strings.NewReader(body))
	req.ContentLength = int64(len(body))
	rr := httptest.NewRecorder()
	operatorRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if len(svc.haltCalls) != 1 || svc.haltCalls[0] != "BTC-PERP" {
		t.Errorf("halt calls = %v", svc.haltCalls)
	}
}

func TestHaltAssetWithoutBody(t *testing.T) {
	svc := &mockTradingService{}

	req := httptest.NewRequest("POST", "/operator/halt/ETH-PERP", nil)
	rr := httptest.NewRecorder()
	operatorRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("halt without body must work, status = %d", rr.Code)
	}
}

func TestResetAsset(t *testing.T) {
	svc := &mockTradingService{}

	req := httptest.NewRequest("POST", "/operator/reset/BTC-PERP", nil)
	rr := httptest.NewRecorder()
	operatorRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(svc.resetCalls) != 1 {
		t.Errorf("reset calls = %v", svc.resetCalls)
	}
}

func TestResetAssetConflict(t *testing.T) {
	svc := &mockTradingService{resetErr: errors.New("machine for BTC-PERP is in ENTERED, only FAILED can be reset")}

	req := httptest.NewRequest("POST", "/operator/reset/BTC-PERP", nil)
	rr := httptest.NewRecorder()
	operatorRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}
