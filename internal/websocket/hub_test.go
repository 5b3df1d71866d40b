package websocket

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"perpbot/internal/models"
)

func testHub() *Hub {
	return NewHub(zap.NewNop())
}

// registerTestClient добавляет клиента напрямую, минуя WebSocket upgrade
func registerTestClient(h *Hub, bufSize int) *Client {
	c := &Client{send: make(chan []byte, bufSize), hub: h}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func TestBroadcastReachesClients(t *testing.T) {
	h := testHub()
	go h.Run()

	c1 := registerTestClient(h, 8)
	c2 := registerTestClient(h, 8)

	h.BroadcastNotification(&models.Notification{
		Type:     models.NotificationTypeEntry,
		Severity: models.SeverityInfo,
		Asset:    "BTC-PERP",
		Message:  "opened",
	})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if len(msg) == 0 {
				t.Error("empty broadcast message")
			}
			if msg[len(msg)-1] == '\n' {
				t.Error("trailing newline must be stripped")
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestBroadcastMessageShape(t *testing.T) {
	h := testHub()
	go h.Run()

	c := registerTestClient(h, 8)
	h.BroadcastPositionUpdate("ETH-PERP", map[string]float64{"notional": 3000})

	select {
	case msg := <-c.send:
		var decoded PositionUpdateMessage
		if err := json.Unmarshal(msg, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded.Type != "positionUpdate" || decoded.Asset != "ETH-PERP" {
			t.Errorf("unexpected message: %+v", decoded)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestSlowClientRemoved(t *testing.T) {
	h := testHub()
	go h.Run()

	slow := registerTestClient(h, 1)
	slow.send <- []byte("stuck") // буфер заполнен, клиент ничего не читает

	h.BroadcastRiskUpdate(map[string]float64{"free_collateral_pct": 42})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("slow client not removed, clients = %d", h.ClientCount())
}

func TestClientCount(t *testing.T) {
	h := testHub()

	if h.ClientCount() != 0 {
		t.Errorf("empty hub count = %d", h.ClientCount())
	}

	registerTestClient(h, 1)
	registerTestClient(h, 1)
	if h.ClientCount() != 2 {
		t.Errorf("count = %d, want 2", h.ClientCount())
	}
}
