package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(logging.NewDiscardLogger(), metrics.NewNopCollector())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_PublishReachesEveryClient(t *testing.T) {
	hub, srv := startHub(t)

	first := dial(t, srv)
	second := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.Publish(TypeAlert, map[string]string{"id": "a1", "severity": "critical"})

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d read: %v", i, err)
		}

		var msg struct {
			Type    string            `json:"type"`
			Payload map[string]string `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("client %d decode: %v", i, err)
		}
		if msg.Type != TypeAlert || msg.Payload["id"] != "a1" {
			t.Errorf("client %d got %+v", i, msg)
		}
	}
}

func TestHub_UnregistersClosedClient(t *testing.T) {
	hub, srv := startHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitForClients(t, hub, 0)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub, _ := startHub(t)

	// Must not block or panic.
	for i := 0; i < 10; i++ {
		hub.Publish(TypeReadings, []int{i})
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}
