// Package websocket pushes alerts, readings and device events to connected dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

// Message types sent to dashboards
const (
	TypeAlert             = "alert"
	TypeAlertAcknowledged = "alert_acknowledged"
	TypeAlertDismissed    = "alert_dismissed"
	TypeReadings          = "readings"
	TypeWiFiStatus        = "wifi_status"
	TypeConfig            = "config"
)

// Message is the envelope of every pushed event
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewHub creates a hub; call Run to start delivering messages
func NewHub(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Run delivers broadcasts until ctx is cancelled, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.metrics.WebsocketClients.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.WebsocketClients.Set(float64(count))
			h.logger.Info(ctx, "[WS_REGISTER] Dashboard connected", logging.Fields{
				"remote_addr": client.remoteAddr(),
				"clients":     count,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.WebsocketClients.Set(float64(count))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn(ctx, "[WS_SLOW_CLIENT] Send buffer full, dropping client", logging.Fields{
						"remote_addr": client.remoteAddr(),
					})
					close(client.send)
					delete(h.clients, client)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.WebsocketClients.Set(float64(count))
		}
	}
}

// ClientCount returns the number of connected dashboards
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes an event and queues it for every client.
// Events are dropped when the hub is saturated.
func (h *Hub) Publish(msgType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error(context.Background(), "[WS_ENCODE_ERROR] Failed to encode broadcast", logging.Fields{
			"type": msgType,
		}, err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn(context.Background(), "[WS_BROADCAST_DROPPED] Broadcast queue full", logging.Fields{
			"type": msgType,
		})
	}
}

// ServeWS upgrades the request and starts the client pumps
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "[WS_UPGRADE_ERROR] Websocket upgrade failed", logging.Fields{
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		})
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 64)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
