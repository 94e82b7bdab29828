package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bridge-relay/internal/bridge"
	"bridge-relay/internal/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

// wsEnvelope is the frame pushed to websocket subscribers.
type wsEnvelope struct {
	Type      string       `json:"type"`
	MessageID string       `json:"message_id"`
	Timestamp time.Time    `json:"timestamp"`
	Data      bridge.Event `json:"data"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans engine events out to connected websocket clients. Slow
// clients are dropped rather than allowed to stall the broadcast path.
type EventHub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
	logger  *logrus.Logger
}

func NewEventHub(logger *logrus.Logger) *EventHub {
	return &EventHub{
		clients: make(map[string]*wsClient),
		logger:  logger,
	}
}

// Register takes ownership of an upgraded connection and services it until
// the peer disconnects.
func (h *EventHub) Register(conn *websocket.Conn) {
	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()

	h.logger.WithField("client_id", client.id).Info("websocket client connected")

	go h.writePump(client)
	go h.readPump(client)
}

func (h *EventHub) unregister(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	h.mu.Unlock()

	close(client.send)
	client.conn.Close()
	metrics.WebSocketClients.Dec()
	h.logger.WithField("client_id", client.id).Info("websocket client disconnected")
}

// Broadcast pushes one event to every connected client.
func (h *EventHub) Broadcast(ev bridge.Event) {
	frame, err := json.Marshal(wsEnvelope{
		Type:      string(ev.Type),
		MessageID: uuid.New().String(),
		Timestamp: time.Now(),
		Data:      ev,
	})
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal websocket frame")
		return
	}

	h.mu.RLock()
	stalled := make([]*wsClient, 0)
	for _, client := range h.clients {
		select {
		case client.send <- frame:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.logger.WithField("client_id", client.id).Warn("dropping slow websocket client")
		h.unregister(client)
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every live connection.
func (h *EventHub) Shutdown() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *EventHub) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.send:
			if !ok {
				client.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(wsWriteWait))
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.unregister(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(client)
				return
			}
		}
	}
}

// readPump drains inbound frames so close and pong handling work. The feed
// is one-way; client payloads are discarded.
func (h *EventHub) readPump(client *wsClient) {
	defer h.unregister(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
