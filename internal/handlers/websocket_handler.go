package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bridge-relay/internal/services"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is public read-only data; origin checks are left to the
	// fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades connections onto the live event feed.
type WebSocketHandler struct {
	hub    *services.EventHub
	logger *logrus.Logger
}

func NewWebSocketHandler(hub *services.EventHub, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// Subscribe upgrades the request and registers the client with the hub.
func (h *WebSocketHandler) Subscribe(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	h.hub.Register(conn)
}
