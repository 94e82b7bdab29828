package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bridge-relay/internal/config"
	"bridge-relay/internal/db"
	"bridge-relay/internal/services"
)

// BasicHandler serves health and public status endpoints.
type BasicHandler struct {
	service *services.RelayService
	hub     *services.EventHub
	logger  *logrus.Logger
	started time.Time
}

func NewBasicHandler(service *services.RelayService, hub *services.EventHub, logger *logrus.Logger) *BasicHandler {
	return &BasicHandler{
		service: service,
		hub:     hub,
		logger:  logger,
		started: time.Now(),
	}
}

// Health reports process and database liveness.
func (h *BasicHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if sqlDB, err := db.DB.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "unreachable"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   dbStatus,
		"uptime_s": int64(time.Since(h.started) / time.Second),
		"time":     time.Now().UTC(),
	})
}

// Status returns a public snapshot of the relay state.
func (h *BasicHandler) Status(c *gin.Context) {
	engine := h.service.Engine()
	bcfg := config.AppConfig.Bridge

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status": gin.H{
			"source_chain_id":        bcfg.SourceChainID,
			"protocol_tag":           bcfg.ProtocolTag,
			"paused":                 engine.Paused(),
			"fee_bps":                engine.FeeBps(),
			"nonce":                  engine.Nonce(),
			"timelock_delay_seconds": int64(engine.TimelockDelay() / time.Second),
			"min_amount":             bcfg.MinAmount,
			"max_amount":             bcfg.MaxAmount,
			"global_daily_cap":       bcfg.GlobalDailyCap,
			"user_daily_cap":         bcfg.UserDailyCap,
			"websocket_clients":      h.hub.ClientCount(),
		},
	})
}

// AssetStatus reports whether one asset is currently bridgeable.
func (h *BasicHandler) AssetStatus(c *gin.Context) {
	asset, err := parseAddressParam(c.Param("asset"))
	if err != nil {
		badRequest(c, "Invalid asset address")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"asset":       asset.Hex(),
		"whitelisted": h.service.Engine().IsWhitelisted(asset),
	})
}
