package router

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"bridge-relay/internal/handlers"
	"bridge-relay/internal/middleware"
	"bridge-relay/internal/services"
)

// corsMiddleware allows the origins listed in CORS_ALLOWED_ORIGINS
// (comma-separated); with no configuration every origin is allowed.
func corsMiddleware() gin.HandlerFunc {
	var allowed []string
	if env := os.Getenv("CORS_ALLOWED_ORIGINS"); env != "" {
		for _, o := range strings.Split(env, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				allowed = append(allowed, trimmed)
			}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, a := range allowed {
				if a == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					c.Header("Vary", "Origin")
					break
				}
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter wires every endpoint of the relay API.
func SetupRouter(service *services.RelayService, hub *services.EventHub, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	auth := middleware.NewAuthMiddleware(logger)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)
	restricted := middleware.NewLocalhostOnly(logger, strings.Split(os.Getenv("METRICS_ALLOWED_IPS"), ","))

	basicHandler := handlers.NewBasicHandler(service, hub, logger)
	authHandler := handlers.NewAuthHandler(logger)
	bridgeHandler := handlers.NewBridgeHandler(service, logger)
	timelockHandler := handlers.NewTimelockHandler(service, logger)
	adminHandler := handlers.NewAdminHandler(service, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, logger)

	// Liveness and public status.
	r.GET("/health", basicHandler.Health)
	r.GET("/metrics", restricted.Restrict(), gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/status", basicHandler.Status)
		api.GET("/assets/:asset", basicHandler.AssetStatus)
		api.GET("/requests", bridgeHandler.ListRequests)
		api.GET("/requests/:id", bridgeHandler.GetRequest)
		api.GET("/requests/:id/votes", bridgeHandler.ListVotes)
		api.GET("/ws", wsHandler.Subscribe)

		api.POST("/auth/admin/login", authHandler.AdminLogin)

		// Caller-authenticated lifecycle operations. Role checks happen
		// in the engine against the token's address.
		authed := api.Group("", auth.RequireCaller())
		{
			authed.POST("/lock", bridgeHandler.Lock)
			authed.POST("/burn", bridgeHandler.Burn)
			authed.POST("/mint", bridgeHandler.Mint)
			authed.POST("/unlock", bridgeHandler.Unlock)
			authed.POST("/vote", bridgeHandler.Vote)
		}

		admin := api.Group("/admin", adminAuth.RequireAdminAuth())
		{
			admin.POST("/tokens", authHandler.IssueToken)

			admin.POST("/roles/grant", adminHandler.GrantRole)
			admin.POST("/roles/revoke", adminHandler.RevokeRole)
			admin.GET("/roles/:role", adminHandler.ListRoleMembers)

			admin.POST("/fee", adminHandler.SetFee)
			admin.POST("/whitelist", adminHandler.SetWhitelist)
			admin.POST("/pause", adminHandler.Pause)
			admin.POST("/unpause", adminHandler.Unpause)
			admin.POST("/emergency/pause", adminHandler.EmergencyPause)
			admin.POST("/emergency/unpause", adminHandler.EmergencyUnpause)
			admin.POST("/emergency/withdraw", adminHandler.EmergencyWithdraw)
			admin.POST("/ratelimits/reset", adminHandler.ForceResetRateLimits)
			admin.POST("/timelock-delay", adminHandler.SetTimelockDelay)
			admin.GET("/events", adminHandler.ListEvents)

			admin.POST("/timelocks", timelockHandler.Schedule)
			admin.GET("/timelocks", timelockHandler.List)
			admin.GET("/timelocks/:id", timelockHandler.Get)
			admin.POST("/timelocks/:id/execute", timelockHandler.Execute)
			admin.POST("/timelocks/:id/cancel", timelockHandler.Cancel)
		}
	}

	return r
}
