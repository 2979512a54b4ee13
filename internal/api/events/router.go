package events

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/config"
	"github.com/zapdesk/zapdesk/internal/pipeline"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// RegisterRoutes registers the session gateway webhook endpoint
func RegisterRoutes(router *gin.Engine, p *pipeline.Pipeline, cfg *config.Config) {
	ctrl := NewController(p, cfg.GatewaySecret)

	gw := router.Group("/gateway")
	{
		gw.POST("/sessions/:sessionId/events", ctrl.Webhook)
	}

	utils.Zlog.Info("Gateway routes registered",
		zap.String("webhook_endpoint", "/gateway/sessions/:sessionId/events [POST]"))
}
