package hooks

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/config"
	"github.com/zapdesk/zapdesk/internal/pipeline"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// RegisterRoutes registers the automation callback endpoints
func RegisterRoutes(router *gin.Engine, p *pipeline.Pipeline, cfg *config.Config) {
	ctrl := NewController(p, cfg.GatewaySecret)

	h := router.Group("/hooks")
	{
		h.POST("/integrations/:integrationId/replies", ctrl.Reply)
	}

	utils.Zlog.Info("Hook routes registered",
		zap.String("reply_endpoint", "/hooks/integrations/:integrationId/replies [POST]"))
}
