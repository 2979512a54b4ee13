// Package stream exposes the realtime operator socket.
package stream

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/config"
	"github.com/zapdesk/zapdesk/internal/middleware"
	"github.com/zapdesk/zapdesk/internal/utils"
	"github.com/zapdesk/zapdesk/internal/ws"
)

// RegisterRoutes registers the websocket endpoint
func RegisterRoutes(router *gin.Engine, hub *ws.Hub, cfg *config.Config) {
	router.GET("/companies/:companyId/stream", middleware.APIAuth(cfg.APIToken), func(c *gin.Context) {
		companyID, err := strconv.ParseInt(c.Param("companyId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_company_id"})
			return
		}

		if err := ws.ServeWS(hub, c.Writer, c.Request, companyID); err != nil {
			utils.Zlog.Warn("Websocket upgrade failed",
				zap.Int64("company_id", companyID),
				zap.Error(err))
		}
	})

	utils.Zlog.Info("Stream routes registered",
		zap.String("endpoint", "/companies/:companyId/stream [GET]"))
}
