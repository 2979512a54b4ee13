package ticketops

import (
	"github.com/gin-gonic/gin"

	"github.com/zapdesk/zapdesk/internal/config"
	"github.com/zapdesk/zapdesk/internal/middleware"
	"github.com/zapdesk/zapdesk/internal/tickets"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// RegisterRoutes registers operator ticket actions
func RegisterRoutes(router *gin.Engine, manager *tickets.Manager, cfg *config.Config) {
	ctrl := NewController(manager)

	t := router.Group("/companies/:companyId/tickets", middleware.APIAuth(cfg.APIToken))
	{
		t.POST("/:ticketId/close", ctrl.Close)
		t.POST("/:ticketId/nps", ctrl.SubmitNPS)
		t.POST("/:ticketId/queue", ctrl.Reassign)
	}

	utils.Zlog.Info("Ticket routes registered")
}
