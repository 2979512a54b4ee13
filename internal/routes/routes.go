package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/zapdesk/zapdesk/internal/api/events"
	"github.com/zapdesk/zapdesk/internal/api/hooks"
	"github.com/zapdesk/zapdesk/internal/api/stream"
	"github.com/zapdesk/zapdesk/internal/api/ticketops"
	"github.com/zapdesk/zapdesk/internal/config"
	"github.com/zapdesk/zapdesk/internal/loaders"
	"github.com/zapdesk/zapdesk/internal/middleware"
	"github.com/zapdesk/zapdesk/internal/pipeline"
	"github.com/zapdesk/zapdesk/internal/tickets"
	"github.com/zapdesk/zapdesk/internal/ws"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, db *loaders.PostgresClient, cfg *config.Config, p *pipeline.Pipeline, manager *tickets.Manager, hub *ws.Hub) {
	// Apply global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	// Setup route groups
	SetupHealthRoutes(router, db)
	events.RegisterRoutes(router, p, cfg)
	hooks.RegisterRoutes(router, p, cfg)
	ticketops.RegisterRoutes(router, manager, cfg)
	stream.RegisterRoutes(router, hub, cfg)
	Setup404Handler(router)
}
