// Package controllers holds handlers that belong to no feature surface.
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/loaders"
	"github.com/zapdesk/zapdesk/internal/utils"
)

const probeTimeout = 5 * time.Second

// HealthController answers orchestrator probes. Liveness never touches the
// database; readiness and the general health check do.
type HealthController struct {
	db *loaders.PostgresClient
}

func NewHealthController(db *loaders.PostgresClient) *HealthController {
	return &HealthController{db: db}
}

func (h *HealthController) pingDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return h.db.GetPool().Ping(ctx)
}

// HealthCheck reports overall health including database reachability.
func (h *HealthController) HealthCheck(c *gin.Context) {
	if err := h.pingDB(); err != nil {
		utils.Zlog.Error("Database health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "up"})
}

// Liveness reports that the process is running.
func (h *HealthController) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness reports whether the service can take traffic.
func (h *HealthController) Readiness(c *gin.Context) {
	if err := h.pingDB(); err != nil {
		utils.Zlog.Error("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "up"})
}
