package events

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/gateway"
	"github.com/zapdesk/zapdesk/internal/pipeline"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Controller handles raw event webhooks from the session gateway
type Controller struct {
	pipeline *pipeline.Pipeline
	secret   string
}

func NewController(p *pipeline.Pipeline, secret string) *Controller {
	return &Controller{pipeline: p, secret: secret}
}

// Webhook ingests one raw provider event for a session.
// POST /gateway/sessions/:sessionId/events
func (c *Controller) Webhook(ctx *gin.Context) {
	sessionID, err := strconv.ParseInt(ctx.Param("sessionId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_session_id"})
		return
	}

	body, err := ctx.GetRawData()
	if err != nil || len(body) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	signature := ctx.GetHeader("X-Hub-Signature-256")
	if err := gateway.VerifySignature(signature, body, c.secret); err != nil {
		utils.Zlog.Warn("Rejected gateway webhook with bad signature",
			zap.Int64("session_id", sessionID),
			zap.Error(err))
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		return
	}

	// Respond immediately; the gateway retries on anything but a fast 200,
	// and redeliveries are absorbed by the ledger anyway.
	ctx.JSON(http.StatusOK, gin.H{"status": "received"})

	go func() {
		if err := c.pipeline.HandleRawEvent(context.Background(), sessionID, body); err != nil {
			utils.Zlog.Error("Failed to process gateway event",
				zap.Int64("session_id", sessionID),
				zap.Error(err))
		}
	}()
}
