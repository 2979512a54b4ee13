package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/gateway"
	"github.com/zapdesk/zapdesk/internal/integrations"
	"github.com/zapdesk/zapdesk/internal/pipeline"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Controller receives asynchronous callbacks from automation backends
type Controller struct {
	pipeline *pipeline.Pipeline
	secret   string
}

func NewController(p *pipeline.Pipeline, secret string) *Controller {
	return &Controller{pipeline: p, secret: secret}
}

// Reply lets a backend answer a ticket outside the dispatch cycle.
// POST /hooks/integrations/:integrationId/replies
func (c *Controller) Reply(ctx *gin.Context) {
	integrationID, err := strconv.ParseInt(ctx.Param("integrationId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_integration_id"})
		return
	}

	body, err := ctx.GetRawData()
	if err != nil || len(body) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	signature := ctx.GetHeader("X-Hub-Signature-256")
	if err := gateway.VerifySignature(signature, body, c.secret); err != nil {
		utils.Zlog.Warn("Rejected integration callback with bad signature",
			zap.Int64("integration_id", integrationID),
			zap.Error(err))
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		return
	}

	var req ReplyRequest
	if err := json.Unmarshal(body, &req); err != nil || req.CompanyID == 0 || req.TicketID == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	reply := &integrations.Reply{
		Content:         req.Content,
		PendingVariable: req.PendingVariable,
		VariableTimeout: time.Duration(req.VariableTimeoutSeconds) * time.Second,
	}

	err = c.pipeline.HandleBackendReply(context.Background(), req.CompanyID, req.TicketID, integrationID, reply)
	if err != nil {
		utils.Zlog.Error("Failed to apply integration reply",
			zap.Int64("integration_id", integrationID),
			zap.Int64("ticket_id", req.TicketID),
			zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "reply_failed"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "applied"})
}
