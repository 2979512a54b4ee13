package ticketops

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/tickets"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Controller exposes operator-facing ticket lifecycle actions
type Controller struct {
	manager *tickets.Manager
}

func NewController(manager *tickets.Manager) *Controller {
	return &Controller{manager: manager}
}

// Close drives a ticket to closed, assigning its protocol on first close.
// POST /companies/:companyId/tickets/:ticketId/close
func (c *Controller) Close(ctx *gin.Context) {
	companyID, ticketID, ok := pathIDs(ctx)
	if !ok {
		return
	}

	var req CloseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	ticket, err := c.manager.Close(ctx.Request.Context(), companyID, ticketID, req.UserID, req.RequestNPS)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "ticket_not_found"})
			return
		}
		utils.Zlog.Error("Failed to close ticket",
			zap.Int64("company_id", companyID),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "close_failed"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":     ticket.Status,
		"protocol":   ticket.Protocol,
		"npsPending": ticket.NPSPending,
	})
}

// SubmitNPS records the customer satisfaction score for a closed ticket.
// POST /companies/:companyId/tickets/:ticketId/nps
func (c *Controller) SubmitNPS(ctx *gin.Context) {
	companyID, ticketID, ok := pathIDs(ctx)
	if !ok {
		return
	}

	var req NPSRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Score == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	err := c.manager.SubmitNPS(ctx.Request.Context(), companyID, ticketID, *req.Score)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Either the ticket does not exist or its capture window closed.
			ctx.JSON(http.StatusConflict, gin.H{"error": "nps_window_closed"})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// Reassign moves a ticket to another queue.
// POST /companies/:companyId/tickets/:ticketId/queue
func (c *Controller) Reassign(ctx *gin.Context) {
	companyID, ticketID, ok := pathIDs(ctx)
	if !ok {
		return
	}

	var req ReassignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	if err := c.manager.Reassign(ctx.Request.Context(), companyID, ticketID, req.QueueID); err != nil {
		utils.Zlog.Error("Failed to reassign ticket",
			zap.Int64("company_id", companyID),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "reassign_failed"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "reassigned"})
}

func pathIDs(ctx *gin.Context) (companyID, ticketID int64, ok bool) {
	companyID, err := strconv.ParseInt(ctx.Param("companyId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_company_id"})
		return 0, 0, false
	}
	ticketID, err = strconv.ParseInt(ctx.Param("ticketId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_ticket_id"})
		return 0, 0, false
	}
	return companyID, ticketID, true
}
