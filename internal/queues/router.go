// Package queues decides which routing bucket a ticket lands in.
package queues

import (
	"context"

	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Store is the queue assignment surface.
type Store interface {
	AssignQueue(ctx context.Context, companyID, ticketID int64, queueID *int64) error
	GetQueue(ctx context.Context, companyID, queueID int64) (*core.Queue, error)
}

// Router assigns tickets to queues. Routing is independent of message
// content; content-based decisions belong to the integration backends.
type Router struct {
	store Store
}

func NewRouter(store Store) *Router {
	return &Router{store: store}
}

// RouteNew assigns a freshly created ticket. New tickets inherit the owning
// session's default queue when set; otherwise they stay unassigned, pending
// manual triage.
func (r *Router) RouteNew(ctx context.Context, session *core.Session, t *core.Ticket) (*int64, error) {
	if session.DefaultQueueID == nil {
		return nil, nil
	}

	// Stale defaults (deleted queue, wrong tenant) leave the ticket
	// unassigned instead of pointing at a dead bucket.
	if _, err := r.store.GetQueue(ctx, session.CompanyID, *session.DefaultQueueID); err != nil {
		utils.Zlog.Warn("Session default queue unavailable, leaving ticket unassigned",
			zap.Int64("session_id", session.ID),
			zap.Int64("queue_id", *session.DefaultQueueID),
			zap.Error(err))
		return nil, nil
	}

	if err := r.store.AssignQueue(ctx, session.CompanyID, t.ID, session.DefaultQueueID); err != nil {
		return nil, err
	}
	return session.DefaultQueueID, nil
}

// Reassign moves a ticket to an explicit queue. Always overwrites, never
// merges.
func (r *Router) Reassign(ctx context.Context, companyID, ticketID int64, queueID *int64) error {
	return r.store.AssignQueue(ctx, companyID, ticketID, queueID)
}
