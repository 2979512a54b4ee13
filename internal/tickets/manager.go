// Package tickets owns the ticket state machine: open -> pending-close ->
// closed, plus the orthogonal npsPending marker and the pending bot-variable
// slot. All lifecycle mutations go through the Manager; nothing else writes
// these fields.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Store is the persistence surface the lifecycle needs.
type Store interface {
	GetTicket(ctx context.Context, companyID, ticketID int64) (*core.Ticket, error)
	FindOpenTicket(ctx context.Context, companyID, contactID int64) (*core.Ticket, error)
	FindLatestClosedTicket(ctx context.Context, companyID, contactID int64) (*core.Ticket, error)
	CreateTicket(ctx context.Context, t *core.Ticket) (*core.Ticket, error)
	ReopenTicket(ctx context.Context, companyID, ticketID int64) (*core.Ticket, error)
	TouchTicketInbound(ctx context.Context, companyID, ticketID int64, lastMessage string, at time.Time) error
	TouchTicketOutbound(ctx context.Context, companyID, ticketID int64, lastMessage string, at time.Time) error
	AssignProtocol(ctx context.Context, companyID, ticketID int64, protocol string) error
	MarkPendingClose(ctx context.Context, companyID, ticketID int64) error
	MarkClosed(ctx context.Context, companyID, ticketID int64, npsPending bool, npsUserID *int64) error
	SetNPSScore(ctx context.Context, companyID, ticketID int64, score int) error
	ExpireNPSBefore(ctx context.Context, cutoff time.Time) (int64, error)
	SetPendingVariable(ctx context.Context, companyID, ticketID int64, name string, integrationID int64, until time.Time) error
	ClearPendingVariable(ctx context.Context, companyID, ticketID int64) error
	AssignQueue(ctx context.Context, companyID, ticketID int64, queueID *int64) error
}

// Manager advances ticket lifecycle state.
type Manager struct {
	store     Store
	protocols *ProtocolGenerator
	npsWindow time.Duration
	now       func() time.Time
}

func NewManager(store Store, protocols *ProtocolGenerator, npsWindow time.Duration) *Manager {
	return &Manager{
		store:     store,
		protocols: protocols,
		npsWindow: npsWindow,
		now:       time.Now,
	}
}

// Resolve finds the ticket an inbound event belongs to, creating or reopening
// one as needed. Returns the ticket and whether it was newly created. Callers
// hold the per-conversation lock.
func (m *Manager) Resolve(ctx context.Context, session *core.Session, contact *core.Contact) (*core.Ticket, bool, error) {
	ticket, err := m.store.FindOpenTicket(ctx, session.CompanyID, contact.ID)
	if err != nil {
		return nil, false, err
	}
	if ticket != nil {
		return ticket, false, nil
	}

	closed, err := m.store.FindLatestClosedTicket(ctx, session.CompanyID, contact.ID)
	if err != nil {
		return nil, false, err
	}
	if closed != nil {
		// Fresh lifecycle on the same ticket; protocol and NPS stay frozen.
		// Reopening also interrupts any pending bot-flow wait.
		reopened, err := m.store.ReopenTicket(ctx, session.CompanyID, closed.ID)
		if err != nil {
			return nil, false, err
		}
		utils.Zlog.Info("Ticket reopened by inbound message",
			zap.Int64("company_id", session.CompanyID),
			zap.Int64("ticket_id", reopened.ID))
		return reopened, false, nil
	}

	sessionID := session.ID
	created, err := m.store.CreateTicket(ctx, &core.Ticket{
		CompanyID:    session.CompanyID,
		SessionID:    &sessionID,
		ContactID:    contact.ID,
		ContactLabel: contact.DisplayName,
		QueueID:      nil,
	})
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// RecordInbound bumps unread/lastMessage bookkeeping after a message was
// admitted by the ledger. Never called on the duplicate path.
func (m *Manager) RecordInbound(ctx context.Context, t *core.Ticket, lastMessage string, at time.Time) error {
	return m.store.TouchTicketInbound(ctx, t.CompanyID, t.ID, lastMessage, at)
}

// RecordOutbound resets unreads after an operator or automation reply.
func (m *Manager) RecordOutbound(ctx context.Context, t *core.Ticket, lastMessage string, at time.Time) error {
	return m.store.TouchTicketOutbound(ctx, t.CompanyID, t.ID, lastMessage, at)
}

// protocolAttempts bounds close-time protocol generation. A collision fails
// the candidate, never the close: we retry with a new one.
const protocolAttempts = 5

// Close drives open -> pending-close -> closed. The protocol is generated
// and assigned exactly once per ticket; a re-close after reopen keeps the
// original. userID is the operator or automation owning the ticket at close;
// it becomes npsUserId when NPS capture is requested.
func (m *Manager) Close(ctx context.Context, companyID, ticketID int64, userID *int64, requestNPS bool) (*core.Ticket, error) {
	ticket, err := m.store.GetTicket(ctx, companyID, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == core.StatusClosed {
		return ticket, nil
	}

	if ticket.Protocol == nil {
		if err := m.assignProtocol(ctx, companyID, ticketID); err != nil {
			return nil, err
		}
	} else if err := m.store.MarkPendingClose(ctx, companyID, ticketID); err != nil {
		return nil, err
	}

	if err := m.store.MarkClosed(ctx, companyID, ticketID, requestNPS, userID); err != nil {
		return nil, err
	}

	closed, err := m.store.GetTicket(ctx, companyID, ticketID)
	if err != nil {
		return nil, err
	}

	utils.Zlog.Info("Ticket closed",
		zap.Int64("company_id", companyID),
		zap.Int64("ticket_id", ticketID),
		zap.Bool("nps_pending", closed.NPSPending))
	return closed, nil
}

func (m *Manager) assignProtocol(ctx context.Context, companyID, ticketID int64) error {
	var lastErr error
	for attempt := 1; attempt <= protocolAttempts; attempt++ {
		candidate, err := m.protocols.Next(ctx)
		if err != nil {
			return err
		}

		err = m.store.AssignProtocol(ctx, companyID, ticketID, candidate)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrProtocolTaken) {
			return err
		}

		lastErr = err
		utils.Zlog.Warn("Protocol candidate collided, retrying",
			zap.Int64("ticket_id", ticketID),
			zap.String("candidate", candidate),
			zap.Int("attempt", attempt))
	}
	return fmt.Errorf("protocol generation exhausted after %d attempts: %w", protocolAttempts, lastErr)
}

// SubmitNPS records a post-close satisfaction score while the capture window
// is open.
func (m *Manager) SubmitNPS(ctx context.Context, companyID, ticketID int64, score int) error {
	if score < 0 || score > 10 {
		return fmt.Errorf("nps score %d out of range 0-10", score)
	}
	return m.store.SetNPSScore(ctx, companyID, ticketID, score)
}

// SweepExpiredNPS clears npsPending on tickets whose capture window elapsed.
func (m *Manager) SweepExpiredNPS(ctx context.Context) (int64, error) {
	return m.store.ExpireNPSBefore(ctx, m.now().Add(-m.npsWindow))
}

// ArmPendingVariable records that a bot flow awaits a specific input on the
// ticket. The slot is single-valued: a second flow cannot start while one is
// pending. The deadline is captured now, so later integration config changes
// do not affect in-flight state.
func (m *Manager) ArmPendingVariable(ctx context.Context, t *core.Ticket, name string, integrationID int64, timeout time.Duration) error {
	return m.store.SetPendingVariable(ctx, t.CompanyID, t.ID, name, integrationID, m.now().Add(timeout))
}

// ConsumePendingVariable decides how the next inbound message on the ticket
// is interpreted. When a variable is pending and the deadline has not passed,
// it returns the variable name plus owning integration and clears the slot.
// An expired slot is cleared and the message falls back to ordinary routing.
func (m *Manager) ConsumePendingVariable(ctx context.Context, t *core.Ticket) (name string, integrationID int64, ok bool, err error) {
	if t.PendingVariable == nil {
		return "", 0, false, nil
	}

	if err := m.store.ClearPendingVariable(ctx, t.CompanyID, t.ID); err != nil {
		return "", 0, false, err
	}

	if t.PendingVarUntil != nil && m.now().After(*t.PendingVarUntil) {
		utils.Zlog.Info("Pending bot variable expired, falling back to human routing",
			zap.Int64("ticket_id", t.ID),
			zap.String("variable", *t.PendingVariable))
		return "", 0, false, nil
	}

	var intID int64
	if t.PendingVarIntID != nil {
		intID = *t.PendingVarIntID
	}
	return *t.PendingVariable, intID, true, nil
}

// Reassign moves a ticket to another queue. Explicit and overwriting.
func (m *Manager) Reassign(ctx context.Context, companyID, ticketID int64, queueID *int64) error {
	return m.store.AssignQueue(ctx, companyID, ticketID, queueID)
}
