package loaders

import (
	"context"
	"fmt"
	"time"

	"github.com/zapdesk/zapdesk/internal/core"
)

const ticketColumns = `id, company_id, session_id, contact_id, contact_label, queue_id, status,
	last_message, unread_count, protocol, nps_score, nps_user_id, nps_pending,
	pending_variable, pending_var_integration_id, pending_var_until, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*core.Ticket, error) {
	var t core.Ticket
	err := row.Scan(
		&t.ID, &t.CompanyID, &t.SessionID, &t.ContactID, &t.ContactLabel, &t.QueueID, &t.Status,
		&t.LastMessage, &t.UnreadCount, &t.Protocol, &t.NPSScore, &t.NPSUserID, &t.NPSPending,
		&t.PendingVariable, &t.PendingVarIntID, &t.PendingVarUntil, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTicket loads a ticket scoped to its tenant.
func (c *PostgresClient) GetTicket(ctx context.Context, companyID, ticketID int64) (*core.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE company_id = $1 AND id = $2`

	t, err := scanTicket(c.pool.QueryRow(ctx, query, companyID, ticketID))
	if err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket %d: %w", ticketID, err)
	}
	return t, nil
}

// FindOpenTicket returns the contact's ticket still accumulating messages,
// or (nil, nil) when none exists.
func (c *PostgresClient) FindOpenTicket(ctx context.Context, companyID, contactID int64) (*core.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE company_id = $1 AND contact_id = $2 AND status IN ($3, $4)
		ORDER BY updated_at DESC
		LIMIT 1
	`

	t, err := scanTicket(c.pool.QueryRow(ctx, query, companyID, contactID, core.StatusOpen, core.StatusPendingClose))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open ticket: %w", err)
	}
	return t, nil
}

// FindLatestClosedTicket returns the most recently closed ticket for a
// contact, or (nil, nil) when the contact has none.
func (c *PostgresClient) FindLatestClosedTicket(ctx context.Context, companyID, contactID int64) (*core.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE company_id = $1 AND contact_id = $2 AND status = $3
		ORDER BY updated_at DESC
		LIMIT 1
	`

	t, err := scanTicket(c.pool.QueryRow(ctx, query, companyID, contactID, core.StatusClosed))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find closed ticket: %w", err)
	}
	return t, nil
}

// CreateTicket inserts a new open ticket.
func (c *PostgresClient) CreateTicket(ctx context.Context, t *core.Ticket) (*core.Ticket, error) {
	query := `
		INSERT INTO tickets (company_id, session_id, contact_id, contact_label, queue_id, status,
			last_message, unread_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
		RETURNING ` + ticketColumns + `
	`

	created, err := scanTicket(c.pool.QueryRow(ctx, query,
		t.CompanyID, t.SessionID, t.ContactID, t.ContactLabel, t.QueueID, core.StatusOpen, t.LastMessage))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	return created, nil
}

// ReopenTicket transitions a closed ticket back to open and clears any
// pending bot-flow wait. Protocol and NPS fields stay frozen.
func (c *PostgresClient) ReopenTicket(ctx context.Context, companyID, ticketID int64) (*core.Ticket, error) {
	query := `
		UPDATE tickets SET
			status = $3,
			pending_variable = NULL,
			pending_var_integration_id = NULL,
			pending_var_until = NULL,
			updated_at = NOW()
		WHERE company_id = $1 AND id = $2
		RETURNING ` + ticketColumns + `
	`

	t, err := scanTicket(c.pool.QueryRow(ctx, query, companyID, ticketID, core.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to reopen ticket %d: %w", ticketID, err)
	}
	return t, nil
}

// TouchTicketInbound records an inbound message on the ticket: unread count
// increments atomically in the database, never in application memory.
// Closed tickets no longer accumulate unreads.
func (c *PostgresClient) TouchTicketInbound(ctx context.Context, companyID, ticketID int64, lastMessage string, at time.Time) error {
	query := `
		UPDATE tickets SET
			unread_count = unread_count + 1,
			last_message = $3,
			updated_at = $4
		WHERE company_id = $1 AND id = $2 AND status <> $5
	`

	_, err := c.pool.Exec(ctx, query, companyID, ticketID, lastMessage, at.UTC(), core.StatusClosed)
	if err != nil {
		return fmt.Errorf("failed to touch ticket %d on inbound: %w", ticketID, err)
	}
	return nil
}

// TouchTicketOutbound records an outbound message: the conversation has been
// answered, so unreads reset.
func (c *PostgresClient) TouchTicketOutbound(ctx context.Context, companyID, ticketID int64, lastMessage string, at time.Time) error {
	query := `
		UPDATE tickets SET
			unread_count = 0,
			last_message = $3,
			updated_at = $4
		WHERE company_id = $1 AND id = $2
	`

	_, err := c.pool.Exec(ctx, query, companyID, ticketID, lastMessage, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to touch ticket %d on outbound: %w", ticketID, err)
	}
	return nil
}

// AssignProtocol stamps the close-time protocol. The WHERE protocol IS NULL
// guard makes assignment happen at most once per ticket; the unique index on
// protocol makes candidates globally unique. Collisions surface as
// core.ErrProtocolTaken so the caller can retry with a fresh candidate.
func (c *PostgresClient) AssignProtocol(ctx context.Context, companyID, ticketID int64, protocol string) error {
	query := `
		UPDATE tickets SET
			protocol = $3,
			status = $4,
			updated_at = NOW()
		WHERE company_id = $1 AND id = $2 AND protocol IS NULL
	`

	_, err := c.pool.Exec(ctx, query, companyID, ticketID, protocol, core.StatusPendingClose)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrProtocolTaken
		}
		return fmt.Errorf("failed to assign protocol to ticket %d: %w", ticketID, err)
	}
	return nil
}

// MarkPendingClose moves a ticket that already carries a protocol into
// pending-close (re-close after reopen).
func (c *PostgresClient) MarkPendingClose(ctx context.Context, companyID, ticketID int64) error {
	query := `UPDATE tickets SET status = $3, updated_at = NOW() WHERE company_id = $1 AND id = $2`

	_, err := c.pool.Exec(ctx, query, companyID, ticketID, core.StatusPendingClose)
	if err != nil {
		return fmt.Errorf("failed to mark ticket %d pending-close: %w", ticketID, err)
	}
	return nil
}

// MarkClosed finalizes the close and freezes NPS ownership.
func (c *PostgresClient) MarkClosed(ctx context.Context, companyID, ticketID int64, npsPending bool, npsUserID *int64) error {
	query := `
		UPDATE tickets SET
			status = $3,
			nps_pending = $4,
			nps_user_id = COALESCE(nps_user_id, $5),
			updated_at = NOW()
		WHERE company_id = $1 AND id = $2
	`

	_, err := c.pool.Exec(ctx, query, companyID, ticketID, core.StatusClosed, npsPending, npsUserID)
	if err != nil {
		return fmt.Errorf("failed to close ticket %d: %w", ticketID, err)
	}
	return nil
}

// SetNPSScore records the post-close satisfaction score while the ticket is
// still awaiting one.
func (c *PostgresClient) SetNPSScore(ctx context.Context, companyID, ticketID int64, score int) error {
	query := `
		UPDATE tickets SET
			nps_score = $3,
			nps_pending = FALSE,
			updated_at = NOW()
		WHERE company_id = $1 AND id = $2 AND nps_pending
	`

	tag, err := c.pool.Exec(ctx, query, companyID, ticketID, score)
	if err != nil {
		return fmt.Errorf("failed to set NPS score on ticket %d: %w", ticketID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ExpireNPSBefore clears the npsPending marker on tickets whose capture
// window has elapsed. Returns the number of tickets swept.
func (c *PostgresClient) ExpireNPSBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE tickets SET nps_pending = FALSE WHERE nps_pending AND updated_at < $1`

	tag, err := c.pool.Exec(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire NPS windows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetPendingVariable arms the single-valued pending bot-variable slot. The
// guard refuses a second flow while one is pending.
func (c *PostgresClient) SetPendingVariable(ctx context.Context, companyID, ticketID int64, name string, integrationID int64, until time.Time) error {
	query := `
		UPDATE tickets SET
			pending_variable = $3,
			pending_var_integration_id = $4,
			pending_var_until = $5,
			updated_at = NOW()
		WHERE company_id = $1 AND id = $2 AND pending_variable IS NULL
	`

	tag, err := c.pool.Exec(ctx, query, companyID, ticketID, name, integrationID, until.UTC())
	if err != nil {
		return fmt.Errorf("failed to set pending variable on ticket %d: %w", ticketID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrPendingVariableSet
	}
	return nil
}

// ClearPendingVariable disarms the pending bot-variable slot.
func (c *PostgresClient) ClearPendingVariable(ctx context.Context, companyID, ticketID int64) error {
	query := `
		UPDATE tickets SET
			pending_variable = NULL,
			pending_var_integration_id = NULL,
			pending_var_until = NULL,
			updated_at = NOW()
		WHERE company_id = $1 AND id = $2
	`

	_, err := c.pool.Exec(ctx, query, companyID, ticketID)
	if err != nil {
		return fmt.Errorf("failed to clear pending variable on ticket %d: %w", ticketID, err)
	}
	return nil
}

// AssignQueue reassigns a ticket; the new queue always overwrites.
func (c *PostgresClient) AssignQueue(ctx context.Context, companyID, ticketID int64, queueID *int64) error {
	query := `UPDATE tickets SET queue_id = $3, updated_at = NOW() WHERE company_id = $1 AND id = $2`

	_, err := c.pool.Exec(ctx, query, companyID, ticketID, queueID)
	if err != nil {
		return fmt.Errorf("failed to assign queue on ticket %d: %w", ticketID, err)
	}
	return nil
}

// NextProtocolSeq pulls the next value of the global protocol sequence.
func (c *PostgresClient) NextProtocolSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := c.pool.QueryRow(ctx, `SELECT nextval('ticket_protocol_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to fetch protocol sequence: %w", err)
	}
	return seq, nil
}
