package loaders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zapdesk/zapdesk/internal/core"
)

// InsertTicketMessage is the admit operation of the deduplication ledger: an
// atomic conditional insert against the partial unique index on
// (ticket_id, message_id) WHERE message_id IS NOT NULL. Returns false when
// the row already exists, meaning a concurrent or redelivered copy won.
// Messages without an external id cannot be deduplicated and always insert.
func (c *PostgresClient) InsertTicketMessage(ctx context.Context, m *core.TicketMessage) (bool, error) {
	fileJSON, err := marshalOrNil(m.File)
	if err != nil {
		return false, fmt.Errorf("failed to marshal file descriptor: %w", err)
	}
	groupJSON, err := marshalOrNil(m.Group)
	if err != nil {
		return false, fmt.Errorf("failed to marshal group descriptor: %w", err)
	}
	replyJSON, err := marshalOrNil(m.Reply)
	if err != nil {
		return false, fmt.Errorf("failed to marshal interactive descriptor: %w", err)
	}

	query := `
		INSERT INTO ticket_messages (
			id, ticket_id, company_id, from_me, sender_name, body, message_id,
			file_info, group_info, interactive_reply, sender_pn, sender_lid,
			participant_lid, is_quick_reply, message_timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (ticket_id, message_id) WHERE message_id IS NOT NULL DO NOTHING
	`

	tag, err := c.pool.Exec(ctx, query,
		m.ID, m.TicketID, m.CompanyID, m.FromMe, m.SenderName, m.Body, m.MessageID,
		fileJSON, groupJSON, replyJSON, m.SenderPn, m.SenderLid,
		m.ParticipantLid, m.QuickReply, m.Timestamp.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert ticket message: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetMessageByExternalID resolves a provider message id to the persisted
// message row, scoped to the tenant. Returns (nil, nil) when unknown; the
// caller decides whether to buffer or discard.
func (c *PostgresClient) GetMessageByExternalID(ctx context.Context, companyID int64, messageID string) (*core.TicketMessage, error) {
	query := `
		SELECT id, ticket_id, company_id, from_me, sender_name, body, message_id,
		       sender_pn, sender_lid, participant_lid, is_quick_reply, message_timestamp, created_at
		FROM ticket_messages
		WHERE company_id = $1 AND message_id = $2
		LIMIT 1
	`

	var m core.TicketMessage
	err := c.pool.QueryRow(ctx, query, companyID, messageID).Scan(
		&m.ID, &m.TicketID, &m.CompanyID, &m.FromMe, &m.SenderName, &m.Body, &m.MessageID,
		&m.SenderPn, &m.SenderLid, &m.ParticipantLid, &m.QuickReply, &m.Timestamp, &m.CreatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message by external id: %w", err)
	}
	return &m, nil
}

// InsertReaction records a (message, user, reaction) triple. The same user
// repeating the same reaction is a no-op; returns false in that case.
func (c *PostgresClient) InsertReaction(ctx context.Context, messageRowID, userKey, emoji string) (bool, error) {
	query := `
		INSERT INTO message_reactions (message_id, user_key, reaction, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (message_id, user_key, reaction) DO NOTHING
	`

	tag, err := c.pool.Exec(ctx, query, messageRowID, userKey, emoji)
	if err != nil {
		return false, fmt.Errorf("failed to insert reaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func marshalOrNil(v any) (any, error) {
	switch val := v.(type) {
	case *core.FileInfo:
		if val == nil {
			return nil, nil
		}
	case *core.GroupInfo:
		if val == nil {
			return nil, nil
		}
	case *core.InteractiveReply:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
