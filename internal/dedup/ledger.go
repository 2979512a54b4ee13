// Package dedup guarantees at-most-once persistence of a provider message id
// per ticket.
package dedup

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Outcome of an admit call. Duplicate is an expected result, not an error.
type Outcome int

const (
	Accepted Outcome = iota
	Duplicate
)

func (o Outcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "accepted"
}

// Store performs the atomic conditional insert backed by the partial unique
// index on (ticket_id, message_id). The constraint lives in storage, not in
// application memory: multiple worker processes may run concurrently.
type Store interface {
	InsertTicketMessage(ctx context.Context, m *core.TicketMessage) (bool, error)
}

// Cache is an optional advisory fast path. Errors and misses fall through to
// the constraint.
type Cache interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
}

type Ledger struct {
	store Store
	cache Cache
	ttl   time.Duration
}

func NewLedger(store Store, cache Cache, ttl time.Duration) *Ledger {
	return &Ledger{store: store, cache: cache, ttl: ttl}
}

// Admit persists the message at most once. Deduplication happens here, BEFORE
// any ticket mutation: callers must not touch unread counts or lifecycle
// state until Admit reports Accepted. Events without an external message id
// cannot be deduplicated and are always accepted; that gap is logged so
// operators know it exists.
func (l *Ledger) Admit(ctx context.Context, m *core.TicketMessage) (Outcome, error) {
	if m.MessageID == nil || *m.MessageID == "" {
		utils.Zlog.Warn("Admitting message without external id: redelivery cannot be deduplicated",
			zap.Int64("ticket_id", m.TicketID),
			zap.Int64("company_id", m.CompanyID))
		m.MessageID = nil
		if _, err := l.store.InsertTicketMessage(ctx, m); err != nil {
			return Accepted, err
		}
		return Accepted, nil
	}

	key := cacheKey(m.TicketID, *m.MessageID)
	if l.cache != nil {
		if seen, err := l.cache.Seen(ctx, key); err == nil && seen {
			return Duplicate, nil
		}
	}

	inserted, err := l.store.InsertTicketMessage(ctx, m)
	if err != nil {
		return Accepted, err
	}
	if !inserted {
		return Duplicate, nil
	}

	if l.cache != nil {
		if err := l.cache.MarkSeen(ctx, key, l.ttl); err != nil {
			utils.Zlog.Debug("Dedup cache mark failed", zap.String("key", key), zap.Error(err))
		}
	}
	return Accepted, nil
}

func cacheKey(ticketID int64, messageID string) string {
	// Ticket-scoped: the uniqueness contract is (ticketId, messageId).
	return strconv.FormatInt(ticketID, 10) + ":" + messageID
}
