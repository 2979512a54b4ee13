package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/zapdesk/internal/core"
)

type fakeMessageStore struct {
	seen    map[string]bool
	inserts int
	err     error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{seen: make(map[string]bool)}
}

func (s *fakeMessageStore) InsertTicketMessage(_ context.Context, m *core.TicketMessage) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.inserts++
	if m.MessageID == nil {
		return true, nil
	}
	key := cacheKey(m.TicketID, *m.MessageID)
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

type fakeCache struct {
	entries map[string]bool
	marks   int
	err     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]bool)}
}

func (c *fakeCache) Seen(_ context.Context, key string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.entries[key], nil
}

func (c *fakeCache) MarkSeen(_ context.Context, key string, _ time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.entries[key] = true
	c.marks++
	return nil
}

func msg(ticketID int64, messageID string) *core.TicketMessage {
	m := &core.TicketMessage{ID: "row-" + messageID, TicketID: ticketID, CompanyID: 1, Body: "oi"}
	if messageID != "" {
		m.MessageID = &messageID
	}
	return m
}

func TestAdmitThenDuplicate(t *testing.T) {
	l := NewLedger(newFakeMessageStore(), nil, time.Hour)

	out, err := l.Admit(context.Background(), msg(10, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, out)

	out, err = l.Admit(context.Background(), msg(10, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)
}

func TestAdmitSameIDDifferentTickets(t *testing.T) {
	l := NewLedger(newFakeMessageStore(), nil, time.Hour)

	out, err := l.Admit(context.Background(), msg(10, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, out)

	// Uniqueness is scoped per ticket, not global.
	out, err = l.Admit(context.Background(), msg(11, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, out)
}

func TestAdmitWithoutMessageIDAlwaysAccepts(t *testing.T) {
	store := newFakeMessageStore()
	l := NewLedger(store, nil, time.Hour)

	for i := 0; i < 3; i++ {
		out, err := l.Admit(context.Background(), msg(10, ""))
		require.NoError(t, err)
		assert.Equal(t, Accepted, out)
	}
	assert.Equal(t, 3, store.inserts)
}

func TestAdmitCacheFastPathSkipsStore(t *testing.T) {
	store := newFakeMessageStore()
	cache := newFakeCache()
	l := NewLedger(store, cache, time.Hour)

	out, err := l.Admit(context.Background(), msg(10, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, out)
	assert.Equal(t, 1, cache.marks)

	out, err = l.Admit(context.Background(), msg(10, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)
	assert.Equal(t, 1, store.inserts, "cache hit must not reach the store")
}

func TestAdmitCacheFailureFallsThroughToStore(t *testing.T) {
	store := newFakeMessageStore()
	cache := newFakeCache()
	cache.err = errors.New("redis down")
	l := NewLedger(store, cache, time.Hour)

	out, err := l.Admit(context.Background(), msg(10, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, Accepted, out)

	out, err = l.Admit(context.Background(), msg(10, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out, "store constraint still catches the redelivery")
}

func TestAdmitStoreError(t *testing.T) {
	store := newFakeMessageStore()
	store.err = errors.New("connection reset")
	l := NewLedger(store, nil, time.Hour)

	_, err := l.Admit(context.Background(), msg(10, "abc123"))
	assert.Error(t, err)
}
