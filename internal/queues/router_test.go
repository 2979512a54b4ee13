package queues

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/zapdesk/internal/core"
)

type fakeQueueStore struct {
	queues   map[int64]*core.Queue
	assigned map[int64]*int64
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{
		queues:   make(map[int64]*core.Queue),
		assigned: make(map[int64]*int64),
	}
}

func (s *fakeQueueStore) AssignQueue(_ context.Context, companyID, ticketID int64, queueID *int64) error {
	s.assigned[ticketID] = queueID
	return nil
}

func (s *fakeQueueStore) GetQueue(_ context.Context, companyID, queueID int64) (*core.Queue, error) {
	q, ok := s.queues[queueID]
	if !ok || q.CompanyID != companyID {
		return nil, core.ErrNotFound
	}
	return q, nil
}

func TestRouteNewInheritsSessionDefault(t *testing.T) {
	store := newFakeQueueStore()
	store.queues[3] = &core.Queue{ID: 3, CompanyID: 1, Name: "Suporte"}
	r := NewRouter(store)

	defaultQueue := int64(3)
	session := &core.Session{ID: 7, CompanyID: 1, DefaultQueueID: &defaultQueue}
	ticket := &core.Ticket{ID: 10, CompanyID: 1}

	queueID, err := r.RouteNew(context.Background(), session, ticket)
	require.NoError(t, err)
	require.NotNil(t, queueID)
	assert.Equal(t, int64(3), *queueID)
	assert.Equal(t, int64(3), *store.assigned[10])
}

func TestRouteNewNoDefaultLeavesUnassigned(t *testing.T) {
	store := newFakeQueueStore()
	r := NewRouter(store)

	session := &core.Session{ID: 7, CompanyID: 1}
	ticket := &core.Ticket{ID: 10, CompanyID: 1}

	queueID, err := r.RouteNew(context.Background(), session, ticket)
	require.NoError(t, err)
	assert.Nil(t, queueID)
	_, assigned := store.assigned[10]
	assert.False(t, assigned)
}

func TestRouteNewStaleDefaultLeavesUnassigned(t *testing.T) {
	store := newFakeQueueStore()
	r := NewRouter(store)

	// Default points at a deleted queue.
	defaultQueue := int64(99)
	session := &core.Session{ID: 7, CompanyID: 1, DefaultQueueID: &defaultQueue}
	ticket := &core.Ticket{ID: 10, CompanyID: 1}

	queueID, err := r.RouteNew(context.Background(), session, ticket)
	require.NoError(t, err)
	assert.Nil(t, queueID)
}

func TestRouteNewCrossTenantDefaultLeavesUnassigned(t *testing.T) {
	store := newFakeQueueStore()
	store.queues[3] = &core.Queue{ID: 3, CompanyID: 2, Name: "Outro"}
	r := NewRouter(store)

	defaultQueue := int64(3)
	session := &core.Session{ID: 7, CompanyID: 1, DefaultQueueID: &defaultQueue}
	ticket := &core.Ticket{ID: 10, CompanyID: 1}

	queueID, err := r.RouteNew(context.Background(), session, ticket)
	require.NoError(t, err)
	assert.Nil(t, queueID)
}

func TestReassignOverwrites(t *testing.T) {
	store := newFakeQueueStore()
	r := NewRouter(store)

	target := int64(5)
	require.NoError(t, r.Reassign(context.Background(), 1, 10, &target))
	assert.Equal(t, int64(5), *store.assigned[10])

	require.NoError(t, r.Reassign(context.Background(), 1, 10, nil))
	assert.Nil(t, store.assigned[10])
}
