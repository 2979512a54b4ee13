package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/zapdesk/internal/core"
)

type fakeContactStore struct {
	contacts map[int64]*core.Contact
	nextID   int64

	findErrs int // fail the first N lookups
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{contacts: make(map[int64]*core.Contact), nextID: 1}
}

func (s *fakeContactStore) FindContactByAlias(_ context.Context, companyID int64, phone, lid string) (*core.Contact, error) {
	if s.findErrs > 0 {
		s.findErrs--
		return nil, errors.New("connection reset")
	}
	for _, ct := range s.contacts {
		if ct.CompanyID != companyID {
			continue
		}
		if (phone != "" && (ct.PhoneNumber == phone || ct.Key == phone)) ||
			(lid != "" && (ct.LinkedID == lid || ct.Key == lid)) {
			return ct, nil
		}
	}
	return nil, nil
}

func (s *fakeContactStore) CreateContact(_ context.Context, ct *core.Contact) (*core.Contact, error) {
	created := *ct
	created.ID = s.nextID
	s.nextID++
	s.contacts[created.ID] = &created
	return &created, nil
}

func (s *fakeContactStore) UpdateContactAliases(_ context.Context, contactID int64, name, phone, lid string) (*core.Contact, error) {
	ct, ok := s.contacts[contactID]
	if !ok {
		return nil, errors.New("no such contact")
	}
	if name != "" {
		ct.DisplayName = name
	}
	if ct.PhoneNumber == "" {
		ct.PhoneNumber = phone
	}
	if ct.LinkedID == "" {
		ct.LinkedID = lid
	}
	return ct, nil
}

func TestResolveCreatesContact(t *testing.T) {
	store := newFakeContactStore()
	r := NewResolver(store)

	ct, err := r.Resolve(context.Background(), 1, core.SenderInfo{Phone: "5511999999999", PushName: "Maria"})
	require.NoError(t, err)

	assert.Equal(t, "5511999999999", ct.Key)
	assert.Equal(t, "5511999999999", ct.PhoneNumber)
	assert.Equal(t, "Maria", ct.DisplayName)
	assert.Len(t, store.contacts, 1)
}

func TestResolveKeyFallsBackToLinkedID(t *testing.T) {
	r := NewResolver(newFakeContactStore())

	ct, err := r.Resolve(context.Background(), 1, core.SenderInfo{LinkedID: "123456789012345"})
	require.NoError(t, err)

	assert.Equal(t, "123456789012345", ct.Key)
	assert.Empty(t, ct.PhoneNumber)
}

func TestResolveMergesNewAliasOntoExisting(t *testing.T) {
	store := newFakeContactStore()
	r := NewResolver(store)

	first, err := r.Resolve(context.Background(), 1, core.SenderInfo{Phone: "5511999999999"})
	require.NoError(t, err)

	// Same party now seen under both forms: no duplicate, lid filled in.
	second, err := r.Resolve(context.Background(), 1, core.SenderInfo{
		Phone:    "5511999999999",
		LinkedID: "123456789012345",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "123456789012345", second.LinkedID)
	assert.Len(t, store.contacts, 1)

	// And again via the lid only.
	third, err := r.Resolve(context.Background(), 1, core.SenderInfo{LinkedID: "123456789012345"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Len(t, store.contacts, 1)
}

func TestResolveDoesNotOverwriteExistingAliases(t *testing.T) {
	store := newFakeContactStore()
	r := NewResolver(store)

	_, err := r.Resolve(context.Background(), 1, core.SenderInfo{
		Phone:    "5511999999999",
		LinkedID: "123456789012345",
	})
	require.NoError(t, err)

	ct, err := r.Resolve(context.Background(), 1, core.SenderInfo{
		Phone:    "5511999999999",
		LinkedID: "999000000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "123456789012345", ct.LinkedID)
}

func TestResolveTenantIsolation(t *testing.T) {
	store := newFakeContactStore()
	r := NewResolver(store)

	a, err := r.Resolve(context.Background(), 1, core.SenderInfo{Phone: "5511999999999"})
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), 2, core.SenderInfo{Phone: "5511999999999"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, store.contacts, 2)
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	store := newFakeContactStore()
	store.findErrs = 2

	r := NewResolver(store)
	r.retryDelay = time.Millisecond

	ct, err := r.Resolve(context.Background(), 1, core.SenderInfo{Phone: "5511999999999"})
	require.NoError(t, err)
	assert.NotNil(t, ct)
}

func TestResolveGivesUpAfterMaxAttempts(t *testing.T) {
	store := newFakeContactStore()
	store.findErrs = 10

	r := NewResolver(store)
	r.retryDelay = time.Millisecond

	_, err := r.Resolve(context.Background(), 1, core.SenderInfo{Phone: "5511999999999"})
	assert.Error(t, err)
}

func TestResolveRejectsEmptySender(t *testing.T) {
	r := NewResolver(newFakeContactStore())

	_, err := r.Resolve(context.Background(), 1, core.SenderInfo{PushName: "ghost"})
	assert.Error(t, err)
}
