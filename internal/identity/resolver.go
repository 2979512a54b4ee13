// Package identity normalizes the dual phone-number / linked-identifier
// addressing WhatsApp uses for a party into one stable contact key.
package identity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Store is the contact lookup/upsert surface the resolver needs.
type Store interface {
	FindContactByAlias(ctx context.Context, companyID int64, phone, lid string) (*core.Contact, error)
	CreateContact(ctx context.Context, ct *core.Contact) (*core.Contact, error)
	UpdateContactAliases(ctx context.Context, contactID int64, name, phone, lid string) (*core.Contact, error)
}

// Resolver maps a sender descriptor to a contact, merging aliases onto an
// existing contact when the same party is seen under a new addressing form.
// Pure transform plus a lookup/upsert; no network calls.
type Resolver struct {
	store       Store
	maxAttempts int
	retryDelay  time.Duration
}

func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:       store,
		maxAttempts: 3,
		retryDelay:  100 * time.Millisecond,
	}
}

// Resolve finds or creates the contact for a sender descriptor. For group
// events pass the participant sub-descriptor, not the group itself. Transient
// store failures are retried a bounded number of times before the event is
// given up on.
func (r *Resolver) Resolve(ctx context.Context, companyID int64, sender core.SenderInfo) (*core.Contact, error) {
	addr, ok := sender.Canonical()
	if !ok {
		return nil, fmt.Errorf("sender carries neither phone nor linked identifier")
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		contact, err := r.resolveOnce(ctx, companyID, addr, sender)
		if err == nil {
			return contact, nil
		}
		lastErr = err

		utils.Zlog.Warn("Contact resolution attempt failed",
			zap.Int64("company_id", companyID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	return nil, fmt.Errorf("contact resolution exhausted after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *Resolver) resolveOnce(ctx context.Context, companyID int64, addr core.Address, sender core.SenderInfo) (*core.Contact, error) {
	existing, err := r.store.FindContactByAlias(ctx, companyID, sender.Phone, sender.LinkedID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		// Same party seen again, possibly under a new addressing form:
		// merge aliases onto the existing contact, never duplicate.
		return r.store.UpdateContactAliases(ctx, existing.ID, sender.PushName, sender.Phone, sender.LinkedID)
	}

	return r.store.CreateContact(ctx, &core.Contact{
		CompanyID:   companyID,
		Key:         addr.Value,
		DisplayName: sender.PushName,
		PhoneNumber: sender.Phone,
		LinkedID:    sender.LinkedID,
	})
}
