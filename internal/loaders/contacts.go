package loaders

import (
	"context"
	"fmt"

	"github.com/zapdesk/zapdesk/internal/core"
)

const contactColumns = `id, company_id, contact_key, display_name, phone_number, linked_id, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*core.Contact, error) {
	var ct core.Contact
	err := row.Scan(
		&ct.ID, &ct.CompanyID, &ct.Key, &ct.DisplayName,
		&ct.PhoneNumber, &ct.LinkedID, &ct.CreatedAt, &ct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

// FindContactByAlias looks up a contact by any of its observed addressing
// forms. Returns (nil, nil) when no contact matches.
func (c *PostgresClient) FindContactByAlias(ctx context.Context, companyID int64, phone, lid string) (*core.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE company_id = $1
		  AND ((phone_number = $2 AND $2 <> '')
		    OR (linked_id = $3 AND $3 <> '')
		    OR (contact_key = $2 AND $2 <> '')
		    OR (contact_key = $3 AND $3 <> ''))
		LIMIT 1
	`

	ct, err := scanContact(c.pool.QueryRow(ctx, query, companyID, phone, lid))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find contact by alias: %w", err)
	}
	return ct, nil
}

// CreateContact inserts a new contact. A concurrent insert of the same key is
// resolved by falling back to the existing row.
func (c *PostgresClient) CreateContact(ctx context.Context, ct *core.Contact) (*core.Contact, error) {
	query := `
		INSERT INTO contacts (company_id, contact_key, display_name, phone_number, linked_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (company_id, contact_key) DO UPDATE SET
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), contacts.display_name),
			phone_number = COALESCE(NULLIF(contacts.phone_number, ''), EXCLUDED.phone_number),
			linked_id    = COALESCE(NULLIF(contacts.linked_id, ''), EXCLUDED.linked_id),
			updated_at   = NOW()
		RETURNING ` + contactColumns + `
	`

	created, err := scanContact(c.pool.QueryRow(ctx, query,
		ct.CompanyID, ct.Key, ct.DisplayName, ct.PhoneNumber, ct.LinkedID))
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return created, nil
}

// UpdateContactAliases merges newly observed aliases onto an existing contact.
// Existing non-empty aliases are kept; empty slots are filled.
func (c *PostgresClient) UpdateContactAliases(ctx context.Context, contactID int64, name, phone, lid string) (*core.Contact, error) {
	query := `
		UPDATE contacts SET
			display_name = COALESCE(NULLIF($2, ''), display_name),
			phone_number = COALESCE(NULLIF(phone_number, ''), NULLIF($3, '')),
			linked_id    = COALESCE(NULLIF(linked_id, ''), NULLIF($4, '')),
			updated_at   = NOW()
		WHERE id = $1
		RETURNING ` + contactColumns + `
	`

	ct, err := scanContact(c.pool.QueryRow(ctx, query, contactID, name, phone, lid))
	if err != nil {
		return nil, fmt.Errorf("failed to update contact aliases: %w", err)
	}
	return ct, nil
}

// GetContact loads a contact by id, scoped to the tenant.
func (c *PostgresClient) GetContact(ctx context.Context, companyID, contactID int64) (*core.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE company_id = $1 AND id = $2
	`

	ct, err := scanContact(c.pool.QueryRow(ctx, query, companyID, contactID))
	if err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contact %d: %w", contactID, err)
	}
	return ct, nil
}

// GetSession loads a session by id.
func (c *PostgresClient) GetSession(ctx context.Context, sessionID int64) (*core.Session, error) {
	query := `
		SELECT id, company_id, name, real_number, provider, default_queue_id,
		       import_all_chats, import_from_date, import_to_date
		FROM sessions
		WHERE id = $1
	`

	var s core.Session
	err := c.pool.QueryRow(ctx, query, sessionID).Scan(
		&s.ID, &s.CompanyID, &s.Name, &s.RealNumber, &s.Provider,
		&s.DefaultQueueID, &s.ImportAllChats, &s.ImportFromDate, &s.ImportToDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", sessionID, err)
	}
	return &s, nil
}
