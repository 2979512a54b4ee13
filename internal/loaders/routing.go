package loaders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zapdesk/zapdesk/internal/core"
)

// GetQueue loads a queue scoped to its tenant.
func (c *PostgresClient) GetQueue(ctx context.Context, companyID, queueID int64) (*core.Queue, error) {
	query := `SELECT id, company_id, name, color FROM queues WHERE company_id = $1 AND id = $2`

	var q core.Queue
	err := c.pool.QueryRow(ctx, query, companyID, queueID).Scan(&q.ID, &q.CompanyID, &q.Name, &q.Color)
	if err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get queue %d: %w", queueID, err)
	}
	return &q, nil
}

// GetIntegration loads an integration scoped to its tenant.
func (c *PostgresClient) GetIntegration(ctx context.Context, companyID, integrationID int64) (*core.Integration, error) {
	query := `
		SELECT id, company_id, "type", name, config, active
		FROM integrations
		WHERE company_id = $1 AND id = $2
	`

	it, err := scanIntegration(c.pool.QueryRow(ctx, query, companyID, integrationID))
	if err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get integration %d: %w", integrationID, err)
	}
	return it, nil
}

// ListActiveQueueIntegrations returns the integrations reachable from a queue.
// Routing only ever considers active integration<->queue links.
func (c *PostgresClient) ListActiveQueueIntegrations(ctx context.Context, companyID, queueID int64) ([]core.Integration, error) {
	query := `
		SELECT i.id, i.company_id, i."type", i.name, i.config, i.active
		FROM integrations i
		JOIN queue_integrations qi ON qi.integration_id = i.id
		WHERE i.company_id = $1 AND qi.queue_id = $2 AND qi.active AND i.active
		ORDER BY i.id
	`

	rows, err := c.pool.Query(ctx, query, companyID, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue integrations: %w", err)
	}
	defer rows.Close()

	var integrations []core.Integration
	for rows.Next() {
		it, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration row: %w", err)
		}
		integrations = append(integrations, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue integrations: %w", err)
	}
	return integrations, nil
}

func scanIntegration(row interface{ Scan(...any) error }) (*core.Integration, error) {
	var (
		it         core.Integration
		configJSON []byte
	)
	if err := row.Scan(&it.ID, &it.CompanyID, &it.Type, &it.Name, &configJSON, &it.Active); err != nil {
		return nil, err
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &it.Config); err != nil {
			return nil, fmt.Errorf("failed to parse config for integration %d: %w", it.ID, err)
		}
	}
	return &it, nil
}
