package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zapdesk/zapdesk/internal/core"
)

// N8NBackend posts ticket events to a generic workflow webhook. The workflow
// may answer synchronously with reply text.
type N8NBackend struct {
	integration core.Integration
	client      *http.Client
}

func NewN8NBackend(integration core.Integration) Backend {
	return &N8NBackend{
		integration: integration,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *N8NBackend) Type() string { return core.IntegrationN8N }

func (b *N8NBackend) Deliver(ctx context.Context, p *Payload) (*Reply, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal n8n payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.integration.Config.URL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create n8n request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("n8n request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("n8n returned status %d", resp.StatusCode)
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		// Workflows frequently answer with an empty body; that is a
		// successful fire-and-forget delivery.
		return &Reply{}, nil
	}
	return &reply, nil
}
