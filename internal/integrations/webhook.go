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

// WebhookBackend forwards events opaquely. Replies, if any, come back later
// through the hooks endpoint; the synchronous response body is ignored.
type WebhookBackend struct {
	integration core.Integration
	client      *http.Client
}

func NewWebhookBackend(integration core.Integration) Backend {
	return &WebhookBackend{
		integration: integration,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *WebhookBackend) Type() string { return core.IntegrationWebhook }

func (b *WebhookBackend) Deliver(ctx context.Context, p *Payload) (*Reply, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.integration.Config.URL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return &Reply{}, nil
}
