package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zapdesk/zapdesk/internal/core"
)

// DefaultVariableTimeout bounds how long a flow may wait on a named input
// when neither the reply nor the integration config sets a window.
const DefaultVariableTimeout = 5 * time.Minute

// TypebotBackend drives a conversational-flow engine. The flow may answer
// with text, and may declare that it now waits on a named input; the
// pipeline then treats the contact's next message as that variable's value.
type TypebotBackend struct {
	integration core.Integration
	client      *http.Client
}

func NewTypebotBackend(integration core.Integration) Backend {
	return &TypebotBackend{
		integration: integration,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *TypebotBackend) Type() string { return core.IntegrationTypebot }

type typebotResponse struct {
	Messages []struct {
		Content string `json:"content"`
	} `json:"messages"`
	Input *struct {
		Variable       string `json:"variable"`
		TimeoutSeconds int    `json:"timeoutSeconds"`
	} `json:"input,omitempty"`
}

func (b *TypebotBackend) Deliver(ctx context.Context, p *Payload) (*Reply, error) {
	cfg := b.integration.Config

	url := strings.TrimRight(cfg.URL, "/")
	if cfg.Slug != "" {
		url += "/api/v1/typebots/" + cfg.Slug + "/startChat"
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typebot payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create typebot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("typebot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("typebot returned status %d", resp.StatusCode)
	}

	var tr typebotResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode typebot response: %w", err)
	}

	reply := &Reply{}
	var parts []string
	for _, m := range tr.Messages {
		if m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	reply.Content = strings.Join(parts, "\n")

	if tr.Input != nil && tr.Input.Variable != "" {
		reply.PendingVariable = tr.Input.Variable
		timeout := DefaultVariableTimeout
		if tr.Input.TimeoutSeconds > 0 {
			timeout = time.Duration(tr.Input.TimeoutSeconds) * time.Second
		} else if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		reply.VariableTimeout = timeout
	}

	return reply, nil
}
