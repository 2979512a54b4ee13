// Package integrations bridges ticket events to external automation backends
// and brings their replies back into the pipeline.
package integrations

import (
	"context"
	"time"

	"github.com/zapdesk/zapdesk/internal/core"
)

// Payload is what a backend receives for one ticket event.
type Payload struct {
	TicketID  int64             `json:"ticketId"`
	Contact   string            `json:"contact"`
	Content   string            `json:"content"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Reply is a backend's answer to a delivered event.
type Reply struct {
	Content         string        `json:"content,omitempty"`
	PendingVariable string        `json:"pendingVariable,omitempty"`
	VariableTimeout time.Duration `json:"-"`
}

// Backend delivers one payload to an automation target.
type Backend interface {
	Type() string
	Deliver(ctx context.Context, p *Payload) (*Reply, error)
}

// BackendFactory builds a backend from an integration's configuration blob.
type BackendFactory func(integration core.Integration) Backend
