// Package ws pushes ticket events to connected operator clients over
// websockets. Fan-out is tenant-scoped: a client only ever sees events for
// its own company.
package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/utils"
)

// Event is the wire format pushed to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set. Call in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			utils.Zlog.Debug("Websocket client connected",
				zap.Int64("company_id", c.companyID))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			utils.Zlog.Debug("Websocket client disconnected",
				zap.Int64("company_id", c.companyID))

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects every client and ends the run loop.
func (h *Hub) Stop() {
	close(h.done)
}

// Publish fans one event out to every client of the company. Slow clients are
// skipped rather than blocking the pipeline.
func (h *Hub) Publish(companyID int64, event string, payload any) {
	data, err := json.Marshal(Event{Type: event, Payload: payload})
	if err != nil {
		utils.Zlog.Error("Failed to marshal websocket event",
			zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.companyID != companyID {
			continue
		}
		select {
		case c.send <- data:
		default:
			utils.Zlog.Warn("Websocket client buffer full, skipping event",
				zap.Int64("company_id", companyID),
				zap.String("event", event))
		}
	}
}
