package integrations

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Store lists the automation backends reachable from a queue.
type Store interface {
	ListActiveQueueIntegrations(ctx context.Context, companyID, queueID int64) ([]core.Integration, error)
	GetIntegration(ctx context.Context, companyID, integrationID int64) (*core.Integration, error)
}

// Result reports the outcome of delivering one event to one integration.
// Exhausted results are what the pipeline turns into human-queue fallback:
// integration unavailability must never drop a customer message.
type Result struct {
	Integration core.Integration
	Reply       *Reply
	Err         error
	Exhausted   bool
}

// Dispatcher forwards ticket events to configured backends with bounded
// backoff retry. It holds no ticket state and takes no locks: callers invoke
// it only after ticket/message state is committed.
type Dispatcher struct {
	store       Store
	factories   map[string]BackendFactory
	maxAttempts int
	backoff     time.Duration
}

func NewDispatcher(store Store, maxAttempts int, backoff time.Duration) *Dispatcher {
	return &Dispatcher{
		store: store,
		factories: map[string]BackendFactory{
			core.IntegrationTypebot: NewTypebotBackend,
			core.IntegrationN8N:     NewN8NBackend,
			core.IntegrationWebhook: NewWebhookBackend,
		},
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// RegisterFactory overrides the backend constructor for a type. Used by tests.
func (d *Dispatcher) RegisterFactory(typ string, f BackendFactory) {
	d.factories[typ] = f
}

// Dispatch delivers the payload to every active integration linked to the
// ticket's queue.
func (d *Dispatcher) Dispatch(ctx context.Context, t *core.Ticket, p *Payload) ([]Result, error) {
	if t.QueueID == nil {
		return nil, nil
	}

	targets, err := d.store.ListActiveQueueIntegrations(ctx, t.CompanyID, *t.QueueID)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(targets))
	for _, integration := range targets {
		results = append(results, d.deliver(ctx, integration, p))
	}
	return results, nil
}

// DispatchTo delivers to one specific integration, bypassing queue links.
// Used when a pending bot variable pins the ticket to the flow that armed it.
func (d *Dispatcher) DispatchTo(ctx context.Context, companyID, integrationID int64, p *Payload) (Result, error) {
	integration, err := d.store.GetIntegration(ctx, companyID, integrationID)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, *integration, p), nil
}

func (d *Dispatcher) deliver(ctx context.Context, integration core.Integration, p *Payload) Result {
	factory, ok := d.factories[integration.Type]
	if !ok {
		utils.Zlog.Warn("No backend for integration type",
			zap.String("type", integration.Type),
			zap.Int64("integration_id", integration.ID))
		return Result{Integration: integration, Exhausted: true}
	}

	backend := factory(integration)

	var lastErr error
	delay := d.backoff
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		reply, err := backend.Deliver(ctx, p)
		if err == nil {
			return Result{Integration: integration, Reply: reply}
		}
		lastErr = err

		utils.Zlog.Warn("Integration delivery failed",
			zap.Int64("integration_id", integration.ID),
			zap.String("type", integration.Type),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Result{Integration: integration, Err: ctx.Err(), Exhausted: true}
		case <-time.After(delay):
		}
		delay *= 2
	}

	return Result{Integration: integration, Err: lastErr, Exhausted: true}
}
