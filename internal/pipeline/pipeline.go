// Package pipeline wires normalization, identity, deduplication, ticket
// lifecycle, routing and integration dispatch into the inbound processing
// path. One event enters, at most one message row comes out, and every side
// effect happens in a defined order.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/dedup"
	"github.com/zapdesk/zapdesk/internal/identity"
	"github.com/zapdesk/zapdesk/internal/integrations"
	"github.com/zapdesk/zapdesk/internal/providers"
	"github.com/zapdesk/zapdesk/internal/queues"
	"github.com/zapdesk/zapdesk/internal/tickets"
	"github.com/zapdesk/zapdesk/internal/utils"
)

// Store is the direct persistence surface the pipeline needs beyond what the
// domain services already own.
type Store interface {
	GetSession(ctx context.Context, sessionID int64) (*core.Session, error)
	GetTicket(ctx context.Context, companyID, ticketID int64) (*core.Ticket, error)
	GetContact(ctx context.Context, companyID, contactID int64) (*core.Contact, error)
	GetMessageByExternalID(ctx context.Context, companyID int64, messageID string) (*core.TicketMessage, error)
	InsertReaction(ctx context.Context, messageRowID, userKey, emoji string) (bool, error)
	GetIntegration(ctx context.Context, companyID, integrationID int64) (*core.Integration, error)
}

// Sender delivers outbound content through the session gateway.
type Sender interface {
	Send(ctx context.Context, sessionID int64, to, content string) (string, error)
}

// Publisher pushes realtime events to connected operator clients. Optional.
type Publisher interface {
	Publish(companyID int64, event string, payload any)
}

// Options tune the async parts of the pipeline.
type Options struct {
	Workers          int
	QueueSize        int
	ReactionRetries  int
	ReactionInterval time.Duration
}

type dispatchJob struct {
	session       *core.Session
	contact       *core.Contact
	ticket        *core.Ticket
	payload       *integrations.Payload
	integrationID int64 // non-zero pins delivery to the flow that armed a variable
}

type Pipeline struct {
	registry   *providers.Registry
	identities *identity.Resolver
	tickets    *tickets.Manager
	queues     *queues.Router
	ledger     *dedup.Ledger
	dispatcher *integrations.Dispatcher
	store      Store
	sender     Sender
	publisher  Publisher

	locks     *keyedLocks
	reactions *reactionBuffer

	jobs    chan dispatchJob
	workers int
	wg      sync.WaitGroup
}

func New(
	registry *providers.Registry,
	identities *identity.Resolver,
	ticketMgr *tickets.Manager,
	router *queues.Router,
	ledger *dedup.Ledger,
	dispatcher *integrations.Dispatcher,
	store Store,
	sender Sender,
	publisher Publisher,
	opts Options,
) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 512
	}
	if opts.ReactionRetries <= 0 {
		opts.ReactionRetries = 3
	}
	if opts.ReactionInterval <= 0 {
		opts.ReactionInterval = 2 * time.Second
	}

	p := &Pipeline{
		registry:   registry,
		identities: identities,
		tickets:    ticketMgr,
		queues:     router,
		ledger:     ledger,
		dispatcher: dispatcher,
		store:      store,
		sender:     sender,
		publisher:  publisher,
		locks:      newKeyedLocks(),
		jobs:       make(chan dispatchJob, opts.QueueSize),
		workers:    opts.Workers,
	}
	p.reactions = newReactionBuffer(p.applyReaction, opts.ReactionRetries, opts.ReactionInterval)
	return p
}

// Start launches the dispatch workers and the reaction retry loop.
func (p *Pipeline) Start(ctx context.Context) {
	p.reactions.Start(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.runDispatch(ctx, job)
			}
		}()
	}
	utils.Zlog.Info("Pipeline started", zap.Int("dispatch_workers", p.workers))
}

// Stop drains the dispatch queue and waits for in-flight work.
func (p *Pipeline) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.reactions.Stop()
	utils.Zlog.Info("Pipeline stopped")
}

// HandleRawEvent is the webhook entry point: one raw provider event for one
// session. Unsupported event kinds are dropped with a warning, never surfaced
// as webhook errors.
func (p *Pipeline) HandleRawEvent(ctx context.Context, sessionID int64, raw json.RawMessage) error {
	session, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	adapter, err := p.registry.Lookup(session.Provider)
	if err != nil {
		return err
	}

	ev, err := adapter.Normalize(raw)
	if err != nil {
		if errors.Is(err, providers.ErrUnsupportedEvent) {
			utils.Zlog.Warn("Dropping unsupported event",
				zap.Int64("session_id", sessionID),
				zap.String("provider", session.Provider),
				zap.Error(err))
			return nil
		}
		return err
	}

	return p.process(ctx, session, ev)
}

func (p *Pipeline) process(ctx context.Context, session *core.Session, ev *core.InboundEvent) error {
	contact, err := p.identities.Resolve(ctx, session.CompanyID, ev.Sender)
	if err != nil {
		return err
	}

	if ev.Kind == core.KindReaction {
		p.reactions.Enqueue(pendingReaction{
			companyID: session.CompanyID,
			targetID:  ev.Reaction.TargetMessageID,
			userKey:   contact.Key,
			emoji:     ev.Reaction.Emoji,
		})
		return nil
	}

	release := p.locks.Acquire(conversationKey(session.ID, contact.ID))
	ticket, created, err := p.resolveUnderLock(ctx, session, contact, ev)
	if err != nil {
		release()
		return err
	}
	if ticket == nil {
		// Duplicate delivery, already persisted.
		release()
		return nil
	}

	varName, pinnedID, awaiting, err := p.consumePending(ctx, ticket, ev)
	release()
	if err != nil {
		return err
	}

	p.publish(session.CompanyID, "ticket:message", map[string]any{
		"ticketId":  ticket.ID,
		"contactId": contact.ID,
		"body":      ev.Body,
		"fromMe":    ev.FromMe,
		"kind":      ev.Kind,
		"created":   created,
	})

	if ev.FromMe || ev.Kind.IsGroup() {
		return nil
	}

	if awaiting && p.expireRequested(ctx, session.CompanyID, pinnedID, ev.Body) {
		utils.Zlog.Info("Bot flow cancelled by expire keyword",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("integration_id", pinnedID))
		p.fallbackToHuman(ctx, session, ticket)
		return nil
	}

	payload := &integrations.Payload{
		TicketID: ticket.ID,
		Contact:  contactAddress(contact),
		Content:  ev.Body,
	}
	if awaiting {
		payload.Variables = map[string]string{varName: ev.Body}
	}

	p.enqueue(dispatchJob{
		session:       session,
		contact:       contact,
		ticket:        ticket,
		payload:       payload,
		integrationID: pinnedID,
	})
	return nil
}

// resolveUnderLock runs the serialized section: ticket resolution, the dedup
// admit and the bookkeeping that must only follow an accepted message.
// Returns (nil, false, nil) for duplicates.
func (p *Pipeline) resolveUnderLock(ctx context.Context, session *core.Session, contact *core.Contact, ev *core.InboundEvent) (*core.Ticket, bool, error) {
	ticket, created, err := p.tickets.Resolve(ctx, session, contact)
	if err != nil {
		return nil, false, err
	}

	if created {
		queueID, err := p.queues.RouteNew(ctx, session, ticket)
		if err != nil {
			return nil, false, err
		}
		ticket.QueueID = queueID
	}

	msg := buildMessage(session, contact, ticket, ev)
	outcome, err := p.ledger.Admit(ctx, msg)
	if err != nil {
		return nil, false, err
	}
	if outcome == dedup.Duplicate {
		utils.Zlog.Debug("Duplicate delivery ignored",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("message_id", ev.MessageID))
		return nil, false, nil
	}

	if ev.FromMe {
		err = p.tickets.RecordOutbound(ctx, ticket, ev.Body, ev.Timestamp)
	} else {
		err = p.tickets.RecordInbound(ctx, ticket, ev.Body, ev.Timestamp)
	}
	if err != nil {
		return nil, false, err
	}

	return ticket, created, nil
}

// consumePending checks whether a bot flow is waiting for this message as a
// variable answer. Only plain inbound customer messages qualify.
func (p *Pipeline) consumePending(ctx context.Context, ticket *core.Ticket, ev *core.InboundEvent) (string, int64, bool, error) {
	if ev.FromMe || ev.Kind.IsGroup() {
		return "", 0, false, nil
	}
	return p.tickets.ConsumePendingVariable(ctx, ticket)
}

// expireRequested reports whether the message is the configured cancel
// keyword of the integration that was awaiting a variable. The slot is
// already cleared by then; the ticket goes to human routing instead of the
// flow.
func (p *Pipeline) expireRequested(ctx context.Context, companyID, integrationID int64, body string) bool {
	if integrationID == 0 {
		return false
	}
	it, err := p.store.GetIntegration(ctx, companyID, integrationID)
	if err != nil || it.Config.ExpireKeyword == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(body), it.Config.ExpireKeyword)
}

func (p *Pipeline) enqueue(job dispatchJob) {
	select {
	case p.jobs <- job:
	default:
		utils.Zlog.Warn("Dispatch queue full, handing ticket to human routing",
			zap.Int64("ticket_id", job.ticket.ID))
		p.fallbackToHuman(context.Background(), job.session, job.ticket)
	}
}

func (p *Pipeline) runDispatch(ctx context.Context, job dispatchJob) {
	var results []integrations.Result

	if job.integrationID != 0 {
		res, err := p.dispatcher.DispatchTo(ctx, job.session.CompanyID, job.integrationID, job.payload)
		if err != nil {
			utils.Zlog.Error("Pinned integration lookup failed",
				zap.Int64("ticket_id", job.ticket.ID),
				zap.Int64("integration_id", job.integrationID),
				zap.Error(err))
			p.fallbackToHuman(ctx, job.session, job.ticket)
			return
		}
		results = []integrations.Result{res}
	} else {
		var err error
		results, err = p.dispatcher.Dispatch(ctx, job.ticket, job.payload)
		if err != nil {
			utils.Zlog.Error("Integration dispatch failed",
				zap.Int64("ticket_id", job.ticket.ID),
				zap.Error(err))
			return
		}
	}

	for _, res := range results {
		p.applyResult(ctx, job.session, job.contact, job.ticket, res)
	}
}

// applyResult turns one delivery outcome into its consequences: a customer
// reply, an armed variable wait, or the human-queue fallback.
func (p *Pipeline) applyResult(ctx context.Context, session *core.Session, contact *core.Contact, ticket *core.Ticket, res integrations.Result) {
	if res.Exhausted {
		utils.Zlog.Warn("Integration unavailable, handing ticket to human routing",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("integration_id", res.Integration.ID),
			zap.Error(res.Err))
		p.fallbackToHuman(ctx, session, ticket)
		return
	}
	if res.Reply == nil {
		return
	}

	if res.Reply.Content != "" {
		if err := p.sendReply(ctx, session, contact, ticket, res.Integration.Name, res.Reply.Content); err != nil {
			utils.Zlog.Error("Failed to deliver integration reply",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}

	if res.Reply.PendingVariable != "" {
		// Replies arriving over the hooks surface or from n8n carry no
		// timeout; a zero window would expire the slot at arm time.
		timeout := res.Reply.VariableTimeout
		if timeout <= 0 {
			timeout = integrations.DefaultVariableTimeout
			if res.Integration.Config.TimeoutSeconds > 0 {
				timeout = time.Duration(res.Integration.Config.TimeoutSeconds) * time.Second
			}
		}
		err := p.tickets.ArmPendingVariable(ctx, ticket, res.Reply.PendingVariable, res.Integration.ID, timeout)
		if err != nil {
			if errors.Is(err, core.ErrPendingVariableSet) {
				utils.Zlog.Warn("Pending variable already armed, ignoring second flow",
					zap.Int64("ticket_id", ticket.ID),
					zap.String("variable", res.Reply.PendingVariable))
				return
			}
			utils.Zlog.Error("Failed to arm pending variable",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}
}

// sendReply pushes bot content to the customer and records it as an outbound
// message on the ticket, deduplicated under the gateway-assigned id.
func (p *Pipeline) sendReply(ctx context.Context, session *core.Session, contact *core.Contact, ticket *core.Ticket, senderName, content string) error {
	if ticket.SessionID == nil {
		return fmt.Errorf("ticket %d has no session to send through", ticket.ID)
	}

	messageID, err := p.sender.Send(ctx, *ticket.SessionID, contactAddress(contact), content)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	msg := &core.TicketMessage{
		ID:         uuid.Must(uuid.NewV7()).String(),
		TicketID:   ticket.ID,
		CompanyID:  ticket.CompanyID,
		FromMe:     true,
		SenderName: senderName,
		Body:       content,
		MessageID:  &messageID,
		Timestamp:  now,
	}
	if _, err := p.ledger.Admit(ctx, msg); err != nil {
		return err
	}
	if err := p.tickets.RecordOutbound(ctx, ticket, content, now); err != nil {
		return err
	}

	p.publish(ticket.CompanyID, "ticket:message", map[string]any{
		"ticketId": ticket.ID,
		"body":     content,
		"fromMe":   true,
	})
	return nil
}

// HandleBackendReply lets asynchronous integrations (typebot webhooks, n8n
// callbacks) answer a ticket outside the original dispatch cycle.
func (p *Pipeline) HandleBackendReply(ctx context.Context, companyID, ticketID, integrationID int64, reply *integrations.Reply) error {
	ticket, err := p.store.GetTicket(ctx, companyID, ticketID)
	if err != nil {
		return err
	}
	contact, err := p.store.GetContact(ctx, companyID, ticket.ContactID)
	if err != nil {
		return err
	}
	if ticket.SessionID == nil {
		return fmt.Errorf("ticket %d has no session to send through", ticketID)
	}
	session, err := p.store.GetSession(ctx, *ticket.SessionID)
	if err != nil {
		return err
	}

	integration := core.Integration{ID: integrationID, Name: "bot"}
	if it, err := p.store.GetIntegration(ctx, companyID, integrationID); err == nil {
		integration = *it
	}

	p.applyResult(ctx, session, contact, ticket, integrations.Result{
		Integration: integration,
		Reply:       reply,
	})
	return nil
}

// fallbackToHuman reroutes a ticket to the session's default queue so an
// operator picks it up. Integration unavailability must never strand a
// customer message.
func (p *Pipeline) fallbackToHuman(ctx context.Context, session *core.Session, ticket *core.Ticket) {
	if session.DefaultQueueID == nil {
		p.publish(session.CompanyID, "ticket:attention", map[string]any{"ticketId": ticket.ID})
		return
	}
	if ticket.QueueID != nil && *ticket.QueueID == *session.DefaultQueueID {
		p.publish(session.CompanyID, "ticket:attention", map[string]any{"ticketId": ticket.ID})
		return
	}

	if err := p.queues.Reassign(ctx, session.CompanyID, ticket.ID, session.DefaultQueueID); err != nil {
		utils.Zlog.Error("Failed to reroute ticket to default queue",
			zap.Int64("ticket_id", ticket.ID),
			zap.Error(err))
		return
	}
	p.publish(session.CompanyID, "ticket:attention", map[string]any{
		"ticketId": ticket.ID,
		"queueId":  *session.DefaultQueueID,
	})
}

func (p *Pipeline) applyReaction(ctx context.Context, r pendingReaction) (bool, error) {
	msg, err := p.store.GetMessageByExternalID(ctx, r.companyID, r.targetID)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}
	if _, err := p.store.InsertReaction(ctx, msg.ID, r.userKey, r.emoji); err != nil {
		return false, err
	}
	p.publish(r.companyID, "message:reaction", map[string]any{
		"messageId": msg.ID,
		"userKey":   r.userKey,
		"reaction":  r.emoji,
	})
	return true, nil
}

func (p *Pipeline) publish(companyID int64, event string, payload any) {
	if p.publisher == nil {
		return
	}
	p.publisher.Publish(companyID, event, payload)
}

func buildMessage(session *core.Session, contact *core.Contact, ticket *core.Ticket, ev *core.InboundEvent) *core.TicketMessage {
	senderName := contact.DisplayName
	if ev.Group != nil && ev.Group.ParticipantName != "" {
		senderName = ev.Group.ParticipantName
	}
	if ev.FromMe {
		senderName = session.Name
	}

	var messageID *string
	if ev.MessageID != "" {
		id := ev.MessageID
		messageID = &id
	}

	var participantLid string
	if ev.Kind.IsGroup() {
		participantLid = ev.Sender.LinkedID
	}

	return &core.TicketMessage{
		ID:             uuid.Must(uuid.NewV7()).String(),
		TicketID:       ticket.ID,
		CompanyID:      ticket.CompanyID,
		FromMe:         ev.FromMe,
		SenderName:     senderName,
		Body:           ev.Body,
		MessageID:      messageID,
		File:           ev.File,
		Group:          ev.Group,
		Reply:          ev.Reply,
		SenderPn:       ev.Sender.Phone,
		SenderLid:      ev.Sender.LinkedID,
		ParticipantLid: participantLid,
		QuickReply:     ev.QuickReply,
		Timestamp:      ev.Timestamp,
	}
}

// contactAddress is the form outbound sends address the contact by: the phone
// when known, the linked identifier otherwise.
func contactAddress(c *core.Contact) string {
	if c.PhoneNumber != "" {
		return c.PhoneNumber
	}
	return c.LinkedID
}

func conversationKey(sessionID, contactID int64) string {
	return fmt.Sprintf("%d:%d", sessionID, contactID)
}
