package core

import "time"

// EventKind classifies a normalized inbound event.
type EventKind string

const (
	KindText        EventKind = "text"
	KindMedia       EventKind = "media"
	KindReaction    EventKind = "reaction"
	KindButtonReply EventKind = "button-reply"
	KindListReply   EventKind = "list-reply"
	KindGroupText   EventKind = "group-text"
	KindGroupMedia  EventKind = "group-media"
)

// IsGroup reports whether the event originated in a group chat.
func (k EventKind) IsGroup() bool {
	return k == KindGroupText || k == KindGroupMedia
}

// AddressKind tags the two addressing forms WhatsApp uses for a party.
type AddressKind string

const (
	AddressPhone    AddressKind = "pn"
	AddressLinkedID AddressKind = "lid"
)

// Address is the tagged union of phone-number and linked-identifier
// addressing. All identity decisions go through this type instead of loose
// optional strings.
type Address struct {
	Kind  AddressKind
	Value string
}

func Phone(v string) Address    { return Address{Kind: AddressPhone, Value: v} }
func LinkedID(v string) Address { return Address{Kind: AddressLinkedID, Value: v} }

func (a Address) IsZero() bool { return a.Value == "" }

// SenderInfo is the provider-supplied sender descriptor. A party may be seen
// under a phone-number form, an opaque linked-identifier form, or both.
// Group events carry the participant as a sub-descriptor.
type SenderInfo struct {
	Phone       string
	LinkedID    string
	PushName    string
	Participant *SenderInfo
}

// Canonical returns the address preferred as the stable contact key:
// the phone-number form when present, the linked identifier otherwise.
func (s SenderInfo) Canonical() (Address, bool) {
	if s.Phone != "" {
		return Phone(s.Phone), true
	}
	if s.LinkedID != "" {
		return LinkedID(s.LinkedID), true
	}
	return Address{}, false
}

// FileInfo describes a media attachment on a message.
type FileInfo struct {
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Duration int    `json:"duration,omitempty"`
	IsPTT    bool   `json:"isPtt,omitempty"`
}

// GroupInfo describes the group context of a message.
type GroupInfo struct {
	GroupName       string `json:"groupName,omitempty"`
	ParticipantName string `json:"participantName,omitempty"`
	ParticipantID   string `json:"participantId,omitempty"`
	FromGroup       bool   `json:"isFromGroup"`
}

// InteractiveReply describes a button or list selection.
type InteractiveReply struct {
	ButtonID    string `json:"buttonId,omitempty"`
	ListID      string `json:"listId,omitempty"`
	Description string `json:"description,omitempty"`
}

// ReactionInfo targets an existing message by its external id.
type ReactionInfo struct {
	TargetMessageID string
	Emoji           string
}

// InboundEvent is the canonical representation every provider event is
// normalized into before it touches ticket state.
type InboundEvent struct {
	Provider      string
	Kind          EventKind
	MessageID     string
	Sender        SenderInfo
	FromMe        bool
	Body          string
	File          *FileInfo
	Group         *GroupInfo
	Reply         *InteractiveReply
	Reaction      *ReactionInfo
	QuickReply    bool
	Timestamp     time.Time
}

// Ticket lifecycle states.
const (
	StatusOpen         = "open"
	StatusPendingClose = "pending-close"
	StatusClosed       = "closed"
)

// Session is one connected WhatsApp identity per tenant.
type Session struct {
	ID             int64
	CompanyID      int64
	Name           string
	RealNumber     string
	Provider       string
	DefaultQueueID *int64
	ImportAllChats bool
	ImportFromDate *time.Time
	ImportToDate   *time.Time
}

// Contact is a resolved counterparty. The canonical key is stable; phone and
// linked-identifier aliases accumulate as they are observed. Contacts are
// never deleted.
type Contact struct {
	ID          int64
	CompanyID   int64
	Key         string
	DisplayName string
	PhoneNumber string
	LinkedID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ticket is the unit of conversation state between one contact and one
// session. SessionID is nullable: a ticket may outlive a disconnected session.
// Protocol is assigned exactly once, at close, and is globally unique.
type Ticket struct {
	ID              int64
	CompanyID       int64
	SessionID       *int64
	ContactID       int64
	ContactLabel    string
	QueueID         *int64
	Status          string
	LastMessage     string
	UnreadCount     int
	Protocol        *string
	NPSScore        *int
	NPSUserID       *int64
	NPSPending      bool
	PendingVariable *string
	PendingVarIntID *int64
	PendingVarUntil *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TicketMessage is one normalized message unit. Immutable after insert except
// for reaction aggregation. The pair (TicketID, MessageID) is unique whenever
// MessageID is non-nil; that pair is the deduplication contract.
type TicketMessage struct {
	ID             string
	TicketID       int64
	CompanyID      int64
	FromMe         bool
	SenderName     string
	Body           string
	MessageID      *string
	File           *FileInfo
	Group          *GroupInfo
	Reply          *InteractiveReply
	SenderPn       string
	SenderLid      string
	ParticipantLid string
	QuickReply     bool
	Timestamp      time.Time
	CreatedAt      time.Time
}

// MessageReaction is a (message, user, reaction) triple. A user may hold
// multiple distinct reactions on one message but never the same one twice.
type MessageReaction struct {
	MessageID string
	UserKey   string
	Emoji     string
	CreatedAt time.Time
}

// Queue is a routing bucket tickets are assigned to.
type Queue struct {
	ID        int64
	CompanyID int64
	Name      string
	Color     string
}

// Integration backend types.
const (
	IntegrationTypebot = "typebot"
	IntegrationN8N     = "n8n"
	IntegrationWebhook = "webhook"
)

// IntegrationConfig is the provider-specific configuration blob.
type IntegrationConfig struct {
	URL            string `json:"url"`
	Slug           string `json:"slug,omitempty"`
	ExpireKeyword  string `json:"expireKeyword,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
	Token          string `json:"token,omitempty"`
}

// Integration is a configured external automation backend.
type Integration struct {
	ID        int64
	CompanyID int64
	Type      string
	Name      string
	Config    IntegrationConfig
	Active    bool
}
