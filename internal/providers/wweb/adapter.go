// Package wweb normalizes events in the whatsapp-web.js client protocol
// shape.
package wweb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/providers"
)

const ProviderName = "wweb"

type Adapter struct{}

func NewAdapter() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return ProviderName }

// rawMessage mirrors a serialized whatsapp-web.js message, flattened by the
// session gateway (media fields hoisted out of mediaData).
type rawMessage struct {
	ID struct {
		Serialized string `json:"_serialized"`
	} `json:"id"`
	From       string `json:"from"`
	Author     string `json:"author,omitempty"`
	FromMe     bool   `json:"fromMe"`
	Type       string `json:"type"`
	Body       string `json:"body"`
	Timestamp  int64  `json:"timestamp"`
	NotifyName string `json:"notifyName,omitempty"`
	ChatName   string `json:"chatName,omitempty"`

	MediaURL string `json:"mediaUrl,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Duration int    `json:"duration,omitempty"`

	SelectedButtonID string `json:"selectedButtonId,omitempty"`
	SelectedRowID    string `json:"selectedRowId,omitempty"`

	Reaction string `json:"reaction,omitempty"`
	MsgID    struct {
		Serialized string `json:"_serialized"`
	} `json:"msgId,omitempty"`

	// Linked-identifier aliases the gateway resolves from the contact.
	SenderLid string `json:"senderLid,omitempty"`
}

var mediaTypes = map[string]string{
	"image":    "image",
	"video":    "video",
	"audio":    "audio",
	"ptt":      "audio",
	"document": "document",
	"sticker":  "sticker",
}

func (a *Adapter) Normalize(raw json.RawMessage) (*core.InboundEvent, error) {
	var msg rawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("malformed wweb event: %w", err)
	}
	if msg.ID.Serialized == "" {
		return nil, fmt.Errorf("wweb event missing message id: %w", providers.ErrUnsupportedEvent)
	}

	out := &core.InboundEvent{
		Provider:  ProviderName,
		MessageID: msg.ID.Serialized,
		FromMe:    msg.FromMe,
		Timestamp: time.Unix(msg.Timestamp, 0).UTC(),
	}

	fromGroup := providers.IsGroupJID(msg.From)
	out.Sender = a.sender(&msg, fromGroup)

	switch {
	case msg.Type == "chat":
		out.Kind = core.KindText
		out.Body = msg.Body

	case mediaTypes[msg.Type] != "":
		out.Kind = core.KindMedia
		out.Body = msg.Body
		out.File = &core.FileInfo{
			URL:      msg.MediaURL,
			Name:     msg.Filename,
			Type:     mediaTypes[msg.Type],
			MimeType: msg.MimeType,
			Size:     msg.Size,
			Duration: msg.Duration,
			IsPTT:    msg.Type == "ptt",
		}

	case msg.Type == "reaction":
		out.Kind = core.KindReaction
		out.Reaction = &core.ReactionInfo{
			TargetMessageID: msg.MsgID.Serialized,
			Emoji:           msg.Reaction,
		}

	case msg.Type == "buttons_response":
		out.Kind = core.KindButtonReply
		out.Body = msg.Body
		out.Reply = &core.InteractiveReply{
			ButtonID:    msg.SelectedButtonID,
			Description: msg.Body,
		}

	case msg.Type == "list_response":
		out.Kind = core.KindListReply
		out.Body = msg.Body
		out.Reply = &core.InteractiveReply{
			ListID:      msg.SelectedRowID,
			Description: msg.Body,
		}

	default:
		return nil, providers.ErrUnsupportedEvent
	}

	if fromGroup && out.Kind != core.KindReaction {
		if out.Kind == core.KindMedia {
			out.Kind = core.KindGroupMedia
		} else {
			out.Kind = core.KindGroupText
		}
		out.Group = &core.GroupInfo{
			GroupName:       msg.ChatName,
			ParticipantName: msg.NotifyName,
			ParticipantID:   out.Sender.Phone,
			FromGroup:       true,
		}
	}

	return out, nil
}

// sender derives the descriptor. Direct chats address the counterparty via
// from; group messages carry the participant in author.
func (a *Adapter) sender(msg *rawMessage, fromGroup bool) core.SenderInfo {
	jid := msg.From
	if fromGroup && msg.Author != "" {
		jid = msg.Author
	}
	s := providers.SenderFromJID(jid)
	if msg.SenderLid != "" && s.LinkedID == "" {
		lid, _ := providers.SplitJID(msg.SenderLid)
		s.LinkedID = lid
	}
	s.PushName = msg.NotifyName
	return s
}
