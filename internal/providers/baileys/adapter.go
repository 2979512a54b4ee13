// Package baileys normalizes events in the Baileys client protocol shape.
package baileys

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/providers"
)

const ProviderName = "baileys"

type Adapter struct{}

func NewAdapter() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return ProviderName }

// rawEvent mirrors one entry of a Baileys messages.upsert notification, as
// forwarded by the session gateway. The gateway enriches group events with
// the subject since Baileys only carries it in chat metadata.
type rawEvent struct {
	Key struct {
		ID            string `json:"id"`
		RemoteJID     string `json:"remoteJid"`
		FromMe        bool   `json:"fromMe"`
		Participant   string `json:"participant,omitempty"`
		SenderPn      string `json:"senderPn,omitempty"`
		ParticipantPn string `json:"participantPn,omitempty"`
	} `json:"key"`
	PushName         string      `json:"pushName,omitempty"`
	MessageTimestamp int64       `json:"messageTimestamp"`
	GroupSubject     string      `json:"groupSubject,omitempty"`
	Message          *rawMessage `json:"message,omitempty"`
}

type rawMessage struct {
	Conversation        string `json:"conversation,omitempty"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage,omitempty"`
	ImageMessage    *rawMedia `json:"imageMessage,omitempty"`
	VideoMessage    *rawMedia `json:"videoMessage,omitempty"`
	DocumentMessage *rawMedia `json:"documentMessage,omitempty"`
	StickerMessage  *rawMedia `json:"stickerMessage,omitempty"`
	AudioMessage    *struct {
		rawMedia
		PTT     bool `json:"ptt"`
		Seconds int  `json:"seconds"`
	} `json:"audioMessage,omitempty"`
	ReactionMessage *struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
		Text string `json:"text"`
	} `json:"reactionMessage,omitempty"`
	ButtonsResponseMessage *struct {
		SelectedButtonID    string `json:"selectedButtonId"`
		SelectedDisplayText string `json:"selectedDisplayText"`
	} `json:"buttonsResponseMessage,omitempty"`
	ListResponseMessage *struct {
		Title             string `json:"title"`
		Description       string `json:"description,omitempty"`
		SingleSelectReply struct {
			SelectedRowID string `json:"selectedRowId"`
		} `json:"singleSelectReply"`
	} `json:"listResponseMessage,omitempty"`
}

type rawMedia struct {
	URL        string `json:"url,omitempty"`
	Caption    string `json:"caption,omitempty"`
	MimeType   string `json:"mimetype,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	FileLength int64  `json:"fileLength,omitempty"`
}

func (a *Adapter) Normalize(raw json.RawMessage) (*core.InboundEvent, error) {
	var ev rawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("malformed baileys event: %w", err)
	}
	if ev.Key.ID == "" || ev.Message == nil {
		return nil, fmt.Errorf("baileys event missing key or message: %w", providers.ErrUnsupportedEvent)
	}

	out := &core.InboundEvent{
		Provider:  ProviderName,
		MessageID: ev.Key.ID,
		FromMe:    ev.Key.FromMe,
		Timestamp: time.Unix(ev.MessageTimestamp, 0).UTC(),
	}

	fromGroup := providers.IsGroupJID(ev.Key.RemoteJID)
	out.Sender = a.sender(&ev, fromGroup)

	msg := ev.Message
	switch {
	case msg.Conversation != "" || msg.ExtendedTextMessage != nil:
		out.Kind = core.KindText
		out.Body = msg.Conversation
		if msg.ExtendedTextMessage != nil {
			out.Body = msg.ExtendedTextMessage.Text
		}

	case msg.ImageMessage != nil:
		out.Kind = core.KindMedia
		out.Body = msg.ImageMessage.Caption
		out.File = fileInfo(msg.ImageMessage, "image", 0, false)

	case msg.VideoMessage != nil:
		out.Kind = core.KindMedia
		out.Body = msg.VideoMessage.Caption
		out.File = fileInfo(msg.VideoMessage, "video", 0, false)

	case msg.DocumentMessage != nil:
		out.Kind = core.KindMedia
		out.Body = msg.DocumentMessage.Caption
		out.File = fileInfo(msg.DocumentMessage, "document", 0, false)

	case msg.StickerMessage != nil:
		out.Kind = core.KindMedia
		out.File = fileInfo(msg.StickerMessage, "sticker", 0, false)

	case msg.AudioMessage != nil:
		out.Kind = core.KindMedia
		out.File = fileInfo(&msg.AudioMessage.rawMedia, "audio", msg.AudioMessage.Seconds, msg.AudioMessage.PTT)

	case msg.ReactionMessage != nil:
		out.Kind = core.KindReaction
		out.Reaction = &core.ReactionInfo{
			TargetMessageID: msg.ReactionMessage.Key.ID,
			Emoji:           msg.ReactionMessage.Text,
		}

	case msg.ButtonsResponseMessage != nil:
		out.Kind = core.KindButtonReply
		out.Body = msg.ButtonsResponseMessage.SelectedDisplayText
		out.Reply = &core.InteractiveReply{
			ButtonID:    msg.ButtonsResponseMessage.SelectedButtonID,
			Description: msg.ButtonsResponseMessage.SelectedDisplayText,
		}

	case msg.ListResponseMessage != nil:
		out.Kind = core.KindListReply
		out.Body = msg.ListResponseMessage.Title
		out.Reply = &core.InteractiveReply{
			ListID:      msg.ListResponseMessage.SingleSelectReply.SelectedRowID,
			Description: msg.ListResponseMessage.Description,
		}

	default:
		return nil, providers.ErrUnsupportedEvent
	}

	if fromGroup && out.Kind != core.KindReaction {
		switch out.Kind {
		case core.KindMedia:
			out.Kind = core.KindGroupMedia
		default:
			out.Kind = core.KindGroupText
		}
		participant := out.Sender
		out.Group = &core.GroupInfo{
			GroupName:       ev.GroupSubject,
			ParticipantName: participant.PushName,
			ParticipantID:   participantID(participant),
			FromGroup:       true,
		}
	}

	return out, nil
}

// sender builds the descriptor from the JID forms Baileys scatters across the
// key: remoteJid may be a phone or an opaque LID, with senderPn carrying the
// phone form when remoteJid is LID-addressed. Group events identify the
// author via participant/participantPn instead.
func (a *Adapter) sender(ev *rawEvent, fromGroup bool) core.SenderInfo {
	var s core.SenderInfo
	if fromGroup {
		s = providers.SenderFromJID(ev.Key.Participant)
		if pn := ev.Key.ParticipantPn; pn != "" && s.Phone == "" {
			pnUser, _ := providers.SplitJID(pn)
			s.Phone = pnUser
		}
	} else {
		s = providers.SenderFromJID(ev.Key.RemoteJID)
		if pn := ev.Key.SenderPn; pn != "" && s.Phone == "" {
			pnUser, _ := providers.SplitJID(pn)
			s.Phone = pnUser
		}
	}
	s.PushName = ev.PushName
	return s
}

func participantID(s core.SenderInfo) string {
	if s.Phone != "" {
		return s.Phone
	}
	return s.LinkedID
}

func fileInfo(m *rawMedia, typ string, duration int, ptt bool) *core.FileInfo {
	return &core.FileInfo{
		URL:      m.URL,
		Name:     m.FileName,
		Type:     typ,
		MimeType: m.MimeType,
		Size:     m.FileLength,
		Duration: duration,
		IsPTT:    ptt,
	}
}
