package baileys

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/zapdesk/internal/core"
	"github.com/zapdesk/zapdesk/internal/providers"
)

func normalize(t *testing.T, raw string) *core.InboundEvent {
	t.Helper()
	ev, err := NewAdapter().Normalize(json.RawMessage(raw))
	require.NoError(t, err)
	return ev
}

func TestNormalizeConversation(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "abc123", "remoteJid": "5511999999999@s.whatsapp.net", "fromMe": false},
		"pushName": "Maria",
		"messageTimestamp": 1756300000,
		"message": {"conversation": "preciso de ajuda"}
	}`)

	assert.Equal(t, core.KindText, ev.Kind)
	assert.Equal(t, "abc123", ev.MessageID)
	assert.Equal(t, "preciso de ajuda", ev.Body)
	assert.Equal(t, "5511999999999", ev.Sender.Phone)
	assert.Empty(t, ev.Sender.LinkedID)
	assert.Equal(t, "Maria", ev.Sender.PushName)
	assert.False(t, ev.FromMe)
}

func TestNormalizeExtendedText(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "m1", "remoteJid": "5511999999999@s.whatsapp.net"},
		"messageTimestamp": 1756300000,
		"message": {"extendedTextMessage": {"text": "com link https://example.com"}}
	}`)

	assert.Equal(t, core.KindText, ev.Kind)
	assert.Equal(t, "com link https://example.com", ev.Body)
}

func TestNormalizeLIDSenderMergesPhone(t *testing.T) {
	ev := normalize(t, `{
		"key": {
			"id": "m2",
			"remoteJid": "123456789012345@lid",
			"senderPn": "5511888887777@s.whatsapp.net"
		},
		"messageTimestamp": 1756300000,
		"message": {"conversation": "oi"}
	}`)

	assert.Equal(t, "123456789012345", ev.Sender.LinkedID)
	assert.Equal(t, "5511888887777", ev.Sender.Phone)
}

func TestNormalizeLIDSenderWithoutPhone(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "m3", "remoteJid": "123456789012345@lid"},
		"messageTimestamp": 1756300000,
		"message": {"conversation": "oi"}
	}`)

	assert.Equal(t, "123456789012345", ev.Sender.LinkedID)
	assert.Empty(t, ev.Sender.Phone)
}

func TestNormalizeDeviceSuffixStripped(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "m4", "remoteJid": "5511999999999:12@s.whatsapp.net"},
		"messageTimestamp": 1756300000,
		"message": {"conversation": "oi"}
	}`)

	assert.Equal(t, "5511999999999", ev.Sender.Phone)
}

func TestNormalizeImage(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "m5", "remoteJid": "5511999999999@s.whatsapp.net"},
		"messageTimestamp": 1756300000,
		"message": {"imageMessage": {
			"url": "https://mmg.whatsapp.net/x",
			"caption": "olha isso",
			"mimetype": "image/jpeg",
			"fileLength": 2048
		}}
	}`)

	assert.Equal(t, core.KindMedia, ev.Kind)
	assert.Equal(t, "olha isso", ev.Body)
	require.NotNil(t, ev.File)
	assert.Equal(t, "image", ev.File.Type)
	assert.Equal(t, "image/jpeg", ev.File.MimeType)
	assert.Equal(t, int64(2048), ev.File.Size)
}

func TestNormalizeVoiceNote(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "m6", "remoteJid": "5511999999999@s.whatsapp.net"},
		"messageTimestamp": 1756300000,
		"message": {"audioMessage": {
			"url": "https://mmg.whatsapp.net/a",
			"mimetype": "audio/ogg",
			"ptt": true,
			"seconds": 14
		}}
	}`)

	assert.Equal(t, core.KindMedia, ev.Kind)
	require.NotNil(t, ev.File)
	assert.Equal(t, "audio", ev.File.Type)
	assert.True(t, ev.File.IsPTT)
	assert.Equal(t, 14, ev.File.Duration)
}

func TestNormalizeGroupMessage(t *testing.T) {
	ev := normalize(t, `{
		"key": {
			"id": "m7",
			"remoteJid": "120363041234567890@g.us",
			"participant": "5511999999999@s.whatsapp.net"
		},
		"pushName": "Joao",
		"groupSubject": "Suporte VIP",
		"messageTimestamp": 1756300000,
		"message": {"conversation": "alguem ai?"}
	}`)

	assert.Equal(t, core.KindGroupText, ev.Kind)
	require.NotNil(t, ev.Group)
	assert.True(t, ev.Group.FromGroup)
	assert.Equal(t, "Suporte VIP", ev.Group.GroupName)
	assert.Equal(t, "Joao", ev.Group.ParticipantName)
	assert.Equal(t, "5511999999999", ev.Group.ParticipantID)
	assert.Equal(t, "5511999999999", ev.Sender.Phone)
}

func TestNormalizeGroupMediaPromoted(t *testing.T) {
	ev := normalize(t, `{
		"key": {
			"id": "m8",
			"remoteJid": "120363041234567890@g.us",
			"participant": "123456789012345@lid",
			"participantPn": "5511999999999@s.whatsapp.net"
		},
		"messageTimestamp": 1756300000,
		"message": {"stickerMessage": {"url": "https://mmg.whatsapp.net/s", "mimetype": "image/webp"}}
	}`)

	assert.Equal(t, core.KindGroupMedia, ev.Kind)
	assert.Equal(t, "123456789012345", ev.Sender.LinkedID)
	assert.Equal(t, "5511999999999", ev.Sender.Phone)
}

func TestNormalizeReaction(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "m9", "remoteJid": "5511999999999@s.whatsapp.net"},
		"messageTimestamp": 1756300000,
		"message": {"reactionMessage": {"key": {"id": "abc123"}, "text": "👍"}}
	}`)

	assert.Equal(t, core.KindReaction, ev.Kind)
	require.NotNil(t, ev.Reaction)
	assert.Equal(t, "abc123", ev.Reaction.TargetMessageID)
	assert.Equal(t, "👍", ev.Reaction.Emoji)
	assert.Nil(t, ev.Group)
}

func TestNormalizeGroupReactionNotPromoted(t *testing.T) {
	ev := normalize(t, `{
		"key": {
			"id": "m10",
			"remoteJid": "120363041234567890@g.us",
			"participant": "5511999999999@s.whatsapp.net"
		},
		"messageTimestamp": 1756300000,
		"message": {"reactionMessage": {"key": {"id": "abc123"}, "text": "❤️"}}
	}`)

	assert.Equal(t, core.KindReaction, ev.Kind)
	assert.Nil(t, ev.Group)
}

func TestNormalizeButtonReply(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "m11", "remoteJid": "5511999999999@s.whatsapp.net"},
		"messageTimestamp": 1756300000,
		"message": {"buttonsResponseMessage": {
			"selectedButtonId": "opt-2",
			"selectedDisplayText": "Segunda via"
		}}
	}`)

	assert.Equal(t, core.KindButtonReply, ev.Kind)
	require.NotNil(t, ev.Reply)
	assert.Equal(t, "opt-2", ev.Reply.ButtonID)
	assert.Equal(t, "Segunda via", ev.Body)
}

func TestNormalizeListReply(t *testing.T) {
	ev := normalize(t, `{
		"key": {"id": "m12", "remoteJid": "5511999999999@s.whatsapp.net"},
		"messageTimestamp": 1756300000,
		"message": {"listResponseMessage": {
			"title": "Financeiro",
			"description": "Falar com o financeiro",
			"singleSelectReply": {"selectedRowId": "row-3"}
		}}
	}`)

	assert.Equal(t, core.KindListReply, ev.Kind)
	require.NotNil(t, ev.Reply)
	assert.Equal(t, "row-3", ev.Reply.ListID)
}

func TestNormalizeUnsupportedKind(t *testing.T) {
	_, err := NewAdapter().Normalize(json.RawMessage(`{
		"key": {"id": "m13", "remoteJid": "5511999999999@s.whatsapp.net"},
		"messageTimestamp": 1756300000,
		"message": {"pollCreationMessage": {"name": "enquete"}}
	}`))
	assert.ErrorIs(t, err, providers.ErrUnsupportedEvent)
}

func TestNormalizeMissingKey(t *testing.T) {
	_, err := NewAdapter().Normalize(json.RawMessage(`{"messageTimestamp": 1756300000}`))
	assert.ErrorIs(t, err, providers.ErrUnsupportedEvent)
}

func TestNormalizeMalformed(t *testing.T) {
	_, err := NewAdapter().Normalize(json.RawMessage(`{not json`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrUnsupportedEvent)
}
