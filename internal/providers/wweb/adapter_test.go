package wweb

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

func TestNormalizeChat(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "true_5511999999999@c.us_AAA111"},
		"from": "5511999999999@c.us",
		"type": "chat",
		"body": "bom dia",
		"timestamp": 1756300000,
		"notifyName": "Maria"
	}`)

	assert.Equal(t, core.KindText, ev.Kind)
	assert.Equal(t, "true_5511999999999@c.us_AAA111", ev.MessageID)
	assert.Equal(t, "bom dia", ev.Body)
	assert.Equal(t, "5511999999999", ev.Sender.Phone)
	assert.Equal(t, "Maria", ev.Sender.PushName)
}

func TestNormalizeSenderLidAlias(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "m1"},
		"from": "5511999999999@c.us",
		"type": "chat",
		"body": "oi",
		"timestamp": 1756300000,
		"senderLid": "123456789012345@lid"
	}`)

	assert.Equal(t, "5511999999999", ev.Sender.Phone)
	assert.Equal(t, "123456789012345", ev.Sender.LinkedID)
}

func TestNormalizePTT(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "m2"},
		"from": "5511999999999@c.us",
		"type": "ptt",
		"timestamp": 1756300000,
		"mediaUrl": "https://media.example/voice.ogg",
		"mimetype": "audio/ogg; codecs=opus",
		"duration": 9
	}`)

	assert.Equal(t, core.KindMedia, ev.Kind)
	require.NotNil(t, ev.File)
	assert.Equal(t, "audio", ev.File.Type)
	assert.True(t, ev.File.IsPTT)
	assert.Equal(t, 9, ev.File.Duration)
}

func TestNormalizeDocument(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "m3"},
		"from": "5511999999999@c.us",
		"type": "document",
		"body": "segue o boleto",
		"timestamp": 1756300000,
		"mediaUrl": "https://media.example/boleto.pdf",
		"mimetype": "application/pdf",
		"filename": "boleto.pdf",
		"size": 40960
	}`)

	assert.Equal(t, core.KindMedia, ev.Kind)
	require.NotNil(t, ev.File)
	assert.Equal(t, "document", ev.File.Type)
	assert.Equal(t, "boleto.pdf", ev.File.Name)
	assert.False(t, ev.File.IsPTT)
}

func TestNormalizeGroupUsesAuthor(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "m4"},
		"from": "120363041234567890@g.us",
		"author": "5511888887777@c.us",
		"type": "chat",
		"body": "alguem responde?",
		"timestamp": 1756300000,
		"notifyName": "Joao",
		"chatName": "Clientes VIP"
	}`)

	assert.Equal(t, core.KindGroupText, ev.Kind)
	assert.Equal(t, "5511888887777", ev.Sender.Phone)
	require.NotNil(t, ev.Group)
	assert.Equal(t, "Clientes VIP", ev.Group.GroupName)
	assert.Equal(t, "Joao", ev.Group.ParticipantName)
	assert.Equal(t, "5511888887777", ev.Group.ParticipantID)
}

func TestNormalizeGroupImagePromoted(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "m5"},
		"from": "120363041234567890@g.us",
		"author": "5511888887777@c.us",
		"type": "image",
		"timestamp": 1756300000,
		"mediaUrl": "https://media.example/foto.jpg",
		"mimetype": "image/jpeg"
	}`)

	assert.Equal(t, core.KindGroupMedia, ev.Kind)
	require.NotNil(t, ev.File)
	assert.Equal(t, "image", ev.File.Type)
}

func TestNormalizeReaction(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "m6"},
		"from": "5511999999999@c.us",
		"type": "reaction",
		"timestamp": 1756300000,
		"reaction": "😂",
		"msgId": {"_serialized": "true_5511999999999@c.us_AAA111"}
	}`)

	assert.Equal(t, core.KindReaction, ev.Kind)
	require.NotNil(t, ev.Reaction)
	assert.Equal(t, "true_5511999999999@c.us_AAA111", ev.Reaction.TargetMessageID)
	assert.Equal(t, "😂", ev.Reaction.Emoji)
}

func TestNormalizeButtonsResponse(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "m7"},
		"from": "5511999999999@c.us",
		"type": "buttons_response",
		"body": "Segunda via",
		"timestamp": 1756300000,
		"selectedButtonId": "opt-2"
	}`)

	assert.Equal(t, core.KindButtonReply, ev.Kind)
	require.NotNil(t, ev.Reply)
	assert.Equal(t, "opt-2", ev.Reply.ButtonID)
}

func TestNormalizeListResponse(t *testing.T) {
	ev := normalize(t, `{
		"id": {"_serialized": "m8"},
		"from": "5511999999999@c.us",
		"type": "list_response",
		"body": "Financeiro",
		"timestamp": 1756300000,
		"selectedRowId": "row-3"
	}`)

	assert.Equal(t, core.KindListReply, ev.Kind)
	require.NotNil(t, ev.Reply)
	assert.Equal(t, "row-3", ev.Reply.ListID)
}

func TestNormalizeUnsupportedType(t *testing.T) {
	_, err := NewAdapter().Normalize(json.RawMessage(`{
		"id": {"_serialized": "m9"},
		"from": "5511999999999@c.us",
		"type": "vcard",
		"timestamp": 1756300000
	}`))
	assert.ErrorIs(t, err, providers.ErrUnsupportedEvent)
}

func TestNormalizeMissingID(t *testing.T) {
	_, err := NewAdapter().Normalize(json.RawMessage(`{"from": "5511999999999@c.us", "type": "chat"}`))
	assert.ErrorIs(t, err, providers.ErrUnsupportedEvent)
}
