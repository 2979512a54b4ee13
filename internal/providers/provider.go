// Package providers defines the adapter boundary between provider-specific
// raw events and the canonical InboundEvent. One adapter per WhatsApp client
// protocol, selected by session configuration; ticket logic never branches on
// provider identity.
package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zapdesk/zapdesk/internal/core"
)

// ErrUnsupportedEvent marks raw events of a kind the adapter does not map.
// They are dropped with a warning, never propagated into the pipeline.
var ErrUnsupportedEvent = errors.New("unsupported event kind")

// Adapter normalizes one provider's raw events.
type Adapter interface {
	Name() string
	Normalize(raw json.RawMessage) (*core.InboundEvent, error)
}

// Registry maps provider tags to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Lookup(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", provider)
	}
	return a, nil
}

// WhatsApp JID server suffixes.
const (
	serverUser   = "s.whatsapp.net"
	serverLegacy = "c.us"
	serverGroup  = "g.us"
	serverLID    = "lid"
)

// SplitJID separates a JID into its user and server parts. Device and agent
// suffixes on the user part (":12", "_1") are stripped.
func SplitJID(jid string) (user, server string) {
	user, server, found := strings.Cut(jid, "@")
	if !found {
		return jid, ""
	}
	if i := strings.IndexAny(user, ":_"); i >= 0 {
		user = user[:i]
	}
	return user, server
}

// IsGroupJID reports whether the JID addresses a group chat.
func IsGroupJID(jid string) bool {
	_, server := SplitJID(jid)
	return server == serverGroup
}

// SenderFromJID classifies a JID into the phone/linked-identifier union.
func SenderFromJID(jid string) core.SenderInfo {
	user, server := SplitJID(jid)
	switch server {
	case serverLID:
		return core.SenderInfo{LinkedID: user}
	case serverUser, serverLegacy:
		return core.SenderInfo{Phone: user}
	default:
		// Unknown server: keep the raw user part as a phone-form guess so
		// the event is not lost; the identity resolver merges later.
		return core.SenderInfo{Phone: user}
	}
}
