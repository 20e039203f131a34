// Package chat converts events to and from the JSON text frames exchanged with
// WebSocket clients.
package chat

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// wireEvent is the JSON shape of an outgoing Event.
type wireEvent struct {
	ID        string `json:"id"`
	Type      Kind   `json:"type"`
	Sender    string `json:"sender"`
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp"`
}

// envelope is the optional JSON shape of an incoming frame.
type envelope struct {
	Type    Kind   `json:"type"`
	Payload string `json:"payload"`
}

// ToWireFormat serializes an Event into a single text frame.
func ToWireFormat(e Event) ([]byte, error) {
	return json.Marshal(wireEvent{
		ID:        e.ID.String(),
		Type:      e.Kind,
		Sender:    e.Sender.String(),
		Payload:   e.Payload,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
	})
}

// FromWireFormat decodes a frame produced by ToWireFormat. It is used by
// clients and tests that consume the outbound stream.
func FromWireFormat(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, err
	}
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return Event{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        id,
		Kind:      w.Type,
		Sender:    Identity(w.Sender),
		Payload:   w.Payload,
		Timestamp: ts,
	}, nil
}

// ParseFrame turns the text of one inbound frame into an Event attributed to
// sender. A JSON envelope with type "latency" becomes a diagnostic probe and
// type "message" a chat message; any other text is used verbatim as the
// message payload. Blank frames are rejected.
func ParseFrame(sender Identity, text string) (Event, bool) {
	if strings.TrimSpace(text) == "" {
		return Event{}, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err == nil {
		switch env.Type {
		case KindLatency:
			return NewEvent(KindLatency, sender, env.Payload), true
		case KindMessage:
			if strings.TrimSpace(env.Payload) == "" {
				return Event{}, false
			}
			return NewMessage(sender, env.Payload), true
		}
	}

	return NewMessage(sender, text), true
}
