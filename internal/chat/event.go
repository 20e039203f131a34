// Package chat defines the immutable event values that flow through rooms and
// the private per-connection diagnostic streams, together with their wire form.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated principal attached to a connection. It is an
// opaque key compared by equality; the empty Identity means "not authenticated".
type Identity string

// IsZero reports whether the identity is missing.
func (i Identity) IsZero() bool {
	return i == ""
}

// String returns the identity key.
func (i Identity) String() string {
	return string(i)
}

// Kind classifies an Event.
type Kind string

const (
	// KindMessage is a chat message published by a room member.
	KindMessage Kind = "message"
	// KindLatency is a diagnostic round-trip probe; it only ever travels on the
	// private stream of the connection that produced it.
	KindLatency Kind = "latency"
	// KindJoined announces that an identity was admitted into the room.
	KindJoined Kind = "joined"
	// KindLeft announces that an identity left the room.
	KindLeft Kind = "left"
)

// Event is one chat or diagnostic message unit. Events are values: once
// constructed they are never mutated, so they can be shared by every
// subscriber of a room without copying.
type Event struct {
	ID        uuid.UUID
	Kind      Kind
	Sender    Identity
	Payload   string
	Timestamp time.Time
}

// NewEvent creates an Event of the given kind attributed to sender, stamping
// it with a fresh id and the current UTC time.
func NewEvent(kind Kind, sender Identity, payload string) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		Sender:    sender,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessage creates a chat message event.
func NewMessage(sender Identity, payload string) Event {
	return NewEvent(KindMessage, sender, payload)
}

// NewJoined creates the system event published when sender enters a room.
func NewJoined(sender Identity) Event {
	return NewEvent(KindJoined, sender, "")
}

// NewLeft creates the system event published when sender leaves a room.
func NewLeft(sender Identity) Event {
	return NewEvent(KindLeft, sender, "")
}

// IsDiagnostic reports whether the event belongs on a private diagnostic stream.
func (e Event) IsDiagnostic() bool {
	return e.Kind == KindLatency
}
