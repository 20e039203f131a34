// Package session coordinates a single connection's life in a room: admission
// through the Lobby, the inbound and outbound pipelines, and teardown.
package session

import (
	"context"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// FrameType distinguishes text frames from everything else a transport may
// deliver.
type FrameType int

const (
	// TextFrame carries UTF-8 text.
	TextFrame FrameType = iota + 1
	// BinaryFrame carries opaque bytes; the coordinator ignores it.
	BinaryFrame
)

// Frame is one inbound unit read from a connection.
type Frame struct {
	Type FrameType
	Data []byte
}

// Connection is the transport handed to a Coordinator. The auth layer fills in
// Identity and RoomID before the connection reaches the coordinator.
//
// ReadFrame returns io.EOF once the peer has closed the connection normally.
// Close must be safe to call more than once.
type Connection interface {
	Identity() chat.Identity
	RoomID() string
	ReadFrame(ctx context.Context) (Frame, error)
	WriteFrame(ctx context.Context, data []byte) error
	Close() error
}
