package session

import (
	"sync"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// DefaultDiagnosticBuffer is the capacity of a connection's private stream.
const DefaultDiagnosticBuffer = 16

// diagnostics is the private per-connection stream carrying latency replies.
// Only the owning connection's outbound pipeline consumes it.
type diagnostics struct {
	mu      sync.Mutex
	ch      chan chat.Event
	closed  bool
	dropped uint64
}

func newDiagnostics(buffer int) *diagnostics {
	if buffer <= 0 {
		buffer = DefaultDiagnosticBuffer
	}
	return &diagnostics{ch: make(chan chat.Event, buffer)}
}

// Offer queues e without blocking. When the queue is full the oldest entry is
// discarded. It reports false once the stream is closed.
func (d *diagnostics) Offer(e chat.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	for {
		select {
		case d.ch <- e:
			return true
		default:
		}
		select {
		case <-d.ch:
			d.dropped++
		default:
		}
	}
}

func (d *diagnostics) Events() <-chan chat.Event {
	return d.ch
}

func (d *diagnostics) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *diagnostics) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.ch)
}
