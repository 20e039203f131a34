package room

import (
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// DefaultSubscriberBuffer is the per-subscriber queue length used when a room
// is created without an explicit buffer size.
const DefaultSubscriberBuffer = 64

// Broadcaster is a multi-producer, multi-consumer publish point for events.
// Publish holds the broadcaster lock for the whole delivery so concurrent
// publishers are serialized and every subscriber observes the same order.
// Deliveries never block: a full subscriber queue drops its oldest event.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
}

// NewBroadcaster creates a Broadcaster whose subscribers queue at most buffer
// events each.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

// Subscription is one consumer's view of a Broadcaster. It only sees events
// published after Subscribe returned.
type Subscription struct {
	id      uint64
	ch      chan chat.Event
	owner   *Broadcaster
	once    sync.Once
	dropped atomic.Uint64
}

// Subscribe registers a new consumer and returns its subscription.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:    b.nextID,
		ch:    make(chan chat.Event, b.buffer),
		owner: b,
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers e to every current subscriber.
func (b *Broadcaster) Publish(e chat.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.deliver(e)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// deliver enqueues e, evicting the oldest queued event when the queue is full.
// Callers hold the broadcaster lock, so deliver is the only producer for ch.
func (s *Subscription) deliver(e chat.Event) {
	select {
	case s.ch <- e:
		return
	default:
	}

	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}

	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the channel the subscriber reads from. It is closed by Close.
func (s *Subscription) Events() <-chan chat.Event {
	return s.ch
}

// Dropped returns how many events this subscriber lost to a full queue.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription and closes its channel. It is safe to call
// more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.subs, s.id)
		s.owner.mu.Unlock()
		close(s.ch)
	})
}
