// Package room holds the in-memory chat rooms and the Lobby that is the single
// source of truth for which room, if any, an identity currently belongs to.
package room

import (
	"sort"
	"sync"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Room is a named set of identities sharing one broadcast event stream. Its
// member set is mutated only by the Lobby; the room lock only protects
// readers from torn updates.
type Room struct {
	id          string
	mu          sync.RWMutex
	members     map[chat.Identity]struct{}
	broadcaster *Broadcaster
}

func newRoom(id string, buffer int) *Room {
	return &Room{
		id:          id,
		members:     make(map[chat.Identity]struct{}),
		broadcaster: NewBroadcaster(buffer),
	}
}

// ID returns the room's immutable key.
func (r *Room) ID() string {
	return r.id
}

// Publish enqueues e for delivery to every current subscriber without blocking.
func (r *Room) Publish(e chat.Event) {
	r.broadcaster.Publish(e)
}

// Subscribe returns a fresh stream of events published from now on.
func (r *Room) Subscribe() *Subscription {
	return r.broadcaster.Subscribe()
}

// Subscribers returns the number of live subscriptions to the room's stream.
func (r *Room) Subscribers() int {
	return r.broadcaster.Subscribers()
}

// Contains reports whether id is currently a member.
func (r *Room) Contains(id chat.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

// Size returns the number of current members.
func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members returns a sorted snapshot of the member set.
func (r *Room) Members() []chat.Identity {
	r.mu.RLock()
	out := make([]chat.Identity, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Room) add(id chat.Identity) {
	r.mu.Lock()
	r.members[id] = struct{}{}
	r.mu.Unlock()
}

func (r *Room) remove(id chat.Identity) {
	r.mu.Lock()
	delete(r.members, id)
	r.mu.Unlock()
}
