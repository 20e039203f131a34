package room

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Tyrowin/roomchat/internal/chat"
)

var (
	// ErrAdmissionConflict is returned when an identity already belongs to a
	// room, including the room it is being added to.
	ErrAdmissionConflict = errors.New("identity already belongs to a room")
	// ErrIdentityMissing is returned when an empty identity is admitted.
	ErrIdentityMissing = errors.New("identity missing")
	// ErrRoomExists is returned when provisioning a room id twice.
	ErrRoomExists = errors.New("room already exists")
	// ErrInvalidRoomID is returned for a blank room id.
	ErrInvalidRoomID = errors.New("invalid room id")
)

// Lobby is the process-wide registry of rooms. A single lock guards the
// identity index and every member-set mutation, so an identity can never be
// admitted into two rooms concurrently.
type Lobby struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	membership map[chat.Identity]*Room
	buffer     int
}

// NewLobby creates an empty Lobby. Rooms it creates give each subscriber a
// queue of subscriberBuffer events; non-positive values use the default.
func NewLobby(subscriberBuffer int) *Lobby {
	return &Lobby{
		rooms:      make(map[string]*Room),
		membership: make(map[chat.Identity]*Room),
		buffer:     subscriberBuffer,
	}
}

// Create provisions a new room under id.
func (l *Lobby) Create(id string) (*Room, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidRoomID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.rooms[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, id)
	}
	r := newRoom(id, l.buffer)
	l.rooms[id] = r
	return r, nil
}

// Get looks up a room by id without side effects.
func (l *Lobby) Get(id string) (*Room, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rooms[id]
	return r, ok
}

// Rooms returns every registered room sorted by id.
func (l *Lobby) Rooms() []*Room {
	l.mu.RLock()
	out := make([]*Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		out = append(out, r)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// RoomOf returns the room id currently belongs to.
func (l *Lobby) RoomOf(id chat.Identity) (*Room, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.membership[id]
	return r, ok
}

// AddUserToRoom atomically checks that id belongs to no room and adds it to r.
// It returns ErrAdmissionConflict without mutating anything when id is
// already a member somewhere.
func (l *Lobby) AddUserToRoom(id chat.Identity, r *Room) error {
	if id.IsZero() {
		return ErrIdentityMissing
	}
	if r == nil {
		return ErrInvalidRoomID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.membership[id]; ok {
		return fmt.Errorf("%w: %s is in %s", ErrAdmissionConflict, id, current.id)
	}
	l.membership[id] = r
	r.add(id)
	return nil
}

// RemoveUserFromRoom removes id from r if present. Removing an absent member
// is a no-op.
func (l *Lobby) RemoveUserFromRoom(id chat.Identity, r *Room) {
	if r == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.membership[id]; ok && current == r {
		delete(l.membership, id)
	}
	r.remove(id)
}
