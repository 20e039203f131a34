//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
package session

import (
	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/room"
)

// Registry is the slice of the Lobby a coordinator needs. *room.Lobby
// satisfies it.
type Registry interface {
	Get(roomID string) (*room.Room, bool)
	AddUserToRoom(id chat.Identity, r *room.Room) error
	RemoveUserFromRoom(id chat.Identity, r *room.Room)
}

var _ Registry = (*room.Lobby)(nil)
