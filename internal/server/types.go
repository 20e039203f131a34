// Package server defines the JSON request and response payloads of the HTTP
// API along with small helpers shared by the client and hub.
package server

import (
	"strings"

	"github.com/Tyrowin/roomchat/internal/room"
)

// TokenRequest is the body of POST /api/v1/token.
type TokenRequest struct {
	User string `json:"user"`
}

// TokenResponse carries a signed identity token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// CreateRoomRequest is the body of POST /api/v1/rooms.
type CreateRoomRequest struct {
	ID string `json:"id"`
}

// RoomView is the public representation of a room.
type RoomView struct {
	ID      string   `json:"id"`
	Members int      `json:"members"`
	Users   []string `json:"users,omitempty"`
}

// ErrorResponse is written for every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newRoomView(r *room.Room, withUsers bool) RoomView {
	view := RoomView{ID: r.ID(), Members: r.Size()}
	if withUsers {
		for _, id := range r.Members() {
			view.Users = append(view.Users, id.String())
		}
	}
	return view
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
