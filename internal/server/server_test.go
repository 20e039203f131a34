package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/room"
)

const testOrigin = "http://localhost:8080"

type testEnv struct {
	server *httptest.Server
	lobby  *room.Lobby
	hub    *Hub
	tokens *TokenIssuer
}

// newTestEnv starts a full router backed by a fresh lobby containing rooms.
func newTestEnv(t *testing.T, rooms ...string) *testEnv {
	t.Helper()
	SetConfig(nil)
	t.Cleanup(func() { SetConfig(nil) })

	log := zap.NewNop()
	lobby := room.NewLobby(0)
	if err := SeedRooms(lobby, rooms, log); err != nil {
		t.Fatalf("SeedRooms: %v", err)
	}

	hub := NewHub(lobby, nil, log, CurrentConfig().SessionConfig())
	StartHub(hub, log)

	tokens := NewTokenIssuer("test-secret", time.Hour)
	srv := httptest.NewServer(SetupRoutes(NewAPI(lobby, hub, tokens, log), log))

	t.Cleanup(func() {
		srv.Close()
		if err := hub.Shutdown(2 * time.Second); err != nil {
			t.Errorf("hub shutdown: %v", err)
		}
	})

	return &testEnv{server: srv, lobby: lobby, hub: hub, tokens: tokens}
}

func (e *testEnv) wsURL(roomID string) string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/rooms/" + roomID
}

// dial connects as user to roomID. An empty user sends no token.
func (e *testEnv) dial(t *testing.T, user, roomID string) *websocket.Conn {
	t.Helper()

	headers := http.Header{}
	headers.Set("Origin", testOrigin)
	if user != "" {
		token, err := e.tokens.Issue(chat.Identity(user))
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		headers.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(e.wsURL(roomID), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial %s as %q: %v", roomID, user, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) chat.Event {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	e, err := chat.FromWireFormat(data)
	if err != nil {
		t.Fatalf("FromWireFormat(%s): %v", data, err)
	}
	return e
}

func readEventOf(t *testing.T, conn *websocket.Conn, kind chat.Kind) chat.Event {
	t.Helper()
	for {
		if e := readEvent(t, conn); e.Kind == kind {
			return e
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}
