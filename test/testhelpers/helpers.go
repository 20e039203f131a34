// Package testhelpers provides common utilities for the roomchat integration
// tests.
//
// It starts a complete server stack (lobby, hub, token issuer and router) on
// an httptest server and offers helpers for issuing tokens, dialing room
// WebSockets, and reading wire events.
package testhelpers

import (
	"bytes"
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
	"github.com/Tyrowin/roomchat/internal/server"
)

// TestOrigin is the Origin header sent by every helper dial.
const TestOrigin = "http://localhost:8080"

// Stack is a running server with direct access to its collaborators.
type Stack struct {
	Server *httptest.Server
	Lobby  *room.Lobby
	Hub    *server.Hub
	Tokens *server.TokenIssuer
}

// StartStack starts a server whose lobby contains rooms. cfg may be nil to use
// defaults. Everything is torn down when the test ends.
func StartStack(t *testing.T, cfg *server.Config, rooms ...string) *Stack {
	t.Helper()

	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })

	log := zap.NewNop()
	lobby := room.NewLobby(server.CurrentConfig().SubscriberBuffer)
	if err := server.SeedRooms(lobby, rooms, log); err != nil {
		t.Fatalf("Failed to seed rooms: %v", err)
	}

	hub := server.NewHub(lobby, nil, log, server.CurrentConfig().SessionConfig())
	server.StartHub(hub, log)

	tokens := server.NewTokenIssuer("integration-secret", time.Hour)
	srv := httptest.NewServer(server.SetupRoutes(server.NewAPI(lobby, hub, tokens, log), log))

	s := &Stack{Server: srv, Lobby: lobby, Hub: hub, Tokens: tokens}
	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(2 * time.Second)
	})
	return s
}

// WebSocketURL returns the ws:// URL of roomID.
func (s *Stack) WebSocketURL(roomID string) string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/ws/rooms/" + roomID
}

// Token signs a token for user or fails the test.
func (s *Stack) Token(t *testing.T, user string) string {
	t.Helper()
	token, err := s.Tokens.Issue(chat.Identity(user))
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// Join dials roomID as user and fails the test on error. The connection is
// closed when the test ends.
func (s *Stack) Join(t *testing.T, user, roomID string) *websocket.Conn {
	t.Helper()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+s.Token(t, user))
	conn, err := ConnectWebSocket(s.WebSocketURL(roomID), headers)
	if err != nil {
		t.Fatalf("Failed to join %s as %s: %v", roomID, user, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ConnectWebSocket dials url with the test Origin plus any extra headers.
func ConnectWebSocket(url string, headers http.Header) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	h := http.Header{}
	for k, v := range headers {
		h[k] = v
	}
	if h.Get("Origin") == "" {
		h.Set("Origin", TestOrigin)
	}

	conn, resp, err := dialer.Dial(url, h)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// PostJSON posts body as JSON to url.
func PostJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to encode request: %v", err)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}

// MakeRequest creates and executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// SendText sends text as a single text frame.
func SendText(conn *websocket.Conn, text string) error {
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// ReceiveEvent reads one wire event, waiting at most timeout.
func ReceiveEvent(conn *websocket.Conn, timeout time.Duration) (chat.Event, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return chat.Event{}, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return chat.Event{}, err
	}
	return chat.FromWireFormat(data)
}

// ExpectEvent reads events until one of kind arrives and returns it.
func ExpectEvent(t *testing.T, conn *websocket.Conn, kind chat.Kind) chat.Event {
	t.Helper()
	for {
		e, err := ReceiveEvent(conn, 3*time.Second)
		if err != nil {
			t.Fatalf("Failed waiting for %s event: %v", kind, err)
		}
		if e.Kind == kind {
			return e
		}
	}
}

// ExpectClosed reads until the server closes conn and returns the close error.
func ExpectClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) error {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				t.Fatalf("Connection was not closed within %s", timeout)
			}
			return err
		}
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// WaitFor polls cond until it holds or the timeout elapses.
func WaitFor(t *testing.T, what string, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}
