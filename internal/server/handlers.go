// Package server exposes HTTP handlers, including WebSocket upgrades, the room
// and token API, health checks, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/room"
)

const maxRequestBody = 4 << 10

// API holds the collaborators behind the HTTP routes.
type API struct {
	lobby    *room.Lobby
	hub      *Hub
	tokens   *TokenIssuer
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewAPI wires the HTTP handlers to the lobby, hub and token issuer.
func NewAPI(lobby *room.Lobby, hub *Hub, tokens *TokenIssuer, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	return &API{
		lobby:  lobby,
		hub:    hub,
		tokens: tokens,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(log),
		},
	}
}

// WebSocket upgrades GET /ws/rooms/{roomID} and hands the connection to the
// hub. A missing or invalid token still upgrades; the connection arrives
// without an identity and admission rejects it.
func (a *API) WebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	identity, err := a.tokens.IdentityFromRequest(r)
	if err != nil {
		a.log.Debug("websocket request without valid identity",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		identity = ""
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(conn, identity, roomID, r.RemoteAddr, a.log)
	if !a.hub.Register(client) {
		_ = client.Close()
	}
}

// IssueToken handles POST /api/v1/token. It stands in for a real login and
// signs a token for whatever user name is submitted.
func (a *API) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	token, err := a.tokens.Issue(chat.Identity(user))
	if err != nil {
		a.log.Error("failed to sign token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int64(a.tokens.ttl.Seconds()),
	})
}

// ListRooms handles GET /api/v1/rooms.
func (a *API) ListRooms(w http.ResponseWriter, _ *http.Request) {
	views := lo.Map(a.lobby.Rooms(), func(r *room.Room, _ int) RoomView {
		return newRoomView(r, false)
	})
	writeJSON(w, http.StatusOK, views)
}

// CreateRoom handles POST /api/v1/rooms.
func (a *API) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	created, err := a.lobby.Create(req.ID)
	switch {
	case errors.Is(err, room.ErrRoomExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, room.ErrInvalidRoomID):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		a.log.Error("failed to create room", zap.String("room_id", req.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	a.log.Info("room created", zap.String("room_id", created.ID()))
	writeJSON(w, http.StatusCreated, newRoomView(created, false))
}

// GetRoom handles GET /api/v1/rooms/{id}.
func (a *API) GetRoom(w http.ResponseWriter, r *http.Request) {
	found, ok := a.lobby.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, newRoomView(found, true))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("error writing JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

// TestPageHandler serves an HTML page for trying the room WebSocket by hand:
// it fetches a token, joins a room, sends messages and latency probes, and
// shows every event received.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		zap.L().Warn("error writing HTML response", zap.Error(err))
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>roomchat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="userInput" placeholder="user">
        <input type="text" id="roomInput" placeholder="room" value="general">
        <button id="connectButton" onclick="toggleConnection()">Join</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
        <button id="pingButton" onclick="sendLatency()" disabled>Latency</button>
    </div>

    <div id="events"></div>

    <script>
        let ws = null;
        const eventsDiv = document.getElementById('events');
        const messageInput = document.getElementById('messageInput');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            eventsDiv.appendChild(el);
            eventsDiv.scrollTop = eventsDiv.scrollHeight;
        }

        function setConnected(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            document.getElementById('sendButton').disabled = !connected;
            document.getElementById('pingButton').disabled = !connected;
            document.getElementById('connectButton').textContent = connected ? 'Leave' : 'Join';
        }

        async function connect() {
            const user = document.getElementById('userInput').value.trim();
            const roomID = document.getElementById('roomInput').value.trim();
            const resp = await fetch('/api/v1/token', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({user: user})
            });
            if (!resp.ok) {
                addLine('Token request failed: ' + resp.status, 'red');
                return;
            }
            const body = await resp.json();
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws/rooms/' + encodeURIComponent(roomID) + '?token=' + body.token);

            ws.onopen = function() { addLine('Connected to ' + roomID); setConnected(true); };
            ws.onmessage = function(event) {
                const e = JSON.parse(event.data);
                if (e.type === 'latency') {
                    addLine('latency: ' + (Date.now() - Number(e.payload)) + 'ms', 'purple');
                } else if (e.type === 'message') {
                    addLine(e.sender + ': ' + e.payload, 'green');
                } else {
                    addLine(e.sender + ' ' + e.type);
                }
            };
            ws.onclose = function() { addLine('Connection closed'); setConnected(false); ws = null; };
            ws.onerror = function() { addLine('Connection error', 'red'); setConnected(false); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const message = messageInput.value.trim();
            if (message && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: 'message', payload: message}));
                messageInput.value = '';
            }
        }

        function sendLatency() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: 'latency', payload: String(Date.now())}));
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
