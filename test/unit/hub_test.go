// Package unit contains unit tests for individual roomchat server components,
// exercised through their exported API without a live network listener.
package unit

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/room"
	"github.com/Tyrowin/roomchat/internal/server"
)

func newHub(t *testing.T) *server.Hub {
	t.Helper()
	return server.NewHub(room.NewLobby(0), nil, zap.NewNop(), server.NewConfig().SessionConfig())
}

// TestNewHub verifies a fresh hub tracks no clients.
func TestNewHub(t *testing.T) {
	hub := newHub(t)
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount())
	}
}

// TestHubRegisterNil verifies a nil client is refused.
func TestHubRegisterNil(t *testing.T) {
	hub := newHub(t)
	server.StartHub(hub, zap.NewNop())
	defer func() { _ = hub.Shutdown(time.Second) }()

	if hub.Register(nil) {
		t.Error("Register(nil) should return false")
	}
}

// TestHubRegisterAfterShutdown verifies the caller keeps ownership of clients
// offered to a stopped hub.
func TestHubRegisterAfterShutdown(t *testing.T) {
	hub := newHub(t)
	server.StartHub(hub, zap.NewNop())

	if err := hub.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	client := server.NewClient(nil, "alice", "general", "test", zap.NewNop())
	if hub.Register(client) {
		t.Error("Register should fail after shutdown")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

// TestHubShutdownTimeout verifies Shutdown returns within its timeout.
func TestHubShutdownTimeout(t *testing.T) {
	hub := newHub(t)
	server.StartHub(hub, zap.NewNop())

	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	_ = hub.Shutdown(50 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Shutdown took %v, expected around 50ms", elapsed)
	}
}
