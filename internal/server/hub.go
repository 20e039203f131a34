// Package server tracks live WebSocket clients and runs one session
// coordinator per client via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/session"
)

// Hub owns every live Client. For each registered client it starts the
// transport pumps and a session.Coordinator, and it closes them all on
// shutdown.
type Hub struct {
	registry   session.Registry
	reporter   session.Reporter
	sessionCfg session.Config
	log        *zap.Logger

	clients    map[*Client]*session.Coordinator
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub that admits clients through registry. Admission
// failures go to reporter.
func NewHub(registry session.Registry, reporter session.Reporter, log *zap.Logger, cfg session.Config) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if reporter == nil {
		reporter = session.NewLogReporter(log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   registry,
		reporter:   reporter,
		sessionCfg: cfg,
		log:        log.Named("hub"),
		clients:    make(map[*Client]*session.Coordinator),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands client to the hub. It returns false when the hub is shutting
// down, in which case the caller still owns the client.
func (h *Hub) Register(client *Client) bool {
	if client == nil {
		return false
	}
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// ClientCount returns the number of clients currently tracked.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's event loop. It should be called in its own goroutine
// and returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.start(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			delete(h.clients, client)
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("client unregistered",
				zap.String("remote_addr", client.Addr()),
				zap.Int("clients", clientCount),
			)
		}
	}
}

func (h *Hub) start(client *Client) {
	coord := session.NewCoordinator(client, h.registry, h.reporter, h.log, h.sessionCfg)

	h.mutex.Lock()
	h.clients[client] = coord
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.log.Debug("client registered",
		zap.String("remote_addr", client.Addr()),
		zap.String("room_id", client.RoomID()),
		zap.Int("clients", clientCount),
	)

	h.wg.Add(3)
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		coord.Run(client.Context())
		// Run has closed the client by now; Close is idempotent.
		_ = client.Close()
		select {
		case h.unregister <- client:
		case <-h.ctx.Done():
		}
	}()
}

// shutdownClients closes every tracked client. Each coordinator then tears
// down and releases the identity's room membership.
func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if err := client.Close(); err != nil {
			h.log.Debug("error closing client", zap.String("remote_addr", client.Addr()), zap.Error(err))
		}
	}

	h.log.Info("closed client connections", zap.Int("clients", len(clients)))
}

// Shutdown stops the hub and waits for every client goroutine to finish, or
// for the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
