// Package server adapts gorilla WebSocket connections to session.Connection,
// handling the read pump, keepalive pings, rate limiting, and lifecycle
// control for each connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	inboundBuffer = 16
)

var errClientClosed = errors.New("client closed")

// Client represents a WebSocket connection bound to one identity and one
// requested room. The read pump starts as soon as the hub registers the
// client, so a peer that disconnects while admission is still retrying
// cancels the client's context.
type Client struct {
	conn     *websocket.Conn
	identity chat.Identity
	roomID   string
	addr     string
	log      *zap.Logger

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig

	inbound chan session.Frame
	readErr error

	writeMu   sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var _ session.Connection = (*Client)(nil)

// NewClient creates a Client for conn. identity may be empty when the request
// carried no valid token; admission then rejects the connection.
func NewClient(conn *websocket.Conn, identity chat.Identity, roomID, addr string, log *zap.Logger) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:           conn,
		identity:       identity,
		roomID:         roomID,
		addr:           addr,
		log:            log.With(zap.String("remote_addr", addr)),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		inbound:        make(chan session.Frame, inboundBuffer),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Identity returns the authenticated identity, or "" when none was presented.
func (c *Client) Identity() chat.Identity { return c.identity }

// RoomID returns the room requested in the upgrade URL.
func (c *Client) RoomID() string { return c.roomID }

// Addr returns the remote address of the peer.
func (c *Client) Addr() string { return c.addr }

// Context is cancelled once the connection ends for any reason.
func (c *Client) Context() context.Context { return c.ctx }

// ReadFrame returns the next inbound frame. It returns io.EOF after a normal
// close by the peer.
func (c *Client) ReadFrame(ctx context.Context) (session.Frame, error) {
	select {
	case frame, ok := <-c.inbound:
		if !ok {
			return session.Frame{}, c.readErr
		}
		return frame, nil
	case <-ctx.Done():
		return session.Frame{}, ctx.Err()
	}
}

// WriteFrame sends data as a single text message.
func (c *Client) WriteFrame(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close sends a close frame, closes the socket and cancels the client's
// context. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		close(c.done)
		if c.conn != nil {
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if werr := c.conn.WriteMessage(websocket.CloseMessage, msg); werr != nil && !isExpectedCloseError(werr) {
				c.log.Debug("error writing close message", zap.Error(werr))
			}
			if cerr := c.conn.Close(); cerr != nil && !isExpectedCloseError(cerr) {
				err = cerr
			}
		}
		c.writeMu.Unlock()
		c.cancel()
	})
	return err
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// classifyReadError maps a read failure to io.EOF for the normal ways a peer
// goes away and wraps everything else.
func (c *Client) classifyReadError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("message exceeded maximum size", zap.Int64("max_bytes", c.maxMessageSize))
		return fmt.Errorf("read limit: %w", err)
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.log.Debug("client disconnected", zap.Error(err))
		return io.EOF
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug("client connection closed", zap.Error(err))
		return io.EOF
	}

	select {
	case <-c.done:
		return io.EOF
	default:
	}

	c.log.Warn("websocket read error", zap.Error(err))
	return fmt.Errorf("read message: %w", err)
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("rate limit exceeded; discarding frame",
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("interval", c.rateLimit.RefillInterval),
		)
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		close(c.inbound)
		c.cancel()
	}()

	c.setupReadConnection()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = c.classifyReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		frame := session.Frame{Type: session.BinaryFrame, Data: data}
		if messageType == websocket.TextMessage {
			frame.Type = session.TextFrame
		}

		select {
		case c.inbound <- frame:
		case <-c.done:
			c.readErr = io.EOF
			return
		}
	}
}

// writePump keeps the connection alive with periodic pings until the client
// closes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if !c.handlePing() {
				_ = c.Close()
				return
			}
		}
	}
}

// handlePing sends a ping message to keep the connection alive.
func (c *Client) handlePing() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return true
	default:
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing ping", zap.Error(err))
		}
		return false
	}
	return true
}
