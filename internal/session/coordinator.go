package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/room"
	"github.com/Tyrowin/roomchat/internal/stream"
)

var (
	// ErrRoomNotFound is returned when the requested room does not exist.
	// It is never retried.
	ErrRoomNotFound = errors.New("room not found")
	// ErrAdmissionFailed is returned once every admission attempt has hit a
	// conflict. It wraps the last conflict.
	ErrAdmissionFailed = errors.New("admission failed")
	// ErrInboundStream marks an abnormal end of the inbound stream.
	ErrInboundStream = errors.New("inbound stream failed")
	// ErrIdentityMissing is returned when the connection carries no identity.
	ErrIdentityMissing = room.ErrIdentityMissing
)

// State is the lifecycle stage of a Coordinator.
type State int32

const (
	// StateAdmitting is the initial state, before the identity is in a room.
	StateAdmitting State = iota
	// StateActive means the identity is a member and both pipelines run.
	StateActive
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAdmitting:
		return "admitting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config controls admission retries and the private stream size.
type Config struct {
	// MaxAttempts is the total number of AddUserToRoom attempts.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt. Each later delay
	// doubles, up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// DiagnosticBuffer is the capacity of the private latency stream.
	DiagnosticBuffer int
	// NewTimer overrides the timer used between attempts. Nil uses a real
	// timer.
	NewTimer func() backoff.Timer
}

// DefaultConfig returns the admission policy used in production: three
// attempts, 500ms then 1000ms apart, capped at 3s, without jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       3 * time.Second,
		DiagnosticBuffer: DefaultDiagnosticBuffer,
	}
}

func sanitizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.InitialBackoff)
	}
	if cfg.DiagnosticBuffer <= 0 {
		cfg.DiagnosticBuffer = def.DiagnosticBuffer
	}
	return cfg
}

// Coordinator drives one connection through admission, active relay and
// teardown. A Coordinator is single use.
type Coordinator struct {
	conn     Connection
	registry Registry
	reporter Reporter
	log      *zap.Logger
	cfg      Config

	state     atomic.Int32
	closeOnce sync.Once

	room *room.Room
	sub  *room.Subscription
	diag *diagnostics
}

// NewCoordinator wires a coordinator for conn. A nil reporter discards
// failures and a nil logger is replaced by a no-op logger.
func NewCoordinator(conn Connection, registry Registry, reporter Reporter, log *zap.Logger, cfg Config) *Coordinator {
	if reporter == nil {
		reporter = ReporterFunc(func(Failure) {})
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		conn:     conn,
		registry: registry,
		reporter: reporter,
		log: log.With(
			zap.String("room_id", conn.RoomID()),
			zap.Stringer("identity", conn.Identity()),
		),
		cfg: sanitizeConfig(cfg),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

// Run admits the connection and relays events until either side ends the
// session or ctx is cancelled. It blocks until the coordinator is closed and
// never returns an error; failures are reported and logged.
func (c *Coordinator) Run(ctx context.Context) {
	r, err := c.admit(ctx)
	if err != nil {
		c.reject(ctx, err)
		return
	}

	metrics.ObserveAdmission(metrics.OutcomeAdmitted)
	c.log.Info("admitted")
	c.activate(ctx, r)
}

func (c *Coordinator) admit(ctx context.Context) (*room.Room, error) {
	identity := c.conn.Identity()
	if identity.IsZero() {
		return nil, ErrIdentityMissing
	}
	roomID := c.conn.RoomID()
	if roomID == "" {
		return nil, fmt.Errorf("%w: empty room id", ErrRoomNotFound)
	}

	attempts := 0
	op := func() (*room.Room, error) {
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}
		attempts++

		// The room is looked up on every attempt.
		r, ok := c.registry.Get(roomID)
		if !ok || r == nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrRoomNotFound, roomID))
		}
		if err := c.registry.AddUserToRoom(identity, r); err != nil {
			if errors.Is(err, room.ErrAdmissionConflict) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return r, nil
	}

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.cfg.InitialBackoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(c.cfg.MaxBackoff),
		backoff.WithMaxElapsedTime(0),
	)
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxAttempts-1)), ctx)

	notify := func(err error, next time.Duration) {
		metrics.ObserveAdmissionRetry()
		c.log.Debug("admission conflict, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}

	var timer backoff.Timer
	if c.cfg.NewTimer != nil {
		timer = c.cfg.NewTimer()
	}

	r, err := backoff.RetryNotifyWithTimerAndData(op, b, notify, timer)
	if err != nil {
		if errors.Is(err, room.ErrAdmissionConflict) {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrAdmissionFailed, attempts, err)
		}
		return nil, err
	}
	return r, nil
}

// reject finishes a connection that never became a member.
func (c *Coordinator) reject(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		metrics.ObserveAdmission(metrics.OutcomeCancelled)
		c.log.Debug("admission cancelled", zap.Error(err))
	default:
		metrics.ObserveAdmission(admissionOutcome(err))
		c.reporter.Report(Failure{
			RoomID:   c.conn.RoomID(),
			Identity: c.conn.Identity(),
			Reason:   err,
		})
	}

	if cerr := c.conn.Close(); cerr != nil {
		c.log.Debug("close after rejected admission", zap.Error(cerr))
	}
	c.setState(StateClosed)
}

func admissionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return metrics.OutcomeRoomNotFound
	case errors.Is(err, ErrIdentityMissing):
		return metrics.OutcomeIdentityMissing
	default:
		return metrics.OutcomeFailed
	}
}

func (c *Coordinator) activate(ctx context.Context, r *room.Room) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.room = r
	c.sub = r.Subscribe()
	c.diag = newDiagnostics(c.cfg.DiagnosticBuffer)
	c.setState(StateActive)
	metrics.ConnectionOpened()

	r.Publish(chat.NewJoined(c.conn.Identity()))

	done := make(chan error, 2)
	go func() { done <- c.inbound(ctx) }()
	go func() { done <- c.outbound(ctx) }()

	reason := <-done
	cancel()
	<-done
	c.teardown(reason)
}

func (c *Coordinator) inbound(ctx context.Context) error {
	identity := c.conn.Identity()
	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := c.conn.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrInboundStream, err)
		}
		if frame.Type != TextFrame {
			continue
		}

		event, ok := chat.ParseFrame(identity, string(frame.Data))
		if !ok {
			continue
		}
		if event.IsDiagnostic() {
			c.diag.Offer(event)
			continue
		}

		// ReadFrame may hand back a buffered frame after cancellation.
		if ctx.Err() != nil {
			return nil
		}
		c.room.Publish(event)
		metrics.ObservePublished(string(event.Kind))
	}
}

func (c *Coordinator) outbound(ctx context.Context) error {
	for event := range stream.Merge(ctx, c.sub.Events(), c.diag.Events()) {
		data, err := chat.ToWireFormat(event)
		if err != nil {
			c.log.Warn("dropping unencodable event", zap.Stringer("event_id", event.ID), zap.Error(err))
			continue
		}
		if err := c.conn.WriteFrame(ctx, data); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("write frame: %w", err)
		}
	}
	return nil
}

// teardown runs at most once per coordinator, after both pipes have stopped.
// left is published while the identity is still a member, so a later
// admission of the same identity cannot announce joined ahead of it.
func (c *Coordinator) teardown(reason error) {
	c.closeOnce.Do(func() {
		identity := c.conn.Identity()

		c.sub.Close()
		c.room.Publish(chat.NewLeft(identity))
		c.registry.RemoveUserFromRoom(identity, c.room)
		c.diag.Close()

		if err := c.conn.Close(); err != nil {
			c.log.Debug("close connection", zap.Error(err))
		}
		c.setState(StateClosed)

		metrics.ObserveDropped(c.sub.Dropped() + c.diag.Dropped())
		metrics.ConnectionClosed()

		if reason != nil {
			c.log.Warn("session closed", zap.Error(reason))
			return
		}
		c.log.Info("session closed")
	})
}
