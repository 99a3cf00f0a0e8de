// Package client implements the connection lifecycle on the consumer
// side: dialing, identity declaration, heartbeat, bounded-backoff
// reconnection and duplicate suppression.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rentchat/errors"
	"rentchat/ws"
)

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	// StatusOffline is terminal for a Run call: the attempt budget is
	// exhausted and the caller decides whether to start over.
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusOffline:
		return "Offline"
	default:
		return "Disconnected"
	}
}

type Config struct {
	URL    string
	UserID string
	Token  string

	BaseDelay           time.Duration
	MaxDelay            time.Duration
	MaxAttempts         int
	HeartbeatInterval   time.Duration
	MaxMissedHeartbeats int
	DedupWindow         time.Duration
}

func (c *Config) withDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.MaxMissedHeartbeats <= 0 {
		c.MaxMissedHeartbeats = 2
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 5 * time.Second
	}
}

// Handlers receive pushed state. Nil handlers are skipped.
type Handlers struct {
	OnMessage     func(env ws.Envelope)
	OnUnreadCount func(count int)
	OnEvicted     func(reason string)
	OnStatus      func(status Status)
}

// Controller owns one logical connection to the chat server. Run keeps
// it alive across drops until the context is cancelled, the attempt
// budget is spent, or the server evicts the identity.
type Controller struct {
	cfg      Config
	handlers Handlers
	log      *slog.Logger
	dedup    *Deduper

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	status  Status
	missed  int
}

func NewController(log *slog.Logger, cfg Config, handlers Handlers) *Controller {
	cfg.withDefaults()
	return &Controller{
		cfg:      cfg,
		handlers: handlers,
		log:      log,
		dedup:    NewDeduper(cfg.DedupWindow),
		status:   StatusDisconnected,
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run blocks until ctx is cancelled, the identity is evicted by a
// newer session, or MaxAttempts consecutive failures occurred. The
// backoff is exponential from BaseDelay, capped at MaxDelay; attempts
// reset on every successful connect.
func (c *Controller) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected)
			return ctx.Err()
		}

		c.setStatus(StatusConnecting)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			attempt++
			if attempt >= c.cfg.MaxAttempts {
				c.log.Error("Reconnect attempts exhausted", "attempts", attempt)
				c.setStatus(StatusOffline)
				return errors.ErrOffline
			}
			delay := c.backoff(attempt)
			c.log.Warn("Connect failed, backing off",
				"attempt", attempt, "delay", delay, "err", err)
			c.setStatus(StatusDisconnected)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.attach(conn)
		c.setStatus(StatusConnected)

		// Re-declaring is idempotent: the server re-registers and
		// evicts whatever stale handle it still held for us.
		if err := c.writeFrame(ws.ClientFrame{
			Type:   ws.TypeDeclareIdentity,
			UserID: c.cfg.UserID,
			Token:  c.cfg.Token,
		}); err != nil {
			c.detach()
			continue
		}

		evicted := c.serveConnection(ctx, conn)
		c.detach()
		if evicted {
			c.setStatus(StatusDisconnected)
			return nil
		}
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected)
			return ctx.Err()
		}
		c.log.Warn("Connection lost, reconnecting")
		c.setStatus(StatusDisconnected)
	}
}

// Send fails synchronously while disconnected; there is no internal
// queue, retrying is the caller's concern. On success the generated
// correlation id is returned so the caller can track pending state.
func (c *Controller) Send(toID, body string) (string, error) {
	if c.Status() != StatusConnected {
		return "", errors.ErrNotConnected
	}
	correlationID := uuid.NewString()
	c.dedup.MarkSent(correlationID, body, time.Now().UTC())
	err := c.writeFrame(ws.ClientFrame{
		Type:          ws.TypeSendMessage,
		To:            toID,
		Body:          body,
		CorrelationID: correlationID,
	})
	if err != nil {
		return "", err
	}
	return correlationID, nil
}

func (c *Controller) MarkRead(otherPartyID string) error {
	if c.Status() != StatusConnected {
		return errors.ErrNotConnected
	}
	return c.writeFrame(ws.ClientFrame{
		Type:         ws.TypeMarkRead,
		OtherPartyID: otherPartyID,
	})
}

// serveConnection pumps frames until the connection dies. Returns true
// when the server evicted this identity (no reconnect in that case: a
// retry would just evict the newer session in turn).
func (c *Controller) serveConnection(ctx context.Context, conn *websocket.Conn) bool {
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go c.heartbeatLoop(heartbeatCtx, conn)

	for {
		var frame ws.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return false
		}
		switch frame.Type {
		case ws.TypeHeartbeatAck:
			c.mu.Lock()
			c.missed = 0
			c.mu.Unlock()
		case ws.TypeReceiveMessage:
			if frame.Envelope == nil {
				continue
			}
			if c.dedup.IsDuplicate(*frame.Envelope, time.Now().UTC()) {
				c.log.Debug("Duplicate envelope dropped", "correlation_id", frame.Envelope.CorrelationID)
				continue
			}
			if c.handlers.OnMessage != nil {
				c.handlers.OnMessage(*frame.Envelope)
			}
		case ws.TypeUnreadCount:
			if frame.Count != nil && c.handlers.OnUnreadCount != nil {
				c.handlers.OnUnreadCount(*frame.Count)
			}
		case ws.TypeEvicted:
			c.log.Warn("Signed in elsewhere", "reason", frame.Reason)
			if c.handlers.OnEvicted != nil {
				c.handlers.OnEvicted(frame.Reason)
			}
			return true
		case ws.TypeError:
			c.log.Warn("Server rejected a frame", "code", frame.Code)
		}
	}
}

// heartbeatLoop detects half-open connections the transport never
// reports as closed: missing MaxMissedHeartbeats acks in a row forces
// the connection down, which sends Run into its reconnect cycle.
func (c *Controller) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			missed := c.missed
			c.missed++
			c.mu.Unlock()
			if missed >= c.cfg.MaxMissedHeartbeats {
				c.log.Warn("Heartbeat acks missing, forcing reconnect", "missed", missed)
				_ = conn.Close()
				return
			}
			if err := c.writeFrame(ws.ClientFrame{Type: ws.TypeHeartbeat}); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Controller) backoff(attempt int) time.Duration {
	delay := c.cfg.BaseDelay << (attempt - 1)
	if delay > c.cfg.MaxDelay || delay <= 0 {
		delay = c.cfg.MaxDelay
	}
	return delay
}

func (c *Controller) attach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.missed = 0
}

func (c *Controller) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Controller) writeFrame(frame ws.ClientFrame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.mu.Unlock()
	if changed && c.handlers.OnStatus != nil {
		c.handlers.OnStatus(status)
	}
}
