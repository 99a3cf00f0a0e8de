// Package ws hosts the websocket transport: the per-connection session
// state machine and the HTTP upgrade handler.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"rentchat/auth"
	"rentchat/contract"
	"rentchat/domain"
	"rentchat/domain/event"
	"rentchat/sink"
)

// State is the connection session lifecycle. Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateBoundPending
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateBoundPending:
		return "BoundPending"
	case StateActive:
		return "Active"
	default:
		return "Closed"
	}
}

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 4096
)

// Conn is the subset of *websocket.Conn the session needs; tests
// substitute a scripted implementation.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Message type constants matching gorilla/websocket, kept local so the
// Conn interface stays mockable without importing the library here.
const (
	textMessage = 1
	pingMessage = 9
)

// Session drives one physical connection through
// Connecting -> BoundPending -> Active -> Closed. It owns its presence
// entry: only this session's closure, or a newer registration for the
// same identity, removes it.
type Session struct {
	conn       Conn
	registry   contract.IPresence
	dispatcher contract.Dispatcher
	tokens     auth.TokenManager
	sink       *sink.SessionSink
	outbound   chan ServerFrame
	log        *slog.Logger

	mu     sync.Mutex
	state  State
	userID string

	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(log *slog.Logger, conn Conn, registry contract.IPresence,
	dispatcher contract.Dispatcher, tokens auth.TokenManager,
	bufferSize int) *Session {
	return &Session{
		conn:       conn,
		registry:   registry,
		dispatcher: dispatcher,
		tokens:     tokens,
		sink:       sink.NewSessionSink(bufferSize),
		outbound:   make(chan ServerFrame, bufferSize),
		log:        log,
		state:      StateConnecting,
		done:       make(chan struct{}),
	}
}

// Sink exposes the session's event sink; the registry stores it.
func (s *Session) Sink() contract.EventSink {
	return s.sink
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Serve runs the pumps and blocks until the connection dies. The
// transport handshake already succeeded when Serve is called, so the
// session moves straight to BoundPending and waits for an identity.
func (s *Session) Serve() {
	s.mu.Lock()
	s.state = StateBoundPending
	s.mu.Unlock()

	go s.writePump()
	s.readPump()
	s.Close("transport closed")
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug("Read loop ended", "err", err)
			return
		}
		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.push(errorFrame("invalid_json"))
			continue
		}
		if err := frame.Validate(); err != nil {
			s.push(errorFrame("missing_fields"))
			continue
		}
		s.handleFrame(frame)
	}
}

// handleFrame applies a transport event as a state machine transition
// trigger. Invalid input is rejected synchronously and never reaches
// the pipeline.
func (s *Session) handleFrame(frame ClientFrame) {
	switch frame.Type {
	case TypeDeclareIdentity:
		s.declareIdentity(frame.UserID, frame.Token)
	case TypeRemoveIdentity:
		s.removeIdentity(frame.UserID)
	case TypeSendMessage:
		s.sendMessage(frame)
	case TypeMarkRead:
		s.markRead(frame.OtherPartyID)
	case TypeHeartbeat:
		s.push(ServerFrame{Type: TypeHeartbeatAck})
	}
}

// declareIdentity binds the connection to a user. A failed validation
// keeps the session in BoundPending (retryable, not fatal); a repeat
// declare re-registers, evicting any stale prior handle.
func (s *Session) declareIdentity(userID, token string) {
	if _, err := s.tokens.ValidateIdentity(token, userID); err != nil {
		s.log.Warn("Identity declare rejected", "user_id", userID, "err", err)
		s.push(errorFrame("invalid_identity"))
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if s.userID != "" && s.userID != userID {
		// Rebinding to another identity releases the previous entry.
		s.registry.Unregister(s.userID, s.sink)
	}
	s.userID = userID
	s.state = StateActive
	s.mu.Unlock()

	evicted, replaced := s.registry.Register(userID, s.sink)
	if replaced && evicted != nil {
		_ = evicted.Consume(context.Background(), event.SessionEvicted{
			UserID: userID,
			Reason: "signed in elsewhere",
		})
	}

	// Close may have run between the state change above and the
	// registration; its unregister found no entry then, so the entry
	// must be released here or a dead session stays registered.
	s.mu.Lock()
	closed := s.state == StateClosed
	s.mu.Unlock()
	if closed {
		s.registry.Unregister(userID, s.sink)
		return
	}
	s.log.Info("Identity bound", "user_id", userID)

	// Fresh sessions start with the current unread badge.
	s.dispatcher.Dispatch(domain.RefreshUnreadCommand{UserID: userID})
}

// removeIdentity is an explicit logout: the binding goes away but the
// connection stays open for a later declare.
func (s *Session) removeIdentity(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.userID != userID {
		return
	}
	s.registry.Unregister(s.userID, s.sink)
	s.userID = ""
	s.state = StateBoundPending
	s.log.Info("Identity removed", "user_id", userID)
}

func (s *Session) sendMessage(frame ClientFrame) {
	s.mu.Lock()
	state, userID := s.state, s.userID
	s.mu.Unlock()

	if state != StateActive {
		s.push(errorFrame("not_bound"))
		return
	}
	switch {
	case frame.To == userID:
		s.push(errorFrame("self_send"))
		return
	case domain.TrimBody(frame.Body) == "":
		s.push(errorFrame("empty_body"))
		return
	}

	s.dispatcher.Dispatch(domain.RouteMessageCommand{
		From:          userID,
		To:            frame.To,
		Body:          frame.Body,
		CorrelationID: frame.CorrelationID,
	})
}

func (s *Session) markRead(otherPartyID string) {
	s.mu.Lock()
	state, userID := s.state, s.userID
	s.mu.Unlock()

	if state != StateActive {
		s.push(errorFrame("not_bound"))
		return
	}
	if otherPartyID == userID {
		s.push(errorFrame("self_send"))
		return
	}
	s.dispatcher.Dispatch(domain.MarkReadCommand{
		ReaderID:     userID,
		OtherPartyID: otherPartyID,
	})
}

// push queues a frame for the write pump without ever blocking the
// read loop.
func (s *Session) push(frame ServerFrame) {
	select {
	case s.outbound <- frame:
	default:
		s.log.Warn("Outbound buffer full, dropping frame", "type", frame.Type)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close("write pump ended")
	}()

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.outbound:
			if !s.write(frame) {
				return
			}
		case e := <-s.sink.Events:
			frame, ok := toServerFrame(e)
			if !ok {
				continue
			}
			if !s.write(frame) {
				return
			}
			if frame.Type == TypeEvicted {
				// A newer connection owns the identity now; this one
				// stops believing itself live.
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(pingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) write(frame ServerFrame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.log.Error("Frame marshal failed", "type", frame.Type, "err", err)
		return true
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(textMessage, payload); err != nil {
		return false
	}
	return true
}

// Close is terminal and idempotent. It releases the presence entry
// only if this session still owns it, then tears down the transport.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		userID := s.userID
		s.state = StateClosed
		s.mu.Unlock()

		if userID != "" {
			s.registry.Unregister(userID, s.sink)
		}
		close(s.done)
		_ = s.conn.Close()
		s.log.Debug("Session closed", "user_id", userID, "reason", reason)
	})
}
