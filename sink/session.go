// Package sink contains EventSink implementations: the per-connection
// session sink feeding a websocket write pump, and the disk sink
// persisting delivered messages.
package sink

import (
	"context"

	"rentchat/domain/event"
)

// SessionSink bridges the delivery pipeline to one connection's write
// pump through a buffered channel. Consume never blocks the pipeline:
// a full buffer drops the event (best-effort push; the store remains
// the durable source of truth).
type SessionSink struct {
	Events chan event.DomainEvent
}

func NewSessionSink(bufferSize int) *SessionSink {
	return &SessionSink{Events: make(chan event.DomainEvent, bufferSize)}
}

func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Backpressure: the connection is not draining its buffer.
		return nil
	}
}
