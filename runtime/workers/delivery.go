package workers

import (
	"context"
	"log/slog"
	"time"

	"rentchat/contract"
	"rentchat/domain/event"
)

var _ contract.Worker = (*DeliveryWorker)(nil)

// DeliveryWorker resolves recipients against the presence registry and
// pushes envelopes to live connections: the recipient gets the message,
// the sender gets a self-echo so every open session of theirs converges
// to the same view. Persistence runs through the permanent sinks after
// the push, bounded by sinkTimeout, so a slow store can never delay
// live delivery. Push is at-most-once; durability comes from the store.
type DeliveryWorker struct {
	log            *slog.Logger
	registry       contract.IPresence
	permanentSinks []contract.EventSink
	events         chan event.DomainEvent
	sinkTimeout    time.Duration
}

func NewDeliveryWorker(log *slog.Logger, registry contract.IPresence,
	permanentSinks []contract.EventSink, events chan event.DomainEvent,
	sinkTimeout time.Duration) *DeliveryWorker {
	return &DeliveryWorker{
		log:            log,
		registry:       registry,
		permanentSinks: permanentSinks,
		events:         events,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *DeliveryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			switch evt := e.(type) {
			case event.MessageDelivered:
				w.deliver(ctx, evt)
			case event.UnreadCountChanged:
				w.notify(ctx, evt.UserID, evt)
			}
		}
	}
}

func (w *DeliveryWorker) deliver(ctx context.Context, evt event.MessageDelivered) {
	// Push first. The recipient may be offline; the message then waits
	// in the store for the next conversation fetch.
	w.notify(ctx, evt.To, evt)

	echo := evt
	echo.FromSelf = true
	w.notify(ctx, evt.From, echo)

	// Persistence is decoupled from the push. A timeout here means the
	// message was seen live but is only best-effort durable; the
	// authoritative HTTP send path is the durability source of truth.
	for _, sink := range w.permanentSinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Durability warning: sink failed after live push",
				"conversation", evt.Conversation().String(),
				"err", err)
		}
		cancel()
	}
}

func (w *DeliveryWorker) notify(ctx context.Context, userID string, e event.DomainEvent) {
	sink, ok := w.registry.Lookup(userID)
	if !ok {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(pushCtx, e); err != nil {
		w.log.Warn("Push failed", "user_id", userID, "err", err)
	}
}
