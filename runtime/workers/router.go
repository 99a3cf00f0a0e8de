package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rentchat/contract"
	"rentchat/domain"
	"rentchat/domain/event"
)

var _ contract.Worker = (*RouterWorker)(nil)

// RouterWorker is the single entry point of the delivery pipeline.
// It validates route commands, stamps the server id and timestamp, and
// emits MessageRouted events. Running exactly one instance serializes
// push order per conversation.
type RouterWorker struct {
	commands chan domain.Command
	events   chan event.DomainEvent
	log      *slog.Logger
	lastAt   map[domain.ConversationKey]time.Time
	now      func() time.Time
}

func NewRouterWorker(commands chan domain.Command, events chan event.DomainEvent, log *slog.Logger) *RouterWorker {
	return &RouterWorker{
		commands: commands,
		events:   events,
		log:      log,
		lastAt:   make(map[domain.ConversationKey]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (w *RouterWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			routeCmd, ok := cmd.(domain.RouteMessageCommand)
			if !ok {
				continue
			}
			evt, ok := w.route(routeCmd)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case w.events <- evt:
			}
		}
	}
}

// route applies the input constraints. Invalid commands are dropped
// with a warning; the transport layer already rejected them towards
// the client, this is the pipeline-side guard.
func (w *RouterWorker) route(cmd domain.RouteMessageCommand) (event.MessageRouted, bool) {
	body := domain.TrimBody(cmd.Body)
	switch {
	case cmd.To == "":
		w.log.Warn("Dropping message without recipient", "from", cmd.From)
		return event.MessageRouted{}, false
	case cmd.From == cmd.To:
		w.log.Warn("Dropping self-addressed message", "from", cmd.From)
		return event.MessageRouted{}, false
	case body == "":
		w.log.Warn("Dropping empty message", "from", cmd.From, "to", cmd.To)
		return event.MessageRouted{}, false
	}

	return event.MessageRouted{
		ID:            uuid.New(),
		CorrelationID: cmd.CorrelationID,
		From:          cmd.From,
		To:            cmd.To,
		Body:          body,
		At:            w.stamp(domain.NewConversationKey(cmd.From, cmd.To)),
	}, true
}

const (
	// The clamp only guards against clock steps between two sends, so
	// an entry older than the retention can never influence a stamp.
	clampRetention = time.Minute
	clampSweepSize = 1024
)

// stamp returns a timestamp that never decreases within a conversation,
// even if the wall clock steps backwards between two sends.
func (w *RouterWorker) stamp(key domain.ConversationKey) time.Time {
	at := w.now()
	if last, ok := w.lastAt[key]; ok && at.Before(last) {
		at = last
	}
	w.lastAt[key] = at
	if len(w.lastAt) > clampSweepSize {
		w.sweep(at)
	}
	return at
}

// sweep drops clamp entries the retention has made inert, keeping the
// map proportional to recently active conversations.
func (w *RouterWorker) sweep(at time.Time) {
	cutoff := at.Add(-clampRetention)
	for key, last := range w.lastAt {
		if last.Before(cutoff) {
			delete(w.lastAt, key)
		}
	}
}
