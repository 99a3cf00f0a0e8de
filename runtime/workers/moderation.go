package workers

import (
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"rentchat/contract"
	"rentchat/domain/event"
	"rentchat/moderation"
)

var _ contract.Worker = (*ModerationWorker)(nil)

// ModerationWorker sits between routing and delivery: every routed
// message has its body masked against the blocklist before anyone,
// including the sender's echo and the store, sees it.
type ModerationWorker struct {
	moderator moderation.Moderator
	rawEvents chan event.DomainEvent
	events    chan event.DomainEvent
	log       *slog.Logger
}

func NewModerationWorker(moderator moderation.Moderator,
	rawEvents, events chan event.DomainEvent, log *slog.Logger) *ModerationWorker {
	return &ModerationWorker{
		moderator: moderator,
		rawEvents: rawEvents,
		events:    events,
		log:       log,
	}
}

func (w ModerationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.rawEvents:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			routed, ok := e.(event.MessageRouted)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case w.events <- w.toDelivered(routed):
			}
		}
	}
}

func (w ModerationWorker) toDelivered(evt event.MessageRouted) event.MessageDelivered {
	masked, foundTerms := w.moderator.Censor(evt.Body)
	if len(foundTerms) > 0 {
		info := whatlanggo.Detect(evt.Body)
		w.log.Warn("Blocked terms masked",
			"sender", evt.From,
			"terms", len(foundTerms),
			"lang", info.Lang.Iso6391())
	}
	return event.MessageDelivered{
		ID:            evt.ID,
		CorrelationID: evt.CorrelationID,
		From:          evt.From,
		To:            evt.To,
		Body:          masked,
		At:            evt.At,
	}
}
