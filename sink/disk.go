package sink

import (
	"context"
	"fmt"
	"log/slog"

	"rentchat/domain"
	"rentchat/domain/event"
	"rentchat/repositories"
)

// DiskSink persists delivered messages. It shares the repository's
// duplicate window with the HTTP send path, so a socket echo racing an
// HTTP retry still yields a single stored record.
type DiskSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageDelivered:
		_, duplicate, err := d.repository.CreateMessage(toMessage(evt))
		if duplicate {
			d.log.Debug("Store already holds this message",
				"conversation", evt.Conversation().String())
		}
		return err
	default:
		d.log.Debug(fmt.Sprintf("Not a persisted event : %T", evt))
		return nil
	}
}

func toMessage(evt event.MessageDelivered) domain.Message {
	return domain.Message{
		ID:            evt.ID,
		CorrelationID: evt.CorrelationID,
		Conversation:  domain.NewConversationKey(evt.From, evt.To),
		SenderID:      evt.From,
		Body:          evt.Body,
		IsRead:        false,
		CreatedAt:     evt.At,
	}
}
