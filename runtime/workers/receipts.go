package workers

import (
	"context"
	"log/slog"

	"rentchat/contract"
	"rentchat/domain"
	"rentchat/domain/event"
	"rentchat/repositories"
)

var _ contract.Worker = (*ReceiptsWorker)(nil)

// ReceiptsWorker propagates read receipts: it flips stored messages in
// bulk and emits unread-count events for both parties, which the
// delivery worker pushes to whoever is online. It also serves
// RefreshUnreadCommand so a freshly bound session gets its badge.
type ReceiptsWorker struct {
	repository repositories.IMessageRepository
	commands   chan domain.Command
	events     chan event.DomainEvent
	log        *slog.Logger
}

func NewReceiptsWorker(repository repositories.IMessageRepository,
	commands chan domain.Command, events chan event.DomainEvent,
	log *slog.Logger) *ReceiptsWorker {
	return &ReceiptsWorker{
		repository: repository,
		commands:   commands,
		events:     events,
		log:        log,
	}
}

func (w *ReceiptsWorker) Run(ctx context.Context) error {
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
			switch c := cmd.(type) {
			case domain.MarkReadCommand:
				w.markRead(ctx, c)
			case domain.RefreshUnreadCommand:
				w.pushCount(ctx, c.UserID, domain.ConversationKey{})
			}
		}
	}
}

func (w *ReceiptsWorker) markRead(ctx context.Context, cmd domain.MarkReadCommand) {
	flipped, err := w.repository.MarkConversationRead(cmd.ReaderID, cmd.OtherPartyID)
	if err != nil {
		w.log.Error("Mark read failed",
			"reader", cmd.ReaderID,
			"other_party", cmd.OtherPartyID,
			"err", err)
		return
	}
	w.log.Debug("Conversation marked read",
		"reader", cmd.ReaderID,
		"other_party", cmd.OtherPartyID,
		"flipped", flipped)

	key := cmd.Conversation()
	w.pushCount(ctx, cmd.ReaderID, key)
	w.pushCount(ctx, cmd.OtherPartyID, key)
}

func (w *ReceiptsWorker) pushCount(ctx context.Context, userID string, key domain.ConversationKey) {
	counts, err := w.repository.UnreadCounts(userID)
	if err != nil {
		w.log.Error("Unread count lookup failed", "user_id", userID, "err", err)
		return
	}
	evt := event.UnreadCountChanged{
		UserID: userID,
		Count:  repositories.UnreadBadge(counts),
		Key:    key,
	}
	select {
	case <-ctx.Done():
	case w.events <- evt:
	}
}
