package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rentchat/domain/event"
	"rentchat/moderation"
)

func TestModerationWorker_Masks_Routed_Body(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"paypal"}, '*')
	req.NoError(err)

	rawEvents := make(chan event.DomainEvent, 1)
	events := make(chan event.DomainEvent, 1)
	worker := NewModerationWorker(moderator, rawEvents, events, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	routed := event.MessageRouted{
		ID:            uuid.New(),
		CorrelationID: "corr-7",
		From:          "alice",
		To:            "bob",
		Body:          "pay me on paypal",
		At:            time.Now().UTC(),
	}
	rawEvents <- routed

	select {
	case e := <-events:
		msg, ok := e.(event.MessageDelivered)
		req.True(ok)
		// Then the delivered copy keeps identity and loses the term
		req.Equal(routed.ID, msg.ID)
		req.Equal("corr-7", msg.CorrelationID)
		req.Equal("pay me on ******", msg.Body)
		req.False(msg.FromSelf)
	case <-time.After(time.Second):
		req.Fail("expected a delivered event")
	}
}

func TestModerationWorker_Clean_Body_Passes_Through(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"paypal"}, '*')
	req.NoError(err)

	rawEvents := make(chan event.DomainEvent, 1)
	events := make(chan event.DomainEvent, 1)
	worker := NewModerationWorker(moderator, rawEvents, events, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	rawEvents <- event.MessageRouted{
		ID:   uuid.New(),
		From: "alice",
		To:   "bob",
		Body: "the rent includes utilities",
	}

	select {
	case e := <-events:
		req.Equal("the rent includes utilities", e.(event.MessageDelivered).Body)
	case <-time.After(time.Second):
		req.Fail("expected a delivered event")
	}
}
