package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"rentchat/domain"
	"rentchat/domain/event"
	"rentchat/moderation"
	"rentchat/repositories"
	"rentchat/runtime"
	"rentchat/runtime/workers"
	"rentchat/services"
	"rentchat/sink"
)

type stack struct {
	cfg          Config
	orchestrator *runtime.Orchestrator
	registry     *runtime.Registry
	repository   repositories.MessageRepository
	service      services.IChatService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	req := require.New(t)

	cfg, err := LoadConfig()
	req.NoError(err)

	// Reduced to 16 Mo for testing (avoid gigabytes of preallocation)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	supervisor := workers.NewSupervisor(log, cfg.RestartInterval)
	registry := runtime.NewRegistry()
	repository := repositories.NewMessageRepository(db, log, cfg.DuplicateWindow)
	orchestrator := runtime.NewOrchestrator(
		log, supervisor, registry, repository,
		cfg.BufferSize, time.Second, time.Hour, '*')

	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(func() {
		orchestrator.Stop()
		cancel()
	})

	blocklist, err := runtime.LoadDefaultBlocklist()
	req.NoError(err)
	moderator, err := moderation.NewModerator(blocklist.Terms, '*')
	req.NoError(err)

	return &stack{
		cfg:          cfg,
		orchestrator: orchestrator,
		registry:     registry,
		repository:   repository,
		service:      services.NewChatService(repository, orchestrator, moderator),
	}
}

// connect simulates a live bound session: a registered sink plus the
// badge refresh a real connection dispatches after binding.
func (s *stack) connect(userID string) *sink.SessionSink {
	sessionSink := sink.NewSessionSink(s.cfg.BufferSize)
	s.registry.Register(userID, sessionSink)
	s.orchestrator.Dispatch(domain.RefreshUnreadCommand{UserID: userID})
	return sessionSink
}

func nextDelivery(req *require.Assertions, s *sink.SessionSink, timeout time.Duration) event.MessageDelivered {
	deadline := time.After(timeout)
	for {
		select {
		case e := <-s.Events:
			if msg, ok := e.(event.MessageDelivered); ok {
				return msg
			}
		case <-deadline:
			req.Fail("Timeout: no delivery reached the session")
			return event.MessageDelivered{}
		}
	}
}

// waitMessages polls the store until the conversation holds n records;
// persistence runs after the live push and is therefore asynchronous
// from the test's point of view.
func waitMessages(req *require.Assertions, repository repositories.IMessageRepository,
	key domain.ConversationKey, n int, timeout time.Duration) []domain.Message {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		messages, err := repository.GetMessages(key)
		req.NoError(err)
		if len(messages) == n {
			return messages
		}
		time.Sleep(10 * time.Millisecond)
	}
	req.Failf("timeout", "conversation never reached %d stored messages", n)
	return nil
}

func nextBadge(req *require.Assertions, s *sink.SessionSink, timeout time.Duration) event.UnreadCountChanged {
	deadline := time.After(timeout)
	for {
		select {
		case e := <-s.Events:
			if evt, ok := e.(event.UnreadCountChanged); ok {
				return evt
			}
		case <-deadline:
			req.Fail("Timeout: no badge update reached the session")
			return event.UnreadCountChanged{}
		}
	}
}

// Scenario: alice is online, bob is offline. Alice sends over the
// durable path and the socket path; bob later connects, sees his badge,
// reads the conversation and both parties converge.
func Test_Scenario_Offline_Recipient_Catches_Up(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	ctx := context.Background()

	aliceSink := s.connect("alice")
	// The fresh badge for alice is empty
	req.Zero(nextBadge(req, aliceSink, s.cfg.WaitTimeout).Count)

	// When alice sends one message through the durable path
	stored, duplicate, err := s.service.SendMessage(ctx, "alice", "bob", "hello bob", "corr-http-1")
	req.NoError(err)
	req.False(duplicate)
	req.False(stored.IsRead)

	// And one through the socket pipeline
	s.orchestrator.Dispatch(domain.RouteMessageCommand{
		From:          "alice",
		To:            "bob",
		Body:          "are you around?",
		CorrelationID: "corr-ws-1",
	})

	// Then alice sees her own echo, already marked read
	echo := nextDelivery(req, aliceSink, s.cfg.WaitTimeout)
	req.True(echo.FromSelf)
	req.Equal("are you around?", echo.Body)

	// And both messages are durable while bob is offline
	waitMessages(req, s.repository, domain.NewConversationKey("alice", "bob"), 2, s.cfg.WaitTimeout)

	// When bob connects, his badge shows one conversation with unread
	bobSink := s.connect("bob")
	req.Equal(1, nextBadge(req, bobSink, s.cfg.WaitTimeout).Count)

	// When bob reads the conversation
	s.service.MarkRead("bob", "alice")

	// Then his badge clears and alice is notified too
	req.Zero(nextBadge(req, bobSink, s.cfg.WaitTimeout).Count)
	nextBadge(req, aliceSink, s.cfg.WaitTimeout)

	messages, err := s.repository.GetMessages(domain.NewConversationKey("alice", "bob"))
	req.NoError(err)
	for _, msg := range messages {
		req.True(msg.IsRead, "body=%s", msg.Body)
	}
}

// Scenario: both parties online, a blocked term in flight and a double
// submission racing the socket echo.
func Test_Scenario_Online_Delivery_With_Moderation_And_Dedup(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	ctx := context.Background()

	aliceSink := s.connect("alice")
	bobSink := s.connect("bob")
	nextBadge(req, aliceSink, s.cfg.WaitTimeout)
	nextBadge(req, bobSink, s.cfg.WaitTimeout)

	// When alice sends a message with off-platform contact bait
	s.orchestrator.Dispatch(domain.RouteMessageCommand{
		From:          "alice",
		To:            "bob",
		Body:          "pay the deposit by western union",
		CorrelationID: "corr-1",
	})

	// Then bob receives it masked
	toBob := nextDelivery(req, bobSink, s.cfg.WaitTimeout)
	req.Equal("pay the deposit by *************", toBob.Body)
	req.Equal("corr-1", toBob.CorrelationID)
	req.False(toBob.FromSelf)

	echo := nextDelivery(req, aliceSink, s.cfg.WaitTimeout)
	req.True(echo.FromSelf)
	req.Equal(toBob.ID, echo.ID)

	// Given the socket copy reached the store
	waitMessages(req, s.repository, domain.NewConversationKey("alice", "bob"), 1, s.cfg.WaitTimeout)

	// When the client retries the same send over HTTP inside the window
	retry, duplicate, err := s.service.SendMessage(ctx, "alice", "bob", toBob.Body, "corr-1")
	req.NoError(err)

	// Then the retry is flagged and the store kept a single record
	req.True(duplicate)
	req.Equal(toBob.ID, retry.ID)
	messages, err := s.repository.GetMessages(domain.NewConversationKey("alice", "bob"))
	req.NoError(err)
	req.Len(messages, 1)
}
