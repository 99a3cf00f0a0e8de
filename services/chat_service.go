//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rentchat/contract"
	"rentchat/domain"
	"rentchat/errors"
	"rentchat/moderation"
	"rentchat/repositories"
)

type IChatService interface {
	// SendMessage is the authoritative, blocking send path: it
	// validates, moderates and persists synchronously, sharing the
	// repository's duplicate window with the socket path. The bool
	// reports a suppressed duplicate, in which case the returned
	// message is the original record.
	SendMessage(ctx context.Context, fromID, toID, body, correlationID string) (domain.Message, bool, error)
	GetMessages(userID, otherID string) ([]domain.Message, error)
	GetConversations(userID string) ([]repositories.ConversationSummary, error)
	// MarkRead propagates asynchronously through the receipts worker.
	MarkRead(readerID, otherPartyID string)
}

type ChatService struct {
	repository repositories.IMessageRepository
	dispatcher contract.Dispatcher
	moderator  moderation.Moderator
}

func NewChatService(repository repositories.IMessageRepository,
	dispatcher contract.Dispatcher, moderator moderation.Moderator) *ChatService {
	return &ChatService{
		repository: repository,
		dispatcher: dispatcher,
		moderator:  moderator,
	}
}

func (s *ChatService) SendMessage(_ context.Context, fromID, toID, body, correlationID string) (domain.Message, bool, error) {
	trimmed := domain.TrimBody(body)
	switch {
	case toID == "":
		return domain.Message{}, false, errors.ErrMissingRecipient
	case fromID == toID:
		return domain.Message{}, false, errors.ErrSelfMessage
	case trimmed == "":
		return domain.Message{}, false, errors.ErrEmptyBody
	}

	masked, _ := s.moderator.Censor(trimmed)
	return s.repository.CreateMessage(domain.Message{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		Conversation:  domain.NewConversationKey(fromID, toID),
		SenderID:      fromID,
		Body:          masked,
		CreatedAt:     time.Now().UTC(),
	})
}

func (s *ChatService) GetMessages(userID, otherID string) ([]domain.Message, error) {
	return s.repository.GetMessages(domain.NewConversationKey(userID, otherID))
}

func (s *ChatService) GetConversations(userID string) ([]repositories.ConversationSummary, error) {
	return s.repository.GetConversations(userID)
}

func (s *ChatService) MarkRead(readerID, otherPartyID string) {
	s.dispatcher.Dispatch(domain.MarkReadCommand{
		ReaderID:     readerID,
		OtherPartyID: otherPartyID,
	})
}
