package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rentchat/auth"
	"rentchat/domain"
	"rentchat/repositories"
)

type stubChatService struct {
	stored    domain.Message
	duplicate bool
	err       error
}

func (s *stubChatService) SendMessage(_ context.Context, fromID, toID, body, correlationID string) (domain.Message, bool, error) {
	if s.err != nil {
		return domain.Message{}, false, s.err
	}
	return s.stored, s.duplicate, nil
}

func (s *stubChatService) GetMessages(string, string) ([]domain.Message, error) { return nil, nil }
func (s *stubChatService) GetConversations(string) ([]repositories.ConversationSummary, error) {
	return nil, nil
}
func (s *stubChatService) MarkRead(string, string) {}

func sendRequest(t *testing.T, service *stubChatService, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/chat/send", strings.NewReader(body))
	c.Set(claimsKey, &auth.CustomClaims{UserID: "alice"})

	NewChatController(slog.Default(), service).SendMessage(c)
	return recorder
}

func TestSendMessage_Fresh_Insert_Returns_Created(t *testing.T) {
	req := require.New(t)
	service := &stubChatService{stored: domain.Message{
		ID:            uuid.New(),
		CorrelationID: "corr-1",
		Conversation:  domain.NewConversationKey("alice", "bob"),
		SenderID:      "alice",
		Body:          "hello",
		CreatedAt:     time.Now().UTC(),
	}}

	recorder := sendRequest(t, service, `{"to":"bob","body":"hello","correlationId":"corr-1"}`)

	req.Equal(http.StatusCreated, recorder.Code)
	req.Contains(recorder.Body.String(), service.stored.ID.String())
}

func TestSendMessage_Suppressed_Duplicate_Returns_OK(t *testing.T) {
	req := require.New(t)
	service := &stubChatService{
		stored: domain.Message{
			ID:           uuid.New(),
			Conversation: domain.NewConversationKey("alice", "bob"),
			SenderID:     "alice",
			Body:         "hello",
			CreatedAt:    time.Now().UTC(),
		},
		duplicate: true,
	}

	// When the client retries a send inside the duplicate window
	recorder := sendRequest(t, service, `{"to":"bob","body":"hello","correlationId":"corr-1"}`)

	// Then the original record comes back with 200, not 201
	req.Equal(http.StatusOK, recorder.Code)
	req.Contains(recorder.Body.String(), service.stored.ID.String())
}

func TestSendMessage_Rejects_Invalid_Payload(t *testing.T) {
	req := require.New(t)

	recorder := sendRequest(t, &stubChatService{}, `{"to":"bob"`)

	req.Equal(http.StatusBadRequest, recorder.Code)
}
