// Package api exposes the HTTP surface of the chat subsystem: the
// authoritative send endpoint, conversation queries, and the websocket
// upgrade route.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"rentchat/domain"
	"rentchat/errors"
	"rentchat/repositories"
	"rentchat/services"
)

type ChatController struct {
	service services.IChatService
	log     *slog.Logger
}

func NewChatController(log *slog.Logger, service services.IChatService) *ChatController {
	return &ChatController{service: service, log: log}
}

type sendMessageRequest struct {
	To            string `json:"to" binding:"required"`
	Body          string `json:"body" binding:"required"`
	CorrelationID string `json:"correlationId"`
}

type messageView struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlationId,omitempty"`
	FromSelf      bool      `json:"fromSelf"`
	Body          string    `json:"body"`
	IsRead        bool      `json:"isRead"`
	CreatedAt     time.Time `json:"createdAt"`
}

type conversationView struct {
	CounterpartID string      `json:"counterpartId"`
	LastMessage   messageView `json:"lastMessage"`
	UnreadCount   int         `json:"unreadCount"`
}

// SendMessage is the durable entry point. Duplicate submissions inside
// the store's window return the original record with 200 instead of
// erroring, so HTTP retries racing the socket echo stay harmless.
func (ctl *ChatController) SendMessage(c *gin.Context) {
	claims := claimsFrom(c)
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid message data"})
		return
	}
	stored, duplicate, err := ctl.service.SendMessage(c.Request.Context(), claims.UserID, req.To, req.Body, req.CorrelationID)
	if err != nil {
		ctl.log.Warn("Send rejected", "from", claims.UserID, "err", err)
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"msg": err.Error()})
		return
	}
	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"messageId": stored.ID.String(),
		"chatId":    req.To,
		"message":   toMessageView(stored, claims.UserID),
	})
}

// GetMessages returns the conversation with :otherId ascending by
// creation time.
func (ctl *ChatController) GetMessages(c *gin.Context) {
	claims := claimsFrom(c)
	otherID := c.Param("otherId")
	if otherID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "recipient id required"})
		return
	}
	messages, err := ctl.service.GetMessages(claims.UserID, otherID)
	if err != nil {
		ctl.log.Error("Message query failed", "user_id", claims.UserID, "err", err)
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"msg": "failed to get messages"})
		return
	}
	views := lo.Map(messages, func(msg domain.Message, _ int) messageView {
		return toMessageView(msg, claims.UserID)
	})
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// GetConversations renders the conversation list: one row per
// counterpart holding the latest message and the unread count.
func (ctl *ChatController) GetConversations(c *gin.Context) {
	claims := claimsFrom(c)
	summaries, err := ctl.service.GetConversations(claims.UserID)
	if err != nil {
		ctl.log.Error("Conversation query failed", "user_id", claims.UserID, "err", err)
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"msg": "failed to get conversations"})
		return
	}
	views := lo.Map(summaries, func(s repositories.ConversationSummary, _ int) conversationView {
		return conversationView{
			CounterpartID: s.CounterpartID,
			LastMessage:   toMessageView(s.LastMessage, claims.UserID),
			UnreadCount:   s.UnreadCount,
		}
	})
	c.JSON(http.StatusOK, gin.H{"chats": views})
}

func toMessageView(msg domain.Message, selfID string) messageView {
	return messageView{
		ID:            msg.ID.String(),
		CorrelationID: msg.CorrelationID,
		FromSelf:      msg.SenderID == selfID,
		Body:          msg.Body,
		IsRead:        msg.IsRead,
		CreatedAt:     msg.CreatedAt,
	}
}
