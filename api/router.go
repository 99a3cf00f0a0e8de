package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"rentchat/auth"
	"rentchat/services"
	"rentchat/ws"
)

// NewRouter wires the HTTP routes. The websocket route skips the
// bearer middleware: identity is declared over the socket itself so
// reconnects and re-declares share one path.
func NewRouter(log *slog.Logger, service services.IChatService,
	wsHandler *ws.Handler, tokens auth.TokenManager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	controller := NewChatController(log, service)

	chat := engine.Group("/api/chat", BearerAuth(tokens))
	{
		chat.POST("/send", controller.SendMessage)
		chat.GET("/messages/:otherId", controller.GetMessages)
		chat.GET("/conversations", controller.GetConversations)
	}

	engine.GET("/ws", wsHandler.ServeWS)
	return engine
}
