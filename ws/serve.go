package ws

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"rentchat/auth"
	"rentchat/contract"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client is served from another origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades connections and spawns sessions. Identity is not
// taken from the handshake: clients declare it over the socket, which
// keeps reconnects and re-declares on one code path.
type Handler struct {
	log        *slog.Logger
	registry   contract.IPresence
	dispatcher contract.Dispatcher
	tokens     auth.TokenManager
	bufferSize int
}

func NewHandler(log *slog.Logger, registry contract.IPresence,
	dispatcher contract.Dispatcher, tokens auth.TokenManager,
	bufferSize int) *Handler {
	return &Handler{
		log:        log,
		registry:   registry,
		dispatcher: dispatcher,
		tokens:     tokens,
		bufferSize: bufferSize,
	}
}

// ServeWS is the gin endpoint performing the upgrade.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "remote", c.Request.RemoteAddr, "err", err)
		return
	}
	session := NewSession(h.log, conn, h.registry, h.dispatcher, h.tokens, h.bufferSize)
	go session.Serve()
}
