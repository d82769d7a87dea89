package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP connections and hands them to the hub.
type Handler struct {
	hub    *Hub
	logger *zap.SugaredLogger
}

func NewHandler(hub *Hub, logger *zap.SugaredLogger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, h.hub, h.logger)
	h.hub.RegisterClient(client)
	client.Start()

	// Optional subscription via query parameter.
	if sessionID := c.Query("session_id"); sessionID != "" {
		h.hub.Subscribe(client, sessionID)
	}
}

// RegisterWebSocketRoutes registers the websocket endpoint.
func RegisterWebSocketRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/ws", handler.HandleConnection)
}
