package websocket

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"marketsim/internal/types"
)

// Client is one websocket connection. Clients only send subscribe and ping
// frames; all trading goes through the REST API.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
	logger *zap.SugaredLogger
}

func NewClient(conn *websocket.Conn, hub *Hub, logger *zap.SugaredLogger) *Client {
	return &Client{
		ID:     uuid.NewString(),
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Hub:    hub,
		logger: logger,
	}
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(1024)
	c.Conn.SetPongHandler(func(string) error { return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debugw("websocket read error", "client_id", c.ID, "error", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.logger.Debugw("websocket write error", "client_id", c.ID, "error", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) handleMessage(raw []byte) {
	var req types.SubscribeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch types.MessageType(req.Type) {
	case "subscribe":
		if req.SessionID == "" {
			c.sendError("session_id is required")
			return
		}
		c.Hub.Subscribe(c, req.SessionID)
	case types.MessageTypePing:
		c.sendMessage(types.Message{Type: types.MessageTypePong})
	default:
		c.sendError("unknown message type: " + req.Type)
	}
}

func (c *Client) sendMessage(message types.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		c.logger.Errorw("failed to marshal message", "client_id", c.ID, "error", err)
		return
	}
	select {
	case c.Send <- data:
	default:
		c.logger.Warnw("client send buffer full, dropping message", "client_id", c.ID)
	}
}

func (c *Client) sendError(reason string) {
	c.sendMessage(types.Message{
		Type:    types.MessageTypeError,
		Payload: map[string]string{"error": reason},
	})
}
