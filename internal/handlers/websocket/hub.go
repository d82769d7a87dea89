package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"marketsim/internal/types"
)

type subscription struct {
	client    *Client
	sessionID string
}

// Hub maintains connected clients and routes session updates to the clients
// subscribed to each session.
type Hub struct {
	clients     map[*Client]string
	subscribe   chan subscription
	register    chan *Client
	unregister  chan *Client
	broadcast   chan sessionMessage
	logger      *zap.SugaredLogger
	mutex       sync.RWMutex
}

type sessionMessage struct {
	sessionID string
	data      []byte
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]string),
		subscribe:  make(chan subscription),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan sessionMessage, 64),
		logger:     logger,
	}
}

// Run processes registration, subscription and broadcast events. Call in
// its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = ""
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debugw("client connected", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debugw("client disconnected", "client_id", client.ID, "total", total)

		case sub := <-h.subscribe:
			h.mutex.Lock()
			if _, ok := h.clients[sub.client]; ok {
				h.clients[sub.client] = sub.sessionID
			}
			h.mutex.Unlock()
			sub.client.sendMessage(types.Message{
				Type:    types.MessageTypeSubscribed,
				Payload: map[string]string{"session_id": sub.sessionID},
			})
			h.logger.Debugw("client subscribed", "client_id", sub.client.ID, "session_id", sub.sessionID)

		case msg := <-h.broadcast:
			h.mutex.RLock()
			for client, sessionID := range h.clients {
				if sessionID != msg.sessionID {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					h.logger.Warnw("client send buffer full, dropping frame", "client_id", client.ID)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// BroadcastSessionUpdate pushes an update to every client subscribed to the
// session. Implements interfaces.SessionBroadcaster.
func (h *Hub) BroadcastSessionUpdate(sessionID string, update *types.SessionUpdate) {
	data, err := json.Marshal(types.Message{
		Type:    types.MessageTypeSessionUpdate,
		Payload: update,
	})
	if err != nil {
		h.logger.Errorw("failed to marshal session update", "session_id", sessionID, "error", err)
		return
	}

	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, data: data}:
	default:
		h.logger.Warnw("broadcast queue full, dropping update", "session_id", sessionID)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RegisterClient adds a new client to the hub.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient removes a client from the hub.
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Subscribe binds a client to one session's update stream. A later call
// replaces the previous subscription.
func (h *Hub) Subscribe(client *Client, sessionID string) {
	h.subscribe <- subscription{client: client, sessionID: sessionID}
}
