package types

import (
	"time"

	"marketsim/internal/models"
)

type MessageType string

const (
	MessageTypeSessionUpdate MessageType = "session_update"
	MessageTypeSubscribed    MessageType = "subscribed"
	MessageTypeError         MessageType = "error"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
)

// Message is the envelope for every websocket frame.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// SessionUpdate is the projection pushed to subscribers after every sweep
// and every synchronous trade.
type SessionUpdate struct {
	SessionID   string            `json:"session_id"`
	CurrentTick int               `json:"current_tick"`
	Cash        float64           `json:"cash"`
	IsActive    bool              `json:"is_active"`
	PnL         float64           `json:"pnl"`
	Portfolio   []models.Position `json:"portfolio"`
	Timestamp   time.Time         `json:"timestamp"`
}

// SubscribeRequest is the only inbound frame clients send.
type SubscribeRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}
