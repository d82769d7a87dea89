package interfaces

import "marketsim/internal/types"

// SessionBroadcaster pushes session updates to websocket subscribers. The
// service layer depends on this interface so it never imports the hub.
type SessionBroadcaster interface {
	BroadcastSessionUpdate(sessionID string, update *types.SessionUpdate)
}
