package trading

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrPositionNotFound   = errors.New("position not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrSessionInactive    = errors.New("session is not active")
	ErrSessionEnded       = errors.New("session has ended")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrOrderNotPending    = errors.New("order is not pending")
	ErrInvalidThreshold   = errors.New("invalid exit threshold")
)
