package models

import "time"

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit || t == OrderTypeStop
}

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
)

// Order is the audit record of every trade request. For limit and stop
// orders Price is the trigger threshold until fill; once filled it holds the
// execution price. Triggered marks fills produced by the exit monitor.
type Order struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	SessionID  string      `json:"session_id" gorm:"index;not null"`
	Symbol     string      `json:"symbol" gorm:"not null"`
	Side       OrderSide   `json:"side" gorm:"not null"`
	Type       OrderType   `json:"type" gorm:"not null"`
	Status     OrderStatus `json:"status" gorm:"index;not null"`
	Quantity   int64       `json:"quantity" gorm:"not null"`
	Price      float64     `json:"price"`
	Tick       int         `json:"tick"`
	StopLoss   *float64    `json:"stop_loss,omitempty"`
	TakeProfit *float64    `json:"take_profit,omitempty"`
	Triggered  bool        `json:"triggered" gorm:"default:false"`
	Reason     string      `json:"reason,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// Position tracks per-symbol holdings under weighted average cost. AvgPrice
// is zero exactly when Holdings is zero. StopLoss and TakeProfit are armed
// exit thresholds; nil means disarmed.
type Position struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SessionID  string    `json:"session_id" gorm:"uniqueIndex:idx_session_symbol;not null"`
	Symbol     string    `json:"symbol" gorm:"uniqueIndex:idx_session_symbol;not null"`
	Holdings   int64     `json:"holdings" gorm:"not null;default:0"`
	AvgPrice   float64   `json:"avg_price" gorm:"not null;default:0"`
	LastPrice  float64   `json:"last_price"`
	PnL        float64   `json:"pnl"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
