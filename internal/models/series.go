package models

import "time"

// Bar is a single OHLCV row of a historical series. Rows are ordered
// ascending by timestamp and the row index is the tick number for a given
// symbol+interval; series are frozen for the lifetime of a session.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// TickData is a Bar annotated with its position in the series.
type TickData struct {
	Symbol    string    `json:"symbol"`
	Tick      int       `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Quote is the market snapshot for a symbol at a tick. At tick 0, or when the
// previous tick is unavailable, PrevClose equals LastPrice and both deltas
// are zero.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Tick      int     `json:"tick"`
	LastPrice float64 `json:"last_price"`
	PrevClose float64 `json:"prev_close"`
	AbsChange float64 `json:"abs_change"`
	PctChange float64 `json:"pct_change"`
}
