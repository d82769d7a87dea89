package models

import (
	"math"
	"time"
)

type SessionState string

const (
	SessionDormant SessionState = "dormant"
	SessionActive  SessionState = "active"
	SessionEnded   SessionState = "ended"
)

// Session is one replay trading session. CurrentTick is a cache of the last
// computed value only; the authoritative tick is always recomputed from
// elapsed wall-clock time via TickAt.
type Session struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	UserID          string     `json:"user_id" gorm:"index;not null"`
	Label           string     `json:"label"`
	Cash            float64    `json:"cash" gorm:"not null"`
	StartBalance    float64    `json:"start_balance" gorm:"not null"`
	IsActive        bool       `json:"is_active" gorm:"not null;default:false"`
	StartTime       time.Time  `json:"start_time"`
	DurationSeconds int        `json:"duration_seconds" gorm:"not null"`
	CurrentTick     int        `json:"current_tick" gorm:"not null;default:0"`
	PnL             float64    `json:"pnl"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) State() SessionState {
	switch {
	case s.EndedAt != nil:
		return SessionEnded
	case s.IsActive:
		return SessionActive
	default:
		return SessionDormant
	}
}

// TickAt maps wall-clock time to the session's logical tick on a series of
// totalTicks rows: floor(elapsed/duration * totalTicks), clamped to
// [0, totalTicks-1]. Pure function of its inputs.
func (s *Session) TickAt(now time.Time, totalTicks int) int {
	if totalTicks <= 0 || s.DurationSeconds <= 0 {
		return 0
	}

	elapsed := now.Sub(s.StartTime).Seconds()
	fraction := elapsed / float64(s.DurationSeconds)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	tick := int(math.Floor(fraction * float64(totalTicks)))
	if tick > totalTicks-1 {
		tick = totalTicks - 1
	}
	return tick
}

// Expired reports whether the session's configured duration has fully elapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.StartTime).Seconds() >= float64(s.DurationSeconds)
}
