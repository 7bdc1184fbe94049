package models

import "time"

type RoundState string

const (
	RoundStateAccepting RoundState = "accepting"
	RoundStateRunning   RoundState = "running"
	RoundStateFinished  RoundState = "finished"
)

// Round is one crash round in a room. At most one non-finished round exists
// per room at any time. CrashPoint is fixed at creation and never recomputed;
// Multiplier only moves upward while the round is running.
//
// Rounds are persisted whole, secret included; clients only ever see a
// RoundView until the reveal.
type Round struct {
	ID         string     `json:"id" redis:"id"`
	Room       string     `json:"room" redis:"room"`
	Secret     string     `json:"secret" redis:"secret"`
	Commitment string     `json:"commitment" redis:"commitment"`
	CrashPoint float64    `json:"crash_point" redis:"crash_point"`
	State      RoundState `json:"state" redis:"state"`
	Multiplier float64    `json:"multiplier" redis:"multiplier"`
	Ticks      int        `json:"ticks" redis:"ticks"`
	CreatedAt  time.Time  `json:"created_at" redis:"created_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty" redis:"finished_at"`
}

// Active reports whether the round still blocks a new start for its room.
func (r *Round) Active() bool {
	return r.State != RoundStateFinished
}

// Crashed reports whether the multiplier has reached the crash point.
func (r *Round) Crashed() bool {
	return r.Multiplier >= r.CrashPoint
}

// RoundView is the read-only snapshot exposed to the command surface. It never
// carries the secret or the crash point of a live round.
type RoundView struct {
	ID         string     `json:"id"`
	Room       string     `json:"room"`
	Commitment string     `json:"commitment"`
	State      RoundState `json:"state"`
	Multiplier float64    `json:"multiplier"`
	BetCount   int        `json:"bet_count"`
}

// Payout is one settled cash-out, published with the final reveal.
type Payout struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}
