package models

import "time"

type RoundState string

const (
	RoundStateOpen   RoundState = "OPEN"
	RoundStateClosed RoundState = "CLOSED"
)

// Round is an immutable snapshot of one betting round. A state change
// produces a new value, it never mutates a published one.
type Round struct {
	ID            int64      `json:"round_id" redis:"round_id"`
	State         RoundState `json:"state" redis:"state"`
	OpenedAt      time.Time  `json:"opened_at" redis:"opened_at"`
	ClosesAt      time.Time  `json:"closes_at" redis:"closes_at"`
	WinningNumber int        `json:"winning_number,omitempty" redis:"winning_number"` // 0 until closed
}

func NewRound(id int64, openedAt time.Time, window time.Duration) Round {
	return Round{
		ID:       id,
		State:    RoundStateOpen,
		OpenedAt: openedAt,
		ClosesAt: openedAt.Add(window),
	}
}

// Closed returns a copy of the round in the CLOSED state.
func (r Round) Closed(winningNumber int) Round {
	r.State = RoundStateClosed
	r.WinningNumber = winningNumber
	return r
}

func (r Round) IsOpen() bool {
	return r.State == RoundStateOpen
}

// AcceptsBetsAt reports whether the betting window is still running at now.
func (r Round) AcceptsBetsAt(now time.Time) bool {
	return r.IsOpen() && now.Before(r.ClosesAt)
}
