package models

import (
	"fmt"
	"time"
)

type BattleStatus string

const (
	BattleStatusActive    BattleStatus = "active"
	BattleStatusCompleted BattleStatus = "completed"
)

// Battle is a head-to-head step contest between two users over a fixed
// window. Side totals only count deltas observed inside the window.
type Battle struct {
	ID           string       `json:"id"`
	ParticipantA string       `json:"participant_a"`
	ParticipantB string       `json:"participant_b"`
	StepsA       int64        `json:"steps_a"`
	StepsB       int64        `json:"steps_b"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      time.Time    `json:"end_time"`
	Status       BattleStatus `json:"status"`
	// Winner is empty while active and after a draw.
	Winner    string     `json:"winner,omitempty"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (b *Battle) Validate() error {
	if b.ID == "" || b.ParticipantA == "" || b.ParticipantB == "" {
		return fmt.Errorf("battle: %w: missing id or participant", ErrMalformedRecord)
	}
	if b.ParticipantA == b.ParticipantB {
		return fmt.Errorf("battle %s: %w: participant battles itself", b.ID, ErrMalformedRecord)
	}
	if b.StepsA < 0 || b.StepsB < 0 {
		return fmt.Errorf("battle %s: %w: negative side total", b.ID, ErrMalformedRecord)
	}
	if !b.EndTime.After(b.StartTime) {
		return fmt.Errorf("battle %s: %w: window ends before it starts", b.ID, ErrMalformedRecord)
	}
	switch b.Status {
	case BattleStatusActive, BattleStatusCompleted:
	default:
		return fmt.Errorf("battle %s: %w: unknown status %q", b.ID, ErrMalformedRecord, b.Status)
	}
	return nil
}

// Involves reports whether the user fights on either side.
func (b *Battle) Involves(userID string) bool {
	return b.ParticipantA == userID || b.ParticipantB == userID
}

// InWindow reports whether an observation time counts toward this battle.
func (b *Battle) InWindow(at time.Time) bool {
	return !at.Before(b.StartTime) && !at.After(b.EndTime)
}

// AddSteps credits a delta to the user's side. Completed battles are frozen.
func (b *Battle) AddSteps(userID string, amount int64) bool {
	if b.Status != BattleStatusActive {
		return false
	}
	switch userID {
	case b.ParticipantA:
		b.StepsA += amount
	case b.ParticipantB:
		b.StepsB += amount
	default:
		return false
	}
	return true
}

// Settle transitions the battle to completed exactly once and picks the
// winner from the scoped totals. A tie leaves Winner empty (draw).
func (b *Battle) Settle(now time.Time) bool {
	if b.Status != BattleStatusActive {
		return false
	}
	b.Status = BattleStatusCompleted
	settled := now.UTC()
	b.SettledAt = &settled
	switch {
	case b.StepsA > b.StepsB:
		b.Winner = b.ParticipantA
	case b.StepsB > b.StepsA:
		b.Winner = b.ParticipantB
	}
	return true
}

// Due reports whether the window has elapsed and the battle awaits settlement.
func (b *Battle) Due(now time.Time) bool {
	return b.Status == BattleStatusActive && !now.Before(b.EndTime)
}
