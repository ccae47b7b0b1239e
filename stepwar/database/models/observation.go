package models

import (
	"fmt"
	"time"
)

// Observation is the last accepted raw sample per user. It is the baseline
// the validator diffs the next cumulative reading against. A user with no
// stored observation is on their first sample of a tracking session.
type Observation struct {
	UserID          string    `json:"user_id"`
	CumulativeSteps int64     `json:"cumulative_steps"`
	ObservedAt      time.Time `json:"observed_at"`
}

func (o *Observation) Validate() error {
	if o.UserID == "" {
		return fmt.Errorf("observation: %w: missing user id", ErrMalformedRecord)
	}
	if o.CumulativeSteps < 0 {
		return fmt.Errorf("observation %s: %w: negative cumulative count", o.UserID, ErrMalformedRecord)
	}
	return nil
}
