package models

import (
	"fmt"
	"time"
)

// User is the progression profile owned by the ledger. All counters are
// cumulative and only ever move forward through ledger application.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar"`
	Steps      int64     `json:"steps"`
	Calories   int64     `json:"calories"`
	DistanceKm float64   `json:"distance_km"`
	XP         int64     `json:"xp"`
	Level      int       `json:"level"`
	JoinedAt   time.Time `json:"joined_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user: %w: missing id", ErrMalformedRecord)
	}
	if u.Steps < 0 || u.Calories < 0 || u.DistanceKm < 0 || u.XP < 0 {
		return fmt.Errorf("user %s: %w: negative counter", u.ID, ErrMalformedRecord)
	}
	if u.Level < 1 {
		return fmt.Errorf("user %s: %w: level below 1", u.ID, ErrMalformedRecord)
	}
	return nil
}
