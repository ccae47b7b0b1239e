package models

import (
	"fmt"
	"time"
)

type ChallengeStatus string

const (
	ChallengeStatusActive    ChallengeStatus = "active"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusFailed    ChallengeStatus = "failed"
)

type MetricType string

const (
	MetricSteps    MetricType = "steps"
	MetricCalories MetricType = "calories"
	MetricDistance MetricType = "distance"
	MetricTime     MetricType = "time"
	MetricBattles  MetricType = "battles"
)

// StepDriven reports whether the metric advances through step delta fan-out.
// Time and battle challenges are advanced by external collaborators.
func (m MetricType) StepDriven() bool {
	switch m {
	case MetricSteps, MetricCalories, MetricDistance:
		return true
	}
	return false
}

// Challenge is a personal target against one metric with a deadline.
// Current only increases; completed and failed are terminal.
type Challenge struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Title       string          `json:"title"`
	Metric      MetricType      `json:"metric"`
	Target      float64         `json:"target"`
	Current     float64         `json:"current"`
	Deadline    time.Time       `json:"deadline"`
	Status      ChallengeStatus `json:"status"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (c *Challenge) Validate() error {
	if c.ID == "" || c.UserID == "" {
		return fmt.Errorf("challenge: %w: missing id or owner", ErrMalformedRecord)
	}
	switch c.Metric {
	case MetricSteps, MetricCalories, MetricDistance, MetricTime, MetricBattles:
	default:
		return fmt.Errorf("challenge %s: %w: unknown metric %q", c.ID, ErrMalformedRecord, c.Metric)
	}
	switch c.Status {
	case ChallengeStatusActive, ChallengeStatusCompleted, ChallengeStatusFailed:
	default:
		return fmt.Errorf("challenge %s: %w: unknown status %q", c.ID, ErrMalformedRecord, c.Status)
	}
	if c.Target <= 0 {
		return fmt.Errorf("challenge %s: %w: non-positive target", c.ID, ErrMalformedRecord)
	}
	if c.Current < 0 {
		return fmt.Errorf("challenge %s: %w: negative progress", c.ID, ErrMalformedRecord)
	}
	return nil
}

// Advance adds progress and applies the completion/failure transition.
// Terminal states never revert; further progress on them is dropped.
func (c *Challenge) Advance(amount float64, now time.Time) bool {
	if c.Status != ChallengeStatusActive || amount <= 0 {
		return false
	}
	if now.After(c.Deadline) {
		c.Status = ChallengeStatusFailed
		return true
	}
	c.Current += amount
	if c.Current >= c.Target {
		c.Status = ChallengeStatusCompleted
		completed := now.UTC()
		c.CompletedAt = &completed
	}
	return true
}

// Expire fails an active challenge whose deadline has passed.
func (c *Challenge) Expire(now time.Time) bool {
	if c.Status != ChallengeStatusActive || !now.After(c.Deadline) {
		return false
	}
	c.Status = ChallengeStatusFailed
	return true
}

// ProgressPercent returns completion as a percentage clamped to [0,100].
func (c *Challenge) ProgressPercent() float64 {
	if c.Target <= 0 {
		return 0
	}
	pct := c.Current / c.Target * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
