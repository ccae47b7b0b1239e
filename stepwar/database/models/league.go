package models

import (
	"fmt"
	"sort"
	"time"
)

// League is a shared leaderboard with an optional scoring season. A zero
// SeasonStart/SeasonEnd means the league scores every observation.
type League struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Public      bool      `json:"public"`
	JoinCode    string    `json:"join_code"`
	SeasonStart time.Time `json:"season_start,omitempty"`
	SeasonEnd   time.Time `json:"season_end,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l *League) Validate() error {
	if l.ID == "" || l.Name == "" {
		return fmt.Errorf("league: %w: missing id or name", ErrMalformedRecord)
	}
	if !l.SeasonEnd.IsZero() && !l.SeasonEnd.After(l.SeasonStart) {
		return fmt.Errorf("league %s: %w: season ends before it starts", l.ID, ErrMalformedRecord)
	}
	return nil
}

// InSeason reports whether an observation time scores in this league.
func (l *League) InSeason(at time.Time) bool {
	if l.SeasonStart.IsZero() && l.SeasonEnd.IsZero() {
		return true
	}
	return !at.Before(l.SeasonStart) && !at.After(l.SeasonEnd)
}

// LeagueEntry is one user's scoped running total inside a league. Rank is
// intentionally absent here: it is derived on read, never stored.
type LeagueEntry struct {
	LeagueID  string    `json:"league_id"`
	UserID    string    `json:"user_id"`
	Steps     int64     `json:"steps"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *LeagueEntry) Validate() error {
	if e.LeagueID == "" || e.UserID == "" {
		return fmt.Errorf("league entry: %w: missing league or user id", ErrMalformedRecord)
	}
	if e.Steps < 0 {
		return fmt.Errorf("league entry %s/%s: %w: negative steps", e.LeagueID, e.UserID, ErrMalformedRecord)
	}
	return nil
}

// RankedEntry pairs an entry with its recomputed ordinal position.
type RankedEntry struct {
	LeagueEntry
	Rank int `json:"rank"`
}

// RankEntries derives the leaderboard order: steps descending, earliest join
// time breaking ties. Input is not mutated.
func RankEntries(entries []LeagueEntry) []RankedEntry {
	sorted := make([]LeagueEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Steps != sorted[j].Steps {
			return sorted[i].Steps > sorted[j].Steps
		}
		return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
	})

	ranked := make([]RankedEntry, len(sorted))
	for i, e := range sorted {
		ranked[i] = RankedEntry{LeagueEntry: e, Rank: i + 1}
	}
	return ranked
}
