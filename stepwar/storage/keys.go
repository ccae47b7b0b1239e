package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record is absent from the store.
var ErrNotFound = errors.New("record not found")

// Key scheme carried over from the mobile client's storage layout so that a
// device cache and this engine agree on where records live.
const (
	keyBattles       = "stepwar_battles"
	keyChallenges    = "stepwar_challenges"
	keyLeagues       = "stepwar_leagues"
	keyLeagueEntries = "stepwar_league_entries"
	keyLedgerUsers   = "stepwar_ledger_users"
)

func userKey(id string) string        { return "stepwar_user_" + id }
func observationKey(id string) string { return "stepwar_obs_" + id }
func ledgerDaysKey(id string) string  { return "stepwar_ledger_days_" + id }

func ledgerDayKey(userID, date string) string {
	return fmt.Sprintf("stepwar_ledger_%s_%s", userID, date)
}
