package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRecord marks a persisted record that failed schema validation
// at a store boundary. Such records are rejected, never trusted.
var ErrMalformedRecord = errors.New("malformed record")

// DateFormat is the day bucket key used by the ledger.
const DateFormat = "2006-01-02"

// StepDelta is a validated, non-negative step increment between two
// observations. It is immutable once produced by the validator.
type StepDelta struct {
	UserID         string    `json:"user_id"`
	ObservedAt     time.Time `json:"observed_at"`
	Amount         int64     `json:"amount"`
	SourceSampleID string    `json:"source_sample_id"`
}

func (d *StepDelta) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("delta: %w: missing user id", ErrMalformedRecord)
	}
	if d.SourceSampleID == "" {
		return fmt.Errorf("delta: %w: missing sample id", ErrMalformedRecord)
	}
	if d.Amount < 0 {
		return fmt.Errorf("delta %s: %w: negative amount", d.SourceSampleID, ErrMalformedRecord)
	}
	if d.ObservedAt.IsZero() {
		return fmt.Errorf("delta %s: %w: missing observation time", d.SourceSampleID, ErrMalformedRecord)
	}
	return nil
}

// Date returns the UTC day bucket the delta belongs to.
func (d *StepDelta) Date() string {
	return d.ObservedAt.UTC().Format(DateFormat)
}

// DerivedMetrics are the side stats one delta contributes to the user totals.
type DerivedMetrics struct {
	Calories   int64   `json:"calories"`
	DistanceKm float64 `json:"distance_km"`
	XP         int64   `json:"xp"`
}

// LedgerEntry is one applied delta plus its derived contributions. The
// (UserID, Date, SampleID) triple is the idempotence key: a second apply of
// the same triple is a no-op.
type LedgerEntry struct {
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	SampleID   string    `json:"sample_id"`
	ObservedAt time.Time `json:"observed_at"`
	Steps      int64     `json:"steps"`
	Calories   int64     `json:"calories"`
	DistanceKm float64   `json:"distance_km"`
	XP         int64     `json:"xp"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewLedgerEntry(delta StepDelta, metrics DerivedMetrics) LedgerEntry {
	return LedgerEntry{
		UserID:     delta.UserID,
		Date:       delta.Date(),
		SampleID:   delta.SourceSampleID,
		ObservedAt: delta.ObservedAt,
		Steps:      delta.Amount,
		Calories:   metrics.Calories,
		DistanceKm: metrics.DistanceKm,
		XP:         metrics.XP,
		CreatedAt:  time.Now().UTC(),
	}
}

func (e *LedgerEntry) Validate() error {
	if e.UserID == "" || e.SampleID == "" || e.Date == "" {
		return fmt.Errorf("ledger entry: %w: missing key field", ErrMalformedRecord)
	}
	if _, err := time.Parse(DateFormat, e.Date); err != nil {
		return fmt.Errorf("ledger entry %s: %w: bad date %q", e.SampleID, ErrMalformedRecord, e.Date)
	}
	if e.Steps < 0 || e.Calories < 0 || e.DistanceKm < 0 || e.XP < 0 {
		return fmt.Errorf("ledger entry %s: %w: negative contribution", e.SampleID, ErrMalformedRecord)
	}
	return nil
}

// Key is the stable identity used for deduplication across local and remote
// stores.
func (e *LedgerEntry) Key() string {
	return fmt.Sprintf("%s:%s:%s", e.UserID, e.Date, e.SampleID)
}

// Delta reconstructs the step delta this entry was built from, used when a
// remote entry is replayed through the local apply path.
func (e *LedgerEntry) Delta() StepDelta {
	return StepDelta{
		UserID:         e.UserID,
		ObservedAt:     e.ObservedAt,
		Amount:         e.Steps,
		SourceSampleID: e.SampleID,
	}
}

// DayTotals is the read projection summed over a set of ledger entries.
type DayTotals struct {
	Date       string  `json:"date"`
	Steps      int64   `json:"steps"`
	Calories   int64   `json:"calories"`
	DistanceKm float64 `json:"distance_km"`
	XP         int64   `json:"xp"`
}

func (t *DayTotals) Add(e LedgerEntry) {
	t.Steps += e.Steps
	t.Calories += e.Calories
	t.DistanceKm += e.DistanceKm
	t.XP += e.XP
}
