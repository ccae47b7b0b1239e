package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stepwar/stepwar/stepwar/database/models"
	"github.com/stepwar/stepwar/stepwar/storage"
)

type AppendStatus string

const (
	// AppendApplied means the entry was stored and user totals advanced.
	AppendApplied AppendStatus = "applied"
	// AppendAlreadyApplied means the idempotence key was already present.
	// Not an error: this is the safe-replay signal the reconciler relies on.
	AppendAlreadyApplied AppendStatus = "already_applied"
)

type AppendResult struct {
	Status  AppendStatus
	Entry   models.LedgerEntry
	Metrics models.DerivedMetrics
	User    *models.User
}

// Ledger is the append-only source of truth for per-user progression.
// Corrections arrive as new forward entries; the only removal is the
// rollback of an append whose totals update failed mid-apply.
type Ledger struct {
	entries    storage.LedgerStore
	users      storage.UserStore
	calculator *Calculator
}

func NewLedger(entries storage.LedgerStore, users storage.UserStore, calculator *Calculator) *Ledger {
	return &Ledger{
		entries:    entries,
		users:      users,
		calculator: calculator,
	}
}

// Entries exposes the backing store for reconciliation.
func (l *Ledger) Entries() storage.LedgerStore {
	return l.entries
}

// Append applies one validated delta. Re-applying the same delta is a no-op
// reported as AppendAlreadyApplied.
func (l *Ledger) Append(ctx context.Context, delta models.StepDelta) (*AppendResult, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}

	user, err := l.users.Get(ctx, delta.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, delta.UserID)
	}

	metrics := l.calculator.Derive(delta.Amount)
	entry := models.NewLedgerEntry(delta, metrics)

	applied, err := l.entries.AppendEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}
	if !applied {
		slog.Debug("Ledger entry already applied",
			slog.String("type", "ledger"),
			slog.String("user_id", delta.UserID),
			slog.String("sample_id", delta.SourceSampleID))
		return &AppendResult{Status: AppendAlreadyApplied, Entry: entry}, nil
	}

	user.Steps += delta.Amount
	user.Calories += metrics.Calories
	user.DistanceKm = round2(user.DistanceKm + metrics.DistanceKm)
	user.XP += metrics.XP
	user.Level = l.calculator.Level(user.XP)
	if err := l.users.Put(ctx, user); err != nil {
		// Roll the entry back so a retry re-applies delta and totals
		// together. Leaving it in place would make every retry hit the
		// dedup branch and lose the totals for good.
		if rbErr := l.entries.RemoveEntry(ctx, entry); rbErr != nil {
			slog.Error("Failed to roll back ledger entry",
				slog.String("type", "ledger"),
				slog.String("user_id", delta.UserID),
				slog.String("sample_id", delta.SourceSampleID),
				slog.Any("error", rbErr))
		}
		return nil, fmt.Errorf("update user totals: %w", err)
	}

	slog.Info("Ledger entry applied",
		slog.String("type", "ledger"),
		slog.String("user_id", delta.UserID),
		slog.String("sample_id", delta.SourceSampleID),
		slog.Int64("steps", delta.Amount),
		slog.Int64("xp_gained", metrics.XP),
		slog.Int("level", user.Level))

	return &AppendResult{
		Status:  AppendApplied,
		Entry:   entry,
		Metrics: metrics,
		User:    user,
	}, nil
}

// TotalsForDate sums the entries of one UTC day.
func (l *Ledger) TotalsForDate(ctx context.Context, userID, date string) (models.DayTotals, error) {
	totals := models.DayTotals{Date: date}
	entries, err := l.entries.EntriesForDate(ctx, userID, date)
	if err != nil {
		return totals, err
	}
	for _, e := range entries {
		totals.Add(e)
	}
	return totals, nil
}

// TotalsForRange sums entries for each day in [from, to], inclusive. Days
// with no entries produce zero totals so weekly views stay dense.
func (l *Ledger) TotalsForRange(ctx context.Context, userID string, from, to time.Time) ([]models.DayTotals, error) {
	start := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s before start %s", to.Format(models.DateFormat), from.Format(models.DateFormat))
	}

	var out []models.DayTotals
	for day := start; !day.After(end); day = day.Add(24 * time.Hour) {
		totals, err := l.TotalsForDate(ctx, userID, day.Format(models.DateFormat))
		if err != nil {
			return nil, err
		}
		out = append(out, totals)
	}
	return out, nil
}
