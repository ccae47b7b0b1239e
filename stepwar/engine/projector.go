package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stepwar/stepwar/stepwar/database/models"
	"github.com/stepwar/stepwar/stepwar/storage"
)

// ProjectionResult reports what one delta's fan-out touched.
type ProjectionResult struct {
	BattlesUpdated      int
	BattlesSettled      []models.Battle
	ChallengesUpdated   int
	ChallengesCompleted []models.Challenge
	ChallengesFailed    []models.Challenge
	LeagueEntriesUpdate int
	// SkippedEntities lists entity ids halted on invariant violations.
	// Their errors are logged; the rest of the fan-out continues.
	SkippedEntities []string
}

// Projector fans a ledger-applied delta out to every battle, challenge and
// league entry the user participates in. It is invoked exactly once per
// Applied entry and never for AlreadyApplied replays.
type Projector struct {
	battles    storage.BattleStore
	challenges storage.ChallengeStore
	leagues    storage.LeagueStore
	now        func() time.Time
}

func NewProjector(battles storage.BattleStore, challenges storage.ChallengeStore, leagues storage.LeagueStore) *Projector {
	return &Projector{
		battles:    battles,
		challenges: challenges,
		leagues:    leagues,
		now:        time.Now,
	}
}

// WithClock overrides the settlement clock, used by tests.
func (p *Projector) WithClock(now func() time.Time) *Projector {
	p.now = now
	return p
}

func (p *Projector) Project(ctx context.Context, delta models.StepDelta, metrics models.DerivedMetrics) (*ProjectionResult, error) {
	result := &ProjectionResult{}

	if err := p.projectBattles(ctx, delta, result); err != nil {
		return nil, err
	}
	if err := p.projectChallenges(ctx, delta, metrics, result); err != nil {
		return nil, err
	}
	if err := p.projectLeagues(ctx, delta, result); err != nil {
		return nil, err
	}

	slog.Debug("Delta fan-out complete",
		slog.String("type", "projector"),
		slog.String("user_id", delta.UserID),
		slog.String("sample_id", delta.SourceSampleID),
		slog.Int("battles_updated", result.BattlesUpdated),
		slog.Int("battles_settled", len(result.BattlesSettled)),
		slog.Int("challenges_updated", result.ChallengesUpdated),
		slog.Int("league_entries_updated", result.LeagueEntriesUpdate))

	return result, nil
}

func (p *Projector) projectBattles(ctx context.Context, delta models.StepDelta, result *ProjectionResult) error {
	battles, err := p.battles.ForUser(ctx, delta.UserID)
	if err != nil {
		return fmt.Errorf("load battles: %w", err)
	}

	now := p.now()
	for i := range battles {
		b := battles[i]
		if b.Status != models.BattleStatusActive || !b.InWindow(delta.ObservedAt) {
			continue
		}
		if !b.AddSteps(delta.UserID, delta.Amount) {
			continue
		}
		result.BattlesUpdated++

		if b.Due(now) {
			b.Settle(now)
			result.BattlesSettled = append(result.BattlesSettled, b)
			slog.Info("Battle settled",
				slog.String("type", "projector"),
				slog.String("battle_id", b.ID),
				slog.String("winner", b.Winner),
				slog.Int64("steps_a", b.StepsA),
				slog.Int64("steps_b", b.StepsB))
		}

		if err := p.battles.Upsert(ctx, &b); err != nil {
			return fmt.Errorf("store battle %s: %w", b.ID, err)
		}
	}
	return nil
}

func (p *Projector) projectChallenges(ctx context.Context, delta models.StepDelta, metrics models.DerivedMetrics, result *ProjectionResult) error {
	challenges, err := p.challenges.ForUser(ctx, delta.UserID)
	if err != nil {
		return fmt.Errorf("load challenges: %w", err)
	}

	now := p.now()
	for i := range challenges {
		c := challenges[i]
		if c.Status != models.ChallengeStatusActive || !c.Metric.StepDriven() {
			continue
		}

		var amount float64
		switch c.Metric {
		case models.MetricSteps:
			amount = float64(delta.Amount)
		case models.MetricCalories:
			amount = float64(metrics.Calories)
		case models.MetricDistance:
			amount = metrics.DistanceKm
		}
		if !c.Advance(amount, now) {
			continue
		}
		result.ChallengesUpdated++

		switch c.Status {
		case models.ChallengeStatusCompleted:
			result.ChallengesCompleted = append(result.ChallengesCompleted, c)
			slog.Info("Challenge completed",
				slog.String("type", "projector"),
				slog.String("challenge_id", c.ID),
				slog.String("user_id", c.UserID),
				slog.Float64("target", c.Target))
		case models.ChallengeStatusFailed:
			result.ChallengesFailed = append(result.ChallengesFailed, c)
		}

		if err := p.challenges.Upsert(ctx, &c); err != nil {
			return fmt.Errorf("store challenge %s: %w", c.ID, err)
		}
	}
	return nil
}

func (p *Projector) projectLeagues(ctx context.Context, delta models.StepDelta, result *ProjectionResult) error {
	entries, err := p.leagues.EntriesForUser(ctx, delta.UserID)
	if err != nil {
		return fmt.Errorf("load league entries: %w", err)
	}

	for i := range entries {
		e := entries[i]
		if e.Steps < 0 {
			// Cannot legally exist; halt this entity, keep the rest going.
			slog.Error("League entry halted",
				slog.String("type", "projector"),
				slog.String("league_id", e.LeagueID),
				slog.String("user_id", e.UserID),
				slog.Any("error", fmt.Errorf("%w: negative steps %d", ErrInvariantViolation, e.Steps)))
			result.SkippedEntities = append(result.SkippedEntities, e.LeagueID+"/"+e.UserID)
			continue
		}

		league, err := p.leagues.League(ctx, e.LeagueID)
		if err != nil {
			return fmt.Errorf("load league %s: %w", e.LeagueID, err)
		}
		if !league.InSeason(delta.ObservedAt) {
			continue
		}

		e.Steps += delta.Amount
		e.UpdatedAt = p.now().UTC()
		if err := p.leagues.UpsertEntry(ctx, &e); err != nil {
			return fmt.Errorf("store league entry %s/%s: %w", e.LeagueID, e.UserID, err)
		}
		result.LeagueEntriesUpdate++
	}
	return nil
}

// SettleExpired sweeps battles whose window elapsed without further deltas
// and expires challenges past their deadline. Called from the scheduler.
func (p *Projector) SettleExpired(ctx context.Context) (int, error) {
	battles, err := p.battles.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load battles: %w", err)
	}

	now := p.now()
	settled := 0
	for i := range battles {
		b := battles[i]
		if !b.Due(now) {
			continue
		}
		b.Settle(now)
		if err := p.battles.Upsert(ctx, &b); err != nil {
			return settled, fmt.Errorf("store battle %s: %w", b.ID, err)
		}
		settled++
	}

	challenges, err := p.challenges.All(ctx)
	if err != nil {
		return settled, fmt.Errorf("load challenges: %w", err)
	}
	for i := range challenges {
		c := challenges[i]
		if !c.Expire(now) {
			continue
		}
		if err := p.challenges.Upsert(ctx, &c); err != nil {
			return settled, fmt.Errorf("store challenge %s: %w", c.ID, err)
		}
		settled++
	}

	return settled, nil
}
