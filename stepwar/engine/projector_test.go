package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stepwar/stepwar/stepwar/database/models"
	"github.com/stepwar/stepwar/stepwar/storage"
)

type projectorFixture struct {
	projector  *Projector
	battles    storage.BattleStore
	challenges storage.ChallengeStore
	leagues    storage.LeagueStore
}

func newProjectorFixture(now time.Time) *projectorFixture {
	kv := storage.NewMemoryKV()
	battles := storage.NewBattleStore(kv)
	challenges := storage.NewChallengeStore(kv)
	leagues := storage.NewLeagueStore(kv)
	p := NewProjector(battles, challenges, leagues).WithClock(func() time.Time { return now })
	return &projectorFixture{
		projector:  p,
		battles:    battles,
		challenges: challenges,
		leagues:    leagues,
	}
}

func fixtureDelta(userID string, amount int64, at time.Time) (models.StepDelta, models.DerivedMetrics) {
	delta := models.StepDelta{
		UserID:         userID,
		ObservedAt:     at.UTC(),
		Amount:         amount,
		SourceSampleID: SampleID(userID, amount, at),
	}
	return delta, NewCalculator(NewDefaultConfig()).Derive(amount)
}

func Test_Projector_BattleAccumulatesAndSettles(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	now := start.Add(12 * time.Hour)

	f := newProjectorFixture(now)
	battle := &models.Battle{
		ID:           "battle-1",
		ParticipantA: "user-1",
		ParticipantB: "user-2",
		StartTime:    start,
		EndTime:      end,
		Status:       models.BattleStatusActive,
		CreatedAt:    start,
		UpdatedAt:    start,
	}
	if err := f.battles.Upsert(ctx, battle); err != nil {
		t.Fatalf("seed battle: %v", err)
	}

	delta, metrics := fixtureDelta("user-1", 8547, start.Add(10*time.Hour))
	result, err := f.projector.Project(ctx, delta, metrics)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.BattlesUpdated != 1 {
		t.Errorf("battles updated = %d, want 1", result.BattlesUpdated)
	}

	delta2, metrics2 := fixtureDelta("user-2", 7200, start.Add(11*time.Hour))
	if _, err := f.projector.Project(ctx, delta2, metrics2); err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	// Advance the clock past the window; the next delta inside the window
	// triggers settlement.
	f.projector.WithClock(func() time.Time { return end.Add(time.Minute) })
	delta3, metrics3 := fixtureDelta("user-1", 10, start.Add(23*time.Hour))
	result, err = f.projector.Project(ctx, delta3, metrics3)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(result.BattlesSettled) != 1 {
		t.Fatalf("battles settled = %d, want 1", len(result.BattlesSettled))
	}

	settled := result.BattlesSettled[0]
	if settled.Status != models.BattleStatusCompleted {
		t.Errorf("battle status = %v, want completed", settled.Status)
	}
	if settled.Winner != "user-1" {
		t.Errorf("winner = %q, want user-1", settled.Winner)
	}
	if settled.StepsA != 8557 || settled.StepsB != 7200 {
		t.Errorf("totals = %d vs %d, want 8557 vs 7200", settled.StepsA, settled.StepsB)
	}
}

func Test_Projector_BattleOutsideWindowIgnored(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	f := newProjectorFixture(start.Add(time.Hour))

	battle := &models.Battle{
		ID:           "battle-1",
		ParticipantA: "user-1",
		ParticipantB: "user-2",
		StartTime:    start,
		EndTime:      start.Add(24 * time.Hour),
		Status:       models.BattleStatusActive,
		CreatedAt:    start,
		UpdatedAt:    start,
	}
	if err := f.battles.Upsert(ctx, battle); err != nil {
		t.Fatalf("seed battle: %v", err)
	}

	delta, metrics := fixtureDelta("user-1", 500, start.Add(-time.Hour))
	result, err := f.projector.Project(ctx, delta, metrics)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.BattlesUpdated != 0 {
		t.Errorf("battles updated = %d, want 0", result.BattlesUpdated)
	}
}

func Test_Projector_BattleDraw(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 1, 0, time.UTC)
	b := models.Battle{
		ID:           "battle-1",
		ParticipantA: "user-1",
		ParticipantB: "user-2",
		StepsA:       5000,
		StepsB:       5000,
		StartTime:    now.Add(-24 * time.Hour),
		EndTime:      now.Add(-time.Second),
		Status:       models.BattleStatusActive,
	}

	if !b.Settle(now) {
		t.Fatal("Settle() = false, want true")
	}
	if b.Winner != "" {
		t.Errorf("draw winner = %q, want empty", b.Winner)
	}

	// Settlement is exactly-once.
	if b.Settle(now.Add(time.Hour)) {
		t.Error("second Settle() = true, want false")
	}
}

func Test_Projector_ChallengeMetrics(t *testing.T) {
	tests := []struct {
		name        string
		metric      models.MetricType
		target      float64
		steps       int64
		wantCurrent float64
		wantStatus  models.ChallengeStatus
	}{
		{
			name:        "Steps challenge progresses",
			metric:      models.MetricSteps,
			target:      10000,
			steps:       4000,
			wantCurrent: 4000,
			wantStatus:  models.ChallengeStatusActive,
		},
		{
			name:        "Steps challenge completes at target",
			metric:      models.MetricSteps,
			target:      10000,
			steps:       10000,
			wantCurrent: 10000,
			wantStatus:  models.ChallengeStatusCompleted,
		},
		{
			name:        "Calorie challenge uses derived calories",
			metric:      models.MetricCalories,
			target:      500,
			steps:       10000,
			wantCurrent: 400,
			wantStatus:  models.ChallengeStatusActive,
		},
		{
			name:        "Distance challenge uses derived km",
			metric:      models.MetricDistance,
			target:      5,
			steps:       10000,
			wantCurrent: 8,
			wantStatus:  models.ChallengeStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
			f := newProjectorFixture(now)

			challenge := &models.Challenge{
				ID:        "challenge-1",
				UserID:    "user-1",
				Title:     "test",
				Metric:    tt.metric,
				Target:    tt.target,
				Deadline:  now.Add(24 * time.Hour),
				Status:    models.ChallengeStatusActive,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := f.challenges.Upsert(ctx, challenge); err != nil {
				t.Fatalf("seed challenge: %v", err)
			}

			delta, metrics := fixtureDelta("user-1", tt.steps, now)
			if _, err := f.projector.Project(ctx, delta, metrics); err != nil {
				t.Fatalf("Project() error = %v", err)
			}

			stored, err := f.challenges.ForUser(ctx, "user-1")
			if err != nil {
				t.Fatalf("ForUser() error = %v", err)
			}
			if len(stored) != 1 {
				t.Fatalf("challenges = %d, want 1", len(stored))
			}
			if stored[0].Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", stored[0].Status, tt.wantStatus)
			}
			if tt.wantStatus == models.ChallengeStatusActive && stored[0].Current != tt.wantCurrent {
				t.Errorf("current = %v, want %v", stored[0].Current, tt.wantCurrent)
			}
		})
	}
}

func Test_Projector_CompletedChallengeFrozen(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	f := newProjectorFixture(now)

	completed := now.Add(-time.Hour)
	challenge := &models.Challenge{
		ID:          "challenge-1",
		UserID:      "user-1",
		Title:       "done",
		Metric:      models.MetricSteps,
		Target:      1000,
		Current:     1000,
		Deadline:    now.Add(24 * time.Hour),
		Status:      models.ChallengeStatusCompleted,
		CompletedAt: &completed,
		CreatedAt:   now.Add(-48 * time.Hour),
		UpdatedAt:   completed,
	}
	if err := f.challenges.Upsert(ctx, challenge); err != nil {
		t.Fatalf("seed challenge: %v", err)
	}

	delta, metrics := fixtureDelta("user-1", 5000, now)
	result, err := f.projector.Project(ctx, delta, metrics)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.ChallengesUpdated != 0 {
		t.Errorf("challenges updated = %d, want 0", result.ChallengesUpdated)
	}

	stored, _ := f.challenges.ForUser(ctx, "user-1")
	if stored[0].Current != 1000 {
		t.Errorf("terminal challenge advanced to %v", stored[0].Current)
	}
}

func Test_Projector_LeagueScopedTotals(t *testing.T) {
	ctx := context.Background()
	seasonStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seasonEnd := seasonStart.Add(30 * 24 * time.Hour)
	now := seasonStart.Add(10 * 24 * time.Hour)
	f := newProjectorFixture(now)

	league := &models.League{
		ID:          "league-1",
		Name:        "June Sprint",
		Public:      true,
		SeasonStart: seasonStart,
		SeasonEnd:   seasonEnd,
		CreatedAt:   seasonStart,
	}
	if err := f.leagues.UpsertLeague(ctx, league); err != nil {
		t.Fatalf("seed league: %v", err)
	}
	entry := &models.LeagueEntry{
		LeagueID: "league-1",
		UserID:   "user-1",
		JoinedAt: seasonStart,
	}
	if err := f.leagues.UpsertEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	// In-season delta counts.
	delta, metrics := fixtureDelta("user-1", 3000, now)
	result, err := f.projector.Project(ctx, delta, metrics)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.LeagueEntriesUpdate != 1 {
		t.Errorf("league entries updated = %d, want 1", result.LeagueEntriesUpdate)
	}

	// Out-of-season delta is excluded from the scoped total.
	late, lateMetrics := fixtureDelta("user-1", 5000, seasonEnd.Add(time.Hour))
	result, err = f.projector.Project(ctx, late, lateMetrics)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.LeagueEntriesUpdate != 0 {
		t.Errorf("out-of-season update = %d, want 0", result.LeagueEntriesUpdate)
	}

	entries, err := f.leagues.Entries(ctx, "league-1")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if entries[0].Steps != 3000 {
		t.Errorf("scoped steps = %d, want 3000", entries[0].Steps)
	}
}

func Test_Projector_SettleExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	f := newProjectorFixture(now)

	if err := f.battles.Upsert(ctx, &models.Battle{
		ID:           "battle-due",
		ParticipantA: "user-1",
		ParticipantB: "user-2",
		StepsA:       100,
		StepsB:       300,
		StartTime:    now.Add(-48 * time.Hour),
		EndTime:      now.Add(-time.Hour),
		Status:       models.BattleStatusActive,
	}); err != nil {
		t.Fatalf("seed battle: %v", err)
	}
	if err := f.challenges.Upsert(ctx, &models.Challenge{
		ID:       "challenge-late",
		UserID:   "user-1",
		Title:    "missed",
		Metric:   models.MetricSteps,
		Target:   10000,
		Current:  400,
		Deadline: now.Add(-time.Minute),
		Status:   models.ChallengeStatusActive,
	}); err != nil {
		t.Fatalf("seed challenge: %v", err)
	}

	settled, err := f.projector.SettleExpired(ctx)
	if err != nil {
		t.Fatalf("SettleExpired() error = %v", err)
	}
	if settled != 2 {
		t.Errorf("settled = %d, want 2", settled)
	}

	battles, _ := f.battles.ForUser(ctx, "user-2")
	if battles[0].Winner != "user-2" {
		t.Errorf("winner = %q, want user-2", battles[0].Winner)
	}

	challenges, _ := f.challenges.ForUser(ctx, "user-1")
	if challenges[0].Status != models.ChallengeStatusFailed {
		t.Errorf("challenge status = %v, want failed", challenges[0].Status)
	}
}
