package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stepwar/stepwar/stepwar/database/models"
	"github.com/stepwar/stepwar/stepwar/logger"
	"github.com/stepwar/stepwar/stepwar/storage"
)

// ObservationResult is what a caller gets back for one submitted sample:
// the ledger outcome plus, for first applications, the fan-out report.
type ObservationResult struct {
	Delta      models.StepDelta
	Append     *AppendResult
	Projection *ProjectionResult
}

// Engine routes raw observations through validation, the ledger and the
// projector. All writes for one user are serialized; distinct users run in
// parallel.
type Engine struct {
	validator    *Validator
	calculator   *Calculator
	ledger       *Ledger
	projector    *Projector
	users        storage.UserStore
	observations storage.ObservationStore
	battles      storage.BattleStore
	challenges   storage.ChallengeStore
	leagues      storage.LeagueStore

	userLocks sync.Map // userID -> *sync.Mutex
}

func New(cfg *Config, kv storage.KV) *Engine {
	users := storage.NewUserStore(kv)
	entries := storage.NewLedgerStore(kv)
	battles := storage.NewBattleStore(kv)
	challenges := storage.NewChallengeStore(kv)
	leagues := storage.NewLeagueStore(kv)

	calculator := NewCalculator(cfg)
	return &Engine{
		validator:    NewValidator(cfg),
		calculator:   calculator,
		ledger:       NewLedger(entries, users, calculator),
		projector:    NewProjector(battles, challenges, leagues),
		users:        users,
		observations: storage.NewObservationStore(kv),
		battles:      battles,
		challenges:   challenges,
		leagues:      leagues,
	}
}

func (e *Engine) Ledger() *Ledger         { return e.ledger }
func (e *Engine) Projector() *Projector   { return e.projector }
func (e *Engine) Calculator() *Calculator { return e.calculator }

func (e *Engine) lockUser(userID string) func() {
	muAny, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// RecordObservation ingests one raw (cumulative steps, timestamp) sample.
// Rejections come back as errors; the caller must not retry them.
func (e *Engine) RecordObservation(ctx context.Context, userID string, cumulativeSteps int64, observedAt time.Time) (*ObservationResult, error) {
	start := time.Now()

	unlock := e.lockUser(userID)
	defer unlock()

	if _, err := e.users.Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	prev, hasPrev, err := e.observations.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load observation baseline: %w", err)
	}

	var prevCumulative int64
	var elapsed time.Duration
	if hasPrev {
		prevCumulative = prev.CumulativeSteps
		elapsed = observedAt.Sub(prev.ObservedAt)
		if elapsed <= 0 {
			// A sample that does not move time past the baseline has no
			// window to cap against. Letting it through as a session start
			// would reopen the uncapped path to spoofed bulk writes.
			err := fmt.Errorf("%w: sample at %s not after baseline %s",
				ErrImplausibleSpike,
				observedAt.UTC().Format(time.RFC3339),
				prev.ObservedAt.UTC().Format(time.RFC3339))
			logger.LogObservation(userID, cumulativeSteps, time.Since(start), err)
			return nil, err
		}
	}

	delta, err := e.validator.Validate(userID, prevCumulative, cumulativeSteps, elapsed, observedAt)
	if err != nil {
		logger.LogObservation(userID, cumulativeSteps, time.Since(start), err)
		return nil, err
	}

	result, err := e.applyLocked(ctx, delta)
	if err != nil {
		return nil, err
	}

	obs := &models.Observation{
		UserID:          userID,
		CumulativeSteps: cumulativeSteps,
		ObservedAt:      observedAt.UTC(),
	}
	if err := e.observations.Put(ctx, obs); err != nil {
		return nil, fmt.Errorf("store observation baseline: %w", err)
	}
	logger.LogObservation(userID, delta.Amount, time.Since(start), nil)
	return result, nil
}

// ApplyDelta runs a pre-validated delta through the ledger and projector
// under the user lock. The reconciler uses this to replay remote entries.
func (e *Engine) ApplyDelta(ctx context.Context, delta models.StepDelta) (*ObservationResult, error) {
	unlock := e.lockUser(delta.UserID)
	defer unlock()
	return e.applyLocked(ctx, delta)
}

func (e *Engine) applyLocked(ctx context.Context, delta models.StepDelta) (*ObservationResult, error) {
	appendResult, err := e.ledger.Append(ctx, delta)
	if err != nil {
		return nil, err
	}

	result := &ObservationResult{Delta: delta, Append: appendResult}
	if appendResult.Status != AppendApplied {
		// Replay: fan-out already happened exactly once.
		return result, nil
	}

	projection, err := e.projector.Project(ctx, delta, appendResult.Metrics)
	if err != nil {
		return nil, fmt.Errorf("fan-out for sample %s: %w", delta.SourceSampleID, err)
	}
	result.Projection = projection
	return result, nil
}

// RegisterUser creates the progression profile for a new account.
func (e *Engine) RegisterUser(ctx context.Context, id, name, avatar string) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		ID:        id,
		Name:      name,
		Avatar:    avatar,
		Level:     1,
		JoinedAt:  now,
		CreatedAt: now,
	}
	if err := e.users.Put(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateBattle opens a step contest between two users over the given window.
func (e *Engine) CreateBattle(ctx context.Context, participantA, participantB string, start, end time.Time) (*models.Battle, error) {
	now := time.Now().UTC()
	battle := &models.Battle{
		ID:           uuid.NewString(),
		ParticipantA: participantA,
		ParticipantB: participantB,
		StartTime:    start.UTC(),
		EndTime:      end.UTC(),
		Status:       models.BattleStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.battles.Upsert(ctx, battle); err != nil {
		return nil, err
	}
	return battle, nil
}

// CreateChallenge opens a personal target against one metric.
func (e *Engine) CreateChallenge(ctx context.Context, userID, title string, metric models.MetricType, target float64, deadline time.Time) (*models.Challenge, error) {
	now := time.Now().UTC()
	challenge := &models.Challenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Metric:    metric,
		Target:    target,
		Deadline:  deadline.UTC(),
		Status:    models.ChallengeStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.challenges.Upsert(ctx, challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// AdvanceChallenge moves a time- or battle-metric challenge forward. Step
// driven metrics only advance through ledger fan-out, never through here.
func (e *Engine) AdvanceChallenge(ctx context.Context, challengeID string, amount float64) (*models.Challenge, error) {
	challenges, err := e.challenges.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range challenges {
		c := challenges[i]
		if c.ID != challengeID {
			continue
		}
		if c.Metric.StepDriven() {
			return nil, fmt.Errorf("challenge %s: metric %s advances via step deltas only", c.ID, c.Metric)
		}
		c.Advance(amount, time.Now())
		if err := e.challenges.Upsert(ctx, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
	return nil, fmt.Errorf("challenge %s: %w", challengeID, storage.ErrNotFound)
}

// CreateLeague opens a league with an optional scoring season.
func (e *Engine) CreateLeague(ctx context.Context, name, joinCode string, public bool, seasonStart, seasonEnd time.Time) (*models.League, error) {
	league := &models.League{
		ID:          uuid.NewString(),
		Name:        name,
		JoinCode:    joinCode,
		Public:      public,
		SeasonStart: seasonStart,
		SeasonEnd:   seasonEnd,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.leagues.UpsertLeague(ctx, league); err != nil {
		return nil, err
	}
	return league, nil
}

// JoinLeague adds the user with a zero scoped total. The join time is the
// rank tiebreaker, so it is recorded once and never touched again.
func (e *Engine) JoinLeague(ctx context.Context, leagueID, userID, joinCode string) (*models.LeagueEntry, error) {
	league, err := e.leagues.League(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if !league.Public && league.JoinCode != joinCode {
		return nil, fmt.Errorf("league %s: join code mismatch", leagueID)
	}

	existing, err := e.leagues.Entries(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].UserID == userID {
			return &existing[i], nil
		}
	}

	now := time.Now().UTC()
	entry := &models.LeagueEntry{
		LeagueID:  leagueID,
		UserID:    userID,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := e.leagues.UpsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
