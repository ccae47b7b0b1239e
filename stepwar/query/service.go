package query

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"

	"github.com/stepwar/stepwar/stepwar/database/models"
	"github.com/stepwar/stepwar/stepwar/engine"
	"github.com/stepwar/stepwar/stepwar/storage"
)

const (
	leaderboardCacheSize = 128
	leaderboardCacheTTL  = 30 * time.Second
)

// Service serves every read the UI layer needs. It never mutates
// competitive entities; those only move through ledger fan-out.
type Service struct {
	users      storage.UserStore
	battles    storage.BattleStore
	challenges storage.ChallengeStore
	leagues    storage.LeagueStore
	ledger     *engine.Ledger
	calculator *engine.Calculator

	dailyStepGoal int64
	leaderboards  *lru.Cache
	cacheTTL      time.Duration
}

type cachedLeaderboard struct {
	computedAt time.Time
	entries    []models.RankedEntry
}

func NewService(kv storage.KV, ledger *engine.Ledger, calculator *engine.Calculator, dailyStepGoal int64) *Service {
	cache, _ := lru.New(leaderboardCacheSize)
	return &Service{
		users:         storage.NewUserStore(kv),
		battles:       storage.NewBattleStore(kv),
		challenges:    storage.NewChallengeStore(kv),
		leagues:       storage.NewLeagueStore(kv),
		ledger:        ledger,
		calculator:    calculator,
		dailyStepGoal: dailyStepGoal,
		leaderboards:  cache,
		cacheTTL:      leaderboardCacheTTL,
	}
}

// Profile is a user plus the derived presentation fields the home screen
// renders.
type Profile struct {
	models.User
	LevelProgress float64 `json:"level_progress"`
}

func (s *Service) User(ctx context.Context, id string) (*Profile, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{
		User:          *user,
		LevelProgress: s.calculator.LevelProgress(user.XP),
	}, nil
}

func (s *Service) Battles(ctx context.Context, userID string) ([]models.Battle, error) {
	return s.battles.ForUser(ctx, userID)
}

func (s *Service) Challenges(ctx context.Context, userID string) ([]models.Challenge, error) {
	return s.challenges.ForUser(ctx, userID)
}

// Leaderboard returns the league entries with ranks recomputed from the
// entry set. Rank is always derived here, never read from storage, so it
// cannot drift from the scoped totals.
func (s *Service) Leaderboard(ctx context.Context, leagueID string) ([]models.RankedEntry, error) {
	if cached, ok := s.leaderboards.Get(leagueID); ok {
		lb := cached.(cachedLeaderboard)
		if time.Since(lb.computedAt) < s.cacheTTL {
			return lb.entries, nil
		}
		s.leaderboards.Remove(leagueID)
	}

	entries, err := s.leagues.Entries(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	ranked := models.RankEntries(entries)
	s.leaderboards.Add(leagueID, cachedLeaderboard{
		computedAt: time.Now(),
		entries:    ranked,
	})
	return ranked, nil
}

// WeeklySummary is seven dense day buckets starting at weekStart plus the
// aggregate over the week.
type WeeklySummary struct {
	Days  []models.DayTotals `json:"days"`
	Total models.DayTotals   `json:"total"`
}

func (s *Service) WeeklySummary(ctx context.Context, userID string, weekStart time.Time) (*WeeklySummary, error) {
	days, err := s.ledger.TotalsForRange(ctx, userID, weekStart, weekStart.Add(6*24*time.Hour))
	if err != nil {
		return nil, err
	}

	summary := &WeeklySummary{Days: days}
	for _, d := range days {
		summary.Total.Steps += d.Steps
		summary.Total.Calories += d.Calories
		summary.Total.DistanceKm += d.DistanceKm
		summary.Total.XP += d.XP
	}
	return summary, nil
}

// DailyGoalProgress returns today's steps as a percentage of the configured
// daily goal, clamped to [0,100].
func (s *Service) DailyGoalProgress(ctx context.Context, userID string, now time.Time) (float64, error) {
	if s.dailyStepGoal <= 0 {
		return 0, nil
	}
	totals, err := s.ledger.TotalsForDate(ctx, userID, now.UTC().Format(models.DateFormat))
	if err != nil {
		return 0, err
	}
	pct := float64(totals.Steps) / float64(s.dailyStepGoal) * 100
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// SearchLeagues fuzzy-matches league names, best matches first.
func (s *Service) SearchLeagues(ctx context.Context, queryStr string) ([]models.League, error) {
	leagues, err := s.leagues.Leagues(ctx)
	if err != nil {
		return nil, err
	}
	if queryStr == "" {
		return leagues, nil
	}

	names := make([]string, len(leagues))
	for i, l := range leagues {
		names[i] = l.Name
	}

	matches := fuzzy.Find(queryStr, names)
	out := make([]models.League, 0, len(matches))
	for _, m := range matches {
		out = append(out, leagues[m.Index])
	}
	return out, nil
}
