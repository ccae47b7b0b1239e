package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/stepwar/stepwar/stepwar/database/models"
)

type LeagueStore interface {
	Leagues(ctx context.Context) ([]models.League, error)
	League(ctx context.Context, id string) (*models.League, error)
	UpsertLeague(ctx context.Context, league *models.League) error
	Entries(ctx context.Context, leagueID string) ([]models.LeagueEntry, error)
	EntriesForUser(ctx context.Context, userID string) ([]models.LeagueEntry, error)
	UpsertEntry(ctx context.Context, entry *models.LeagueEntry) error
}

type leagueStore struct {
	kv KV
	mu sync.Mutex
}

func NewLeagueStore(kv KV) LeagueStore {
	return &leagueStore{kv: kv}
}

func (s *leagueStore) Leagues(ctx context.Context) ([]models.League, error) {
	var leagues []models.League
	if _, err := getJSON(ctx, s.kv, keyLeagues, &leagues); err != nil {
		return nil, err
	}
	for i := range leagues {
		if err := leagues[i].Validate(); err != nil {
			return nil, err
		}
	}
	return leagues, nil
}

func (s *leagueStore) League(ctx context.Context, id string) (*models.League, error) {
	leagues, err := s.Leagues(ctx)
	if err != nil {
		return nil, err
	}
	for i := range leagues {
		if leagues[i].ID == id {
			return &leagues[i], nil
		}
	}
	return nil, fmt.Errorf("league %s: %w", id, ErrNotFound)
}

func (s *leagueStore) UpsertLeague(ctx context.Context, league *models.League) error {
	if err := league.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var leagues []models.League
	if _, err := getJSON(ctx, s.kv, keyLeagues, &leagues); err != nil {
		return err
	}
	replaced := false
	for i := range leagues {
		if leagues[i].ID == league.ID {
			leagues[i] = *league
			replaced = true
			break
		}
	}
	if !replaced {
		leagues = append(leagues, *league)
	}
	return setJSON(ctx, s.kv, keyLeagues, leagues)
}

func (s *leagueStore) Entries(ctx context.Context, leagueID string) ([]models.LeagueEntry, error) {
	entries, err := s.allEntries(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.LeagueEntry
	for _, e := range entries {
		if e.LeagueID == leagueID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *leagueStore) EntriesForUser(ctx context.Context, userID string) ([]models.LeagueEntry, error) {
	entries, err := s.allEntries(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.LeagueEntry
	for _, e := range entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *leagueStore) UpsertEntry(ctx context.Context, entry *models.LeagueEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []models.LeagueEntry
	if _, err := getJSON(ctx, s.kv, keyLeagueEntries, &entries); err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].LeagueID == entry.LeagueID && entries[i].UserID == entry.UserID {
			entries[i] = *entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, *entry)
	}
	return setJSON(ctx, s.kv, keyLeagueEntries, entries)
}

func (s *leagueStore) allEntries(ctx context.Context) ([]models.LeagueEntry, error) {
	var entries []models.LeagueEntry
	if _, err := getJSON(ctx, s.kv, keyLeagueEntries, &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
