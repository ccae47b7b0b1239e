package storage

import (
	"context"
	"sync"

	"github.com/stepwar/stepwar/stepwar/database/models"
)

// BattleStore holds the battle collection under a single key, matching the
// mobile cache layout. Upserts are serialized internally because a battle is
// shared by two users and both sides read-modify-write the same record.
type BattleStore interface {
	All(ctx context.Context) ([]models.Battle, error)
	ForUser(ctx context.Context, userID string) ([]models.Battle, error)
	Upsert(ctx context.Context, battle *models.Battle) error
}

type battleStore struct {
	kv KV
	mu sync.Mutex
}

func NewBattleStore(kv KV) BattleStore {
	return &battleStore{kv: kv}
}

func (s *battleStore) All(ctx context.Context) ([]models.Battle, error) {
	var battles []models.Battle
	if _, err := getJSON(ctx, s.kv, keyBattles, &battles); err != nil {
		return nil, err
	}
	for i := range battles {
		if err := battles[i].Validate(); err != nil {
			return nil, err
		}
	}
	return battles, nil
}

func (s *battleStore) ForUser(ctx context.Context, userID string) ([]models.Battle, error) {
	battles, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Battle
	for _, b := range battles {
		if b.Involves(userID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *battleStore) Upsert(ctx context.Context, battle *models.Battle) error {
	if err := battle.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var battles []models.Battle
	if _, err := getJSON(ctx, s.kv, keyBattles, &battles); err != nil {
		return err
	}
	replaced := false
	for i := range battles {
		if battles[i].ID == battle.ID {
			battles[i] = *battle
			replaced = true
			break
		}
	}
	if !replaced {
		battles = append(battles, *battle)
	}
	return setJSON(ctx, s.kv, keyBattles, battles)
}
