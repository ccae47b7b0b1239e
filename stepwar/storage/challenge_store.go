package storage

import (
	"context"
	"sync"

	"github.com/stepwar/stepwar/stepwar/database/models"
)

type ChallengeStore interface {
	All(ctx context.Context) ([]models.Challenge, error)
	ForUser(ctx context.Context, userID string) ([]models.Challenge, error)
	Upsert(ctx context.Context, challenge *models.Challenge) error
}

type challengeStore struct {
	kv KV
	mu sync.Mutex
}

func NewChallengeStore(kv KV) ChallengeStore {
	return &challengeStore{kv: kv}
}

func (s *challengeStore) All(ctx context.Context) ([]models.Challenge, error) {
	var challenges []models.Challenge
	if _, err := getJSON(ctx, s.kv, keyChallenges, &challenges); err != nil {
		return nil, err
	}
	for i := range challenges {
		if err := challenges[i].Validate(); err != nil {
			return nil, err
		}
	}
	return challenges, nil
}

func (s *challengeStore) ForUser(ctx context.Context, userID string) ([]models.Challenge, error) {
	challenges, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Challenge
	for _, c := range challenges {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *challengeStore) Upsert(ctx context.Context, challenge *models.Challenge) error {
	if err := challenge.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var challenges []models.Challenge
	if _, err := getJSON(ctx, s.kv, keyChallenges, &challenges); err != nil {
		return err
	}
	replaced := false
	for i := range challenges {
		if challenges[i].ID == challenge.ID {
			challenges[i] = *challenge
			replaced = true
			break
		}
	}
	if !replaced {
		challenges = append(challenges, *challenge)
	}
	return setJSON(ctx, s.kv, keyChallenges, challenges)
}
