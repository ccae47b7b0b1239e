package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stepwar/stepwar/stepwar/database/models"
)

type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Put(ctx context.Context, user *models.User) error
}

type userStore struct {
	kv KV
}

func NewUserStore(kv KV) UserStore {
	return &userStore{kv: kv}
}

func (s *userStore) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	ok, err := getJSON(ctx, s.kv, userKey(id), &user)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("User not found in store",
			slog.String("type", "db"),
			slog.String("operation", "GetUser"),
			slog.String("user_id", id))
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) Put(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	if err := user.Validate(); err != nil {
		return err
	}
	return setJSON(ctx, s.kv, userKey(user.ID), user)
}

type ObservationStore interface {
	Get(ctx context.Context, userID string) (*models.Observation, bool, error)
	Put(ctx context.Context, obs *models.Observation) error
}

type observationStore struct {
	kv KV
}

func NewObservationStore(kv KV) ObservationStore {
	return &observationStore{kv: kv}
}

func (s *observationStore) Get(ctx context.Context, userID string) (*models.Observation, bool, error) {
	var obs models.Observation
	ok, err := getJSON(ctx, s.kv, observationKey(userID), &obs)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := obs.Validate(); err != nil {
		return nil, false, err
	}
	return &obs, true, nil
}

func (s *observationStore) Put(ctx context.Context, obs *models.Observation) error {
	if err := obs.Validate(); err != nil {
		return err
	}
	return setJSON(ctx, s.kv, observationKey(obs.UserID), obs)
}
