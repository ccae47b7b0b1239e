package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/stepwar/stepwar/stepwar/database/models"
)

// BunStore keeps remote documents in a Postgres JSONB table.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	doc := new(models.Document)
	err := s.db.NewSelect().
		Model(doc).
		Where("collection = ?", collection).
		Where("doc_id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc.Data, nil
}

func (s *BunStore) Put(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	row := &models.Document{
		Collection: collection,
		DocID:      id,
		Data:       raw,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (collection, doc_id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *BunStore) Create(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := s.Put(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *BunStore) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	var docs []models.Document
	err := s.db.NewSelect().
		Model(&docs).
		Where("collection = ?", collection).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	out := make(map[string]json.RawMessage, len(docs))
	for _, d := range docs {
		out[d.DocID] = d.Data
	}
	return out, nil
}
