package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Document is the relational row backing the document-style remote store
// when it runs on Postgres. One row per (collection, doc id), body as JSONB.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	Collection string          `bun:"collection,pk"`
	DocID      string          `bun:"doc_id,pk"`
	Data       json.RawMessage `bun:"data,type:jsonb,notnull"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull"`
}
