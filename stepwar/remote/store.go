package remote

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection names shared between the engine and any backend.
const (
	CollectionLedgerEntries = "ledger_entries"
	CollectionUsers         = "users"
	CollectionBattles       = "battles"
	CollectionChallenges    = "challenges"
	CollectionLeagues       = "leagues"
)

// ErrNotFound is returned when a document id is absent from a collection.
var ErrNotFound = errors.New("document not found")

// DocumentStore is the document-style remote backend consumed by the sync
// reconciler. The engine never assumes a transport or auth mechanism behind
// it; any backend that speaks collections of JSON documents qualifies.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Put(ctx context.Context, collection, id string, doc any) error
	Create(ctx context.Context, collection string, doc any) (string, error)
	// List enumerates a collection; the reconciler diffs it against the
	// local ledger by document id.
	List(ctx context.Context, collection string) (map[string]json.RawMessage, error)
}
