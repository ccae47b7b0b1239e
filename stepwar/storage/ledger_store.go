package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/stepwar/stepwar/stepwar/database/models"
)

// LedgerStore keeps the append-only delta history, bucketed per user per day.
// AppendEntry enforces the idempotence key.
type LedgerStore interface {
	// AppendEntry stores the entry unless its (user, date, sample) key is
	// already present. Returns false when the entry was already applied.
	AppendEntry(ctx context.Context, entry models.LedgerEntry) (bool, error)
	// RemoveEntry deletes one entry from its day bucket. It exists solely to
	// roll back an append whose totals update failed; a rolled-back sample
	// must re-apply entry and totals together on retry.
	RemoveEntry(ctx context.Context, entry models.LedgerEntry) error
	EntriesForDate(ctx context.Context, userID, date string) ([]models.LedgerEntry, error)
	Days(ctx context.Context, userID string) ([]string, error)
	AllEntries(ctx context.Context, userID string) ([]models.LedgerEntry, error)
	Users(ctx context.Context) ([]string, error)
}

type ledgerStore struct {
	kv KV
	mu sync.Mutex
}

func NewLedgerStore(kv KV) LedgerStore {
	return &ledgerStore{kv: kv}
}

func (s *ledgerStore) AppendEntry(ctx context.Context, entry models.LedgerEntry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerDayKey(entry.UserID, entry.Date)
	var bucket []models.LedgerEntry
	if _, err := getJSON(ctx, s.kv, key, &bucket); err != nil {
		return false, err
	}
	for _, existing := range bucket {
		if existing.SampleID == entry.SampleID {
			return false, nil
		}
	}

	bucket = append(bucket, entry)
	if err := setJSON(ctx, s.kv, key, bucket); err != nil {
		return false, err
	}
	if err := s.indexDay(ctx, entry.UserID, entry.Date); err != nil {
		return false, err
	}
	if err := s.indexUser(ctx, entry.UserID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ledgerStore) RemoveEntry(ctx context.Context, entry models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerDayKey(entry.UserID, entry.Date)
	var bucket []models.LedgerEntry
	if _, err := getJSON(ctx, s.kv, key, &bucket); err != nil {
		return err
	}

	kept := bucket[:0]
	for _, existing := range bucket {
		if existing.SampleID != entry.SampleID {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(bucket) {
		return nil
	}
	return setJSON(ctx, s.kv, key, kept)
}

func (s *ledgerStore) EntriesForDate(ctx context.Context, userID, date string) ([]models.LedgerEntry, error) {
	var bucket []models.LedgerEntry
	if _, err := getJSON(ctx, s.kv, ledgerDayKey(userID, date), &bucket); err != nil {
		return nil, err
	}
	for i := range bucket {
		if err := bucket[i].Validate(); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

func (s *ledgerStore) Days(ctx context.Context, userID string) ([]string, error) {
	var days []string
	if _, err := getJSON(ctx, s.kv, ledgerDaysKey(userID), &days); err != nil {
		return nil, err
	}
	sort.Strings(days)
	return days, nil
}

func (s *ledgerStore) AllEntries(ctx context.Context, userID string) ([]models.LedgerEntry, error) {
	days, err := s.Days(ctx, userID)
	if err != nil {
		return nil, err
	}
	var entries []models.LedgerEntry
	for _, day := range days {
		bucket, err := s.EntriesForDate(ctx, userID, day)
		if err != nil {
			return nil, err
		}
		entries = append(entries, bucket...)
	}
	return entries, nil
}

func (s *ledgerStore) Users(ctx context.Context) ([]string, error) {
	var users []string
	if _, err := getJSON(ctx, s.kv, keyLedgerUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *ledgerStore) indexDay(ctx context.Context, userID, date string) error {
	var days []string
	if _, err := getJSON(ctx, s.kv, ledgerDaysKey(userID), &days); err != nil {
		return err
	}
	for _, d := range days {
		if d == date {
			return nil
		}
	}
	return setJSON(ctx, s.kv, ledgerDaysKey(userID), append(days, date))
}

func (s *ledgerStore) indexUser(ctx context.Context, userID string) error {
	var users []string
	if _, err := getJSON(ctx, s.kv, keyLedgerUsers, &users); err != nil {
		return err
	}
	for _, u := range users {
		if u == userID {
			return nil
		}
	}
	return setJSON(ctx, s.kv, keyLedgerUsers, append(users, userID))
}
