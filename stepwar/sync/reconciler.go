package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stepwar/stepwar/stepwar/database/models"
	"github.com/stepwar/stepwar/stepwar/engine"
	"github.com/stepwar/stepwar/stepwar/logger"
	"github.com/stepwar/stepwar/stepwar/remote"
	"github.com/stepwar/stepwar/stepwar/storage"
)

// Report summarizes one reconciliation pass.
type Report struct {
	PulledApplied  int // remote entries newly applied locally
	PulledReplayed int // remote entries the ledger already had
	Pushed         int // local entries written to the remote store
	PullFailures   int
	PushFailures   int
	Pending        int // entries queued for the next pass
}

// Reconciler merges the local ledger with the remote document store using
// the sample key for deduplication. Every step is idempotent, so a pass can
// be cancelled mid-batch and simply resumed later.
type Reconciler struct {
	engine  *engine.Engine
	entries storage.LedgerStore
	store   remote.DocumentStore
	timeout time.Duration

	mu      stdsync.Mutex
	pending map[string]models.LedgerEntry
}

func NewReconciler(eng *engine.Engine, entries storage.LedgerStore, store remote.DocumentStore, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{
		engine:  eng,
		entries: entries,
		store:   store,
		timeout: timeout,
		pending: make(map[string]models.LedgerEntry),
	}
}

// Reconcile runs one full pass: pull remote-only entries into the ledger in
// chronological order, then push local-only entries out. Individual entry
// failures never block the rest of the batch.
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	remoteEntries, err := r.listRemote(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote ledger: %w", err)
	}

	localKeys, localByUser, err := r.loadLocal(ctx)
	if err != nil {
		return nil, fmt.Errorf("load local ledger: %w", err)
	}

	r.pull(ctx, remoteEntries, localKeys, report)
	r.push(ctx, localByUser, remoteEntries, report)

	r.mu.Lock()
	report.Pending = len(r.pending)
	r.mu.Unlock()

	logger.LogSync("Reconciliation pass complete",
		slog.Duration("took", time.Since(start)),
		slog.Int("pulled_applied", report.PulledApplied),
		slog.Int("pulled_replayed", report.PulledReplayed),
		slog.Int("pushed", report.Pushed),
		slog.Int("pull_failures", report.PullFailures),
		slog.Int("push_failures", report.PushFailures),
		slog.Int("pending", report.Pending))

	return report, nil
}

func (r *Reconciler) listRemote(ctx context.Context) (map[string]models.LedgerEntry, error) {
	listCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	docs, err := r.store.List(listCtx, remote.CollectionLedgerEntries)
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.LedgerEntry, len(docs))
	for id, raw := range docs {
		var entry models.LedgerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			slog.Error("Dropping undecodable remote entry",
				slog.String("type", "sync"),
				slog.String("doc_id", id),
				slog.Any("error", err))
			continue
		}
		if err := entry.Validate(); err != nil {
			slog.Error("Dropping malformed remote entry",
				slog.String("type", "sync"),
				slog.String("doc_id", id),
				slog.Any("error", err))
			continue
		}
		out[entry.Key()] = entry
	}
	return out, nil
}

func (r *Reconciler) loadLocal(ctx context.Context) (map[string]struct{}, map[string][]models.LedgerEntry, error) {
	users, err := r.entries.Users(ctx)
	if err != nil {
		return nil, nil, err
	}

	keys := make(map[string]struct{})
	byUser := make(map[string][]models.LedgerEntry, len(users))
	for _, userID := range users {
		entries, err := r.entries.AllEntries(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		byUser[userID] = entries
		for _, e := range entries {
			keys[e.Key()] = struct{}{}
		}
	}
	return keys, byUser, nil
}

// pull applies remote-only entries through the engine. Entries are grouped
// per user and applied in ascending observation order so derived totals and
// battle windows see deltas chronologically; users run in parallel because
// their state is disjoint.
func (r *Reconciler) pull(ctx context.Context, remoteEntries map[string]models.LedgerEntry, localKeys map[string]struct{}, report *Report) {
	missing := make(map[string][]models.LedgerEntry)
	for key, entry := range remoteEntries {
		if _, ok := localKeys[key]; ok {
			continue
		}
		missing[entry.UserID] = append(missing[entry.UserID], entry)
	}

	var (
		g       errgroup.Group
		tallyMu stdsync.Mutex
	)
	for userID, entries := range missing {
		userID, entries := userID, entries
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].ObservedAt.Before(entries[j].ObservedAt)
		})

		g.Go(func() error {
			applied, replayed, failed := 0, 0, 0
			for _, entry := range entries {
				result, err := r.engine.ApplyDelta(ctx, entry.Delta())
				if err != nil {
					// The entry stays remote-only, so the next pass
					// retries it. At-least-once, made safe by the
					// ledger idempotence key.
					slog.Warn("Failed to apply remote entry",
						slog.String("type", "sync"),
						slog.String("user_id", userID),
						slog.String("entry", entry.Key()),
						slog.Any("error", err))
					failed++
					continue
				}
				if result.Append.Status == engine.AppendApplied {
					applied++
				} else {
					replayed++
				}
			}

			tallyMu.Lock()
			report.PulledApplied += applied
			report.PulledReplayed += replayed
			report.PullFailures += failed
			tallyMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// push writes local-only entries to the remote store. Failures land in the
// pending queue and are retried on the next pass.
func (r *Reconciler) push(ctx context.Context, localByUser map[string][]models.LedgerEntry, remoteEntries map[string]models.LedgerEntry, report *Report) {
	toPush := make(map[string]models.LedgerEntry)
	for _, entries := range localByUser {
		for _, e := range entries {
			if _, ok := remoteEntries[e.Key()]; !ok {
				toPush[e.Key()] = e
			}
		}
	}
	r.mu.Lock()
	for key, e := range r.pending {
		if _, ok := remoteEntries[key]; !ok {
			toPush[key] = e
		} else {
			delete(r.pending, key)
		}
	}
	r.mu.Unlock()

	for key, entry := range toPush {
		if err := r.pushOne(ctx, key, entry); err != nil {
			slog.Warn("Failed to push ledger entry",
				slog.String("type", "sync"),
				slog.String("entry", key),
				slog.Any("error", err))
			report.PushFailures++
			r.mu.Lock()
			r.pending[key] = entry
			r.mu.Unlock()
			continue
		}
		report.Pushed++
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	}
}

func (r *Reconciler) pushOne(ctx context.Context, key string, entry models.LedgerEntry) error {
	pushCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.Put(pushCtx, remote.CollectionLedgerEntries, key, entry)
}
