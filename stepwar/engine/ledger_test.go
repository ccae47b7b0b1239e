package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stepwar/stepwar/stepwar/database/models"
	"github.com/stepwar/stepwar/stepwar/storage"
)

func newTestLedger(t *testing.T) (*Ledger, storage.UserStore) {
	t.Helper()
	kv := storage.NewMemoryKV()
	users := storage.NewUserStore(kv)
	calculator := NewCalculator(NewDefaultConfig())
	ledger := NewLedger(storage.NewLedgerStore(kv), users, calculator)

	if err := users.Put(context.Background(), &models.User{
		ID:       "user-1",
		Name:     "Mika",
		Level:    1,
		JoinedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return ledger, users
}

func testDelta(userID string, amount int64, at time.Time) models.StepDelta {
	return models.StepDelta{
		UserID:         userID,
		ObservedAt:     at,
		Amount:         amount,
		SourceSampleID: SampleID(userID, amount, at),
	}
}

func Test_Ledger_Append(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)

	delta := testDelta("user-1", 1000, at)
	result, err := ledger.Append(ctx, delta)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if result.Status != AppendApplied {
		t.Fatalf("Append() status = %v, want %v", result.Status, AppendApplied)
	}
	if result.User.Steps != 1000 {
		t.Errorf("user steps = %d, want 1000", result.User.Steps)
	}
	if result.User.XP != 100 {
		t.Errorf("user xp = %d, want 100", result.User.XP)
	}
	if result.User.Calories != 40 {
		t.Errorf("user calories = %d, want 40", result.User.Calories)
	}
	if result.User.Level != 1 {
		t.Errorf("user level = %d, want 1", result.User.Level)
	}
}

func Test_Ledger_Append_Idempotent(t *testing.T) {
	ledger, users := newTestLedger(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	delta := testDelta("user-1", 500, at)

	if _, err := ledger.Append(ctx, delta); err != nil {
		t.Fatalf("first Append() error = %v", err)
	}

	// Replaying the identical delta must not be an error and must not
	// advance any counter.
	result, err := ledger.Append(ctx, delta)
	if err != nil {
		t.Fatalf("replay Append() error = %v", err)
	}
	if result.Status != AppendAlreadyApplied {
		t.Errorf("replay status = %v, want %v", result.Status, AppendAlreadyApplied)
	}

	user, err := users.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	if user.Steps != 500 {
		t.Errorf("user steps after replay = %d, want 500", user.Steps)
	}
	if user.XP != 50 {
		t.Errorf("user xp after replay = %d, want 50", user.XP)
	}
}

func Test_Ledger_Append_LevelUp(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)

	// 10000 steps -> 1000 XP -> level 2; a further 15000 -> 2500 XP total.
	first, err := ledger.Append(ctx, testDelta("user-1", 10000, at))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first.User.Level != 2 {
		t.Errorf("level after 1000 xp = %d, want 2", first.User.Level)
	}

	second, err := ledger.Append(ctx, testDelta("user-1", 15000, at.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if second.User.XP != 2500 {
		t.Errorf("xp = %d, want 2500", second.User.XP)
	}
	if second.User.Level != 3 {
		t.Errorf("level = %d, want 3", second.User.Level)
	}
}

// faultyKV fails writes to user records on demand, simulating a store error
// between the entry append and the totals update.
type faultyKV struct {
	storage.KV
	failUserWrites bool
}

func (f *faultyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failUserWrites && strings.HasPrefix(key, "stepwar_user_") {
		return errors.New("disk full")
	}
	return f.KV.Set(ctx, key, value)
}

func Test_Ledger_Append_RollsBackOnTotalsFailure(t *testing.T) {
	ctx := context.Background()
	kv := &faultyKV{KV: storage.NewMemoryKV()}
	users := storage.NewUserStore(kv)
	calculator := NewCalculator(NewDefaultConfig())
	ledger := NewLedger(storage.NewLedgerStore(kv), users, calculator)

	if err := users.Put(ctx, &models.User{
		ID:       "user-1",
		Name:     "Mika",
		Level:    1,
		JoinedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	at := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	delta := testDelta("user-1", 800, at)

	kv.failUserWrites = true
	if _, err := ledger.Append(ctx, delta); err == nil {
		t.Fatal("Append() with failing totals write should error")
	}

	// The entry must not survive the failed apply; otherwise the retry
	// below would dedup to AlreadyApplied and the totals would be lost.
	entries, err := ledger.Entries().EntriesForDate(ctx, "user-1", "2025-06-14")
	if err != nil {
		t.Fatalf("EntriesForDate() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries after failed apply = %d, want 0", len(entries))
	}

	kv.failUserWrites = false
	result, err := ledger.Append(ctx, delta)
	if err != nil {
		t.Fatalf("retry Append() error = %v", err)
	}
	if result.Status != AppendApplied {
		t.Fatalf("retry status = %v, want %v", result.Status, AppendApplied)
	}
	if result.User.Steps != 800 {
		t.Errorf("user steps after retry = %d, want 800", result.User.Steps)
	}
	if result.User.XP != 80 {
		t.Errorf("user xp after retry = %d, want 80", result.User.XP)
	}
}

func Test_Ledger_Append_UnknownUser(t *testing.T) {
	ledger, _ := newTestLedger(t)
	at := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)

	_, err := ledger.Append(context.Background(), testDelta("ghost", 100, at))
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Append() error = %v, want %v", err, ErrUnknownUser)
	}
}

func Test_Ledger_TotalsForDate(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)

	for i, amount := range []int64{300, 450, 250} {
		delta := testDelta("user-1", amount, day.Add(time.Duration(i)*time.Hour))
		if _, err := ledger.Append(ctx, delta); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	// A delta on the next day must not leak into the bucket.
	if _, err := ledger.Append(ctx, testDelta("user-1", 9999, day.Add(24*time.Hour))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	totals, err := ledger.TotalsForDate(ctx, "user-1", "2025-06-14")
	if err != nil {
		t.Fatalf("TotalsForDate() error = %v", err)
	}
	if totals.Steps != 1000 {
		t.Errorf("day steps = %d, want 1000", totals.Steps)
	}
	if totals.XP != 100 {
		t.Errorf("day xp = %d, want 100", totals.XP)
	}
}

func Test_Ledger_TotalsForRange_DenseDays(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	monday := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	// Activity on Monday and Wednesday only.
	if _, err := ledger.Append(ctx, testDelta("user-1", 2000, monday.Add(10*time.Hour))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := ledger.Append(ctx, testDelta("user-1", 3000, monday.Add(2*24*time.Hour))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	days, err := ledger.TotalsForRange(ctx, "user-1", monday, monday.Add(6*24*time.Hour))
	if err != nil {
		t.Fatalf("TotalsForRange() error = %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("range days = %d, want 7", len(days))
	}
	if days[0].Steps != 2000 {
		t.Errorf("monday steps = %d, want 2000", days[0].Steps)
	}
	if days[1].Steps != 0 {
		t.Errorf("tuesday steps = %d, want 0", days[1].Steps)
	}
	if days[2].Steps != 3000 {
		t.Errorf("wednesday steps = %d, want 3000", days[2].Steps)
	}

	if _, err := ledger.TotalsForRange(ctx, "user-1", monday, monday.Add(-24*time.Hour)); err == nil {
		t.Error("TotalsForRange() with inverted range should fail")
	}
}
