package out_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	ledgeroutadapter "habitsync/internal/modules/ledger/adapter/out"
	"habitsync/internal/modules/ledger/domain"
	ledgerout "habitsync/internal/modules/ledger/port/out"
	"habitsync/internal/platform/tx"
)

func openRepo(t *testing.T) (ledgerout.Repository, tx.Manager) {
	t.Helper()
	db, err := ledgeroutadapter.OpenSQLite(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo, err := ledgeroutadapter.NewSQLiteRepository(context.Background(), db)
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	return repo, tx.NewSQLManager(db)
}

func entry(ident, id string) domain.Entry {
	return domain.Entry{
		Identity:            ident,
		SessionID:           id,
		ActualDurationSec:   90,
		TargetDurationSec:   120,
		AimedSessionsPerDay: 2,
		OccurredAt:          time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		BasePoints:          75,
		TotalPoints:         75,
		RecordedAt:          time.Date(2026, 3, 2, 8, 0, 1, 500, time.UTC),
	}
}

func TestEntriesRoundTrip(t *testing.T) {
	t.Parallel()
	repo, _ := openRepo(t)
	ctx := context.Background()
	want := entry("user:alice", "s-1")

	if err := repo.InsertEntry(ctx, want); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, found, err := repo.FindEntry(ctx, "user:alice", "s-1")
	if err != nil || !found {
		t.Fatalf("find: found=%v err=%v", found, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
	if _, found, _ := repo.FindEntry(ctx, "user:bob", "s-1"); found {
		t.Fatalf("entries must be scoped per identity")
	}
}

func TestUnknownIdentityHasZeroState(t *testing.T) {
	t.Parallel()
	repo, _ := openRepo(t)
	streak, err := repo.GetStreak(context.Background(), "user:nobody")
	if err != nil || streak != (domain.Streak{}) {
		t.Fatalf("expected zero streak, got %+v (%v)", streak, err)
	}
	goal, err := repo.GetGoal(context.Background(), "user:nobody")
	if err != nil || goal != (domain.Goal{}) {
		t.Fatalf("expected zero goal, got %+v (%v)", goal, err)
	}
}

func TestGoalKeepsUnsetFieldTimesZero(t *testing.T) {
	t.Parallel()
	repo, _ := openRepo(t)
	ctx := context.Background()
	want := domain.Goal{
		DailyFrequency:          4,
		DailyFrequencyUpdatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Source:                  "user",
	}
	if err := repo.PutGoal(ctx, "user:dana", want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := repo.GetGoal(ctx, "user:dana")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("goal mismatch (-want +got):\n%s", diff)
	}
}

func TestRolledBackTransactionStoresNothing(t *testing.T) {
	t.Parallel()
	repo, txm := openRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := txm.Within(ctx, func(ctx context.Context) error {
		if err := repo.InsertEntry(ctx, entry("user:alice", "s-1")); err != nil {
			return err
		}
		if err := repo.PutStreak(ctx, "user:alice", domain.Streak{TimeStreak: 1, Version: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, found, _ := repo.FindEntry(ctx, "user:alice", "s-1"); found {
		t.Fatalf("entry survived rollback")
	}
	if streak, _ := repo.GetStreak(ctx, "user:alice"); streak.Version != 0 {
		t.Fatalf("streak survived rollback: %+v", streak)
	}
}

func TestListEntriesNewestFirstWithLimit(t *testing.T) {
	t.Parallel()
	repo, _ := openRepo(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := repo.InsertEntry(ctx, entry("user:alice", id)); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	got, err := repo.ListEntries(ctx, "user:alice", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "c" || got[1].SessionID != "b" {
		t.Fatalf("unexpected order %+v", got)
	}
}
