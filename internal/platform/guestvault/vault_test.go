package guestvault_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"habitsync/internal/platform/guestvault"
)

func TestLoadMissingVaultReturnsEmptyRecord(t *testing.T) {
	t.Parallel()
	v := guestvault.Open(filepath.Join(t.TempDir(), "guest.json"), 10)
	blob, err := v.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if blob.GuestTag != "" || len(blob.History) != 0 || blob.CurrentGoal != nil {
		t.Fatalf("expected empty record, got %+v", blob)
	}
}

func TestGuestTagIsStable(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guest.json")
	calls := 0
	gen := func() string {
		calls++
		return fmt.Sprintf("tag-%d", calls)
	}

	first, err := guestvault.Open(path, 10).EnsureGuestTag(context.Background(), gen)
	if err != nil {
		t.Fatalf("ensure tag: %v", err)
	}
	second, err := guestvault.Open(path, 10).EnsureGuestTag(context.Background(), gen)
	if err != nil {
		t.Fatalf("ensure tag again: %v", err)
	}
	if first != "tag-1" || second != first || calls != 1 {
		t.Fatalf("expected stable tag, got %q then %q after %d calls", first, second, calls)
	}
}

func TestUpdateEvictsOldestHistory(t *testing.T) {
	t.Parallel()
	v := guestvault.Open(filepath.Join(t.TempDir(), "guest.json"), 3)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("s-%d", i)
		err := v.Update(context.Background(), func(b *guestvault.Blob) (bool, error) {
			b.History = append([]guestvault.HistoryRecord{{SessionID: id}}, b.History...)
			return true, nil
		})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	blob, err := v.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(blob.History) != 3 || blob.History[0].SessionID != "s-5" || blob.History[2].SessionID != "s-3" {
		t.Fatalf("expected newest three sessions, got %+v", blob.History)
	}
	if _, ok := blob.FindSession("s-1"); ok {
		t.Fatalf("s-1 should have been evicted")
	}
}

func TestUpdateErrorLeavesRecordUntouched(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guest.json")
	v := guestvault.Open(path, 10)
	if _, err := v.EnsureGuestTag(context.Background(), func() string { return "g" }); err != nil {
		t.Fatalf("ensure tag: %v", err)
	}
	before, _ := os.ReadFile(path)

	boom := errors.New("boom")
	err := v.Update(context.Background(), func(b *guestvault.Blob) (bool, error) {
		b.GuestTag = "changed"
		return true, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatalf("record changed despite failed update")
	}
}

func TestCorruptVaultIsReported(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guest.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := guestvault.Open(path, 10).Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
