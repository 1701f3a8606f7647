package out_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	sessionadapter "habitsync/internal/modules/session/adapter/out"
	"habitsync/internal/modules/session/domain"
)

func TestMarkdownNoteKeepsUserTextAcrossExports(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writer := sessionadapter.NewMarkdownNoteWriter(time.UTC)
	record := domain.Record{
		Session: guestSession("n-1", 90, time.Date(2026, 3, 1, 7, 5, 0, 0, time.UTC)),
		Outcome: domain.Outcome{SessionID: "n-1", BasePoints: 100, BonusPoints: 10, TotalPoints: 110, TimeStreak: 1, DailyStreak: 1},
	}

	path, written, err := writer.WriteNote(context.Background(), dir, record)
	if err != nil || !written {
		t.Fatalf("first export: written=%v err=%v", written, err)
	}
	if !strings.HasSuffix(path, "2026-03-01-0705-n-1.md") {
		t.Fatalf("unexpected note path %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	edited := strings.Replace(string(raw), "## Notes\n", "## Notes\nfelt focused\n", 1)
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("edit note: %v", err)
	}

	if _, written, err := writer.WriteNote(context.Background(), dir, record); err != nil || written {
		t.Fatalf("unchanged record must be skipped: written=%v err=%v", written, err)
	}

	record.Outcome.TotalPoints = 120
	if _, written, err := writer.WriteNote(context.Background(), dir, record); err != nil || !written {
		t.Fatalf("changed record must be rewritten: written=%v err=%v", written, err)
	}
	raw, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "felt focused") || !strings.Contains(content, "| 100 | 10 | 120 |") {
		t.Fatalf("expected user text and refreshed table, got:\n%s", content)
	}
}
