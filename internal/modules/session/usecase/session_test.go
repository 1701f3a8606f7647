package usecase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	sessionadapter "habitsync/internal/modules/session/adapter/out"
	"habitsync/internal/modules/session/dto"
	sessionout "habitsync/internal/modules/session/port/out"
	"habitsync/internal/modules/session/service"
	"habitsync/internal/modules/session/usecase"
	"habitsync/internal/platform/clock"
	apperrors "habitsync/internal/platform/errors"
	"habitsync/internal/platform/eventbus"
	"habitsync/internal/platform/guestvault"
	"habitsync/internal/platform/identity"
	"habitsync/internal/platform/logging"
)

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "generated-" + string(rune('0'+s.n))
}

func newInteractor(t *testing.T) (*usecase.Interactor, *eventbus.Bus) {
	t.Helper()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ident := identity.Guest("tag-1")
	vault := guestvault.Open(filepath.Join(t.TempDir(), "guest.json"), 50)
	store := sessionadapter.NewGuestSessionStore(vault, ident, time.UTC, clock.NewFixed(now))
	return interactorOn(t, store, ident, now)
}

// interactorOn builds an interactor with its own coordinator and bus over
// store, as a restarted process would.
func interactorOn(t *testing.T, store sessionout.SessionStore, ident identity.Identity, now time.Time) (*usecase.Interactor, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(64)
	events := sessionadapter.NewBusOutcomeEvents(bus)
	coordinator := service.NewCoordinator(store, events, logging.Discard(), noop.NewTracerProvider().Tracer("test"), time.Second)
	interactor := usecase.NewInteractor(
		coordinator,
		store,
		events,
		sessionadapter.NewMarkdownNoteWriter(time.UTC),
		clock.NewFixed(now),
		&sequenceIDs{},
		ident,
		time.UTC,
	)
	if err := interactor.Prime(context.Background()); err != nil {
		t.Fatalf("prime: %v", err)
	}
	return interactor, bus
}

func drain(t *testing.T, i *usecase.Interactor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := i.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestTriggerSessionEndReturnsEstimateAndCommits(t *testing.T) {
	t.Parallel()
	interactor, _ := newInteractor(t)

	out, err := interactor.TriggerSessionEnd(context.Background(), dto.EndInput{ActualDurationSec: 150, TargetDurationSec: 120, AimedSessionsPerDay: 1})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if out.SessionID != "generated-1" || out.Identity != "guest:tag-1" {
		t.Fatalf("unexpected output %+v", out)
	}
	if out.Estimate.BasePoints != 100 || out.Estimate.TimeStreak != 1 {
		t.Fatalf("unexpected estimate %+v", out.Estimate)
	}

	event, err := interactor.AwaitOutcome(context.Background(), out.SessionID)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if !event.Committed || event.Outcome != out.Estimate {
		t.Fatalf("committed outcome %+v differs from estimate %+v", event.Outcome, out.Estimate)
	}
	drain(t, interactor)

	next, err := interactor.TriggerSessionEnd(context.Background(), dto.EndInput{ActualDurationSec: 120, TargetDurationSec: 120, AimedSessionsPerDay: 1})
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if next.Estimate.TimeStreak != 2 {
		t.Fatalf("estimate must build on the committed streak, got %+v", next.Estimate)
	}
	drain(t, interactor)
}

func TestLateSubscriberReceivesCommittedOutcome(t *testing.T) {
	t.Parallel()
	interactor, _ := newInteractor(t)

	out, err := interactor.TriggerSessionEnd(context.Background(), dto.EndInput{SessionID: "late", ActualDurationSec: 60, TargetDurationSec: 120, AimedSessionsPerDay: 1})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	drain(t, interactor)

	got := make(chan dto.OutcomeEvent, 1)
	stop := interactor.SubscribeOutcome(out.SessionID, func(event dto.OutcomeEvent) {
		got <- event
	})
	defer stop()
	select {
	case event := <-got:
		if !event.Committed || event.Outcome.TotalPoints != 50 {
			t.Fatalf("unexpected replayed event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("late subscriber did not receive the cached outcome")
	}
}

func TestDuplicateTriggerStoresOnce(t *testing.T) {
	t.Parallel()
	interactor, _ := newInteractor(t)
	input := dto.EndInput{SessionID: "dup", ActualDurationSec: 120, TargetDurationSec: 120, AimedSessionsPerDay: 1}

	if _, err := interactor.TriggerSessionEnd(context.Background(), input); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if _, err := interactor.TriggerSessionEnd(context.Background(), input); err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	drain(t, interactor)
	if _, err := interactor.TriggerSessionEnd(context.Background(), input); err != nil {
		t.Fatalf("third trigger: %v", err)
	}
	drain(t, interactor)

	history, err := interactor.History(context.Background(), 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Outcome.TimeStreak != 1 {
		t.Fatalf("expected one stored session with streak 1, got %+v", history)
	}
	streak, err := interactor.Streak(context.Background())
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if streak.TimeStreak != 1 {
		t.Fatalf("duplicate triggers advanced the streak to %d", streak.TimeStreak)
	}
}

func TestTriggerRejectsInvalidDurations(t *testing.T) {
	t.Parallel()
	interactor, _ := newInteractor(t)
	_, err := interactor.TriggerSessionEnd(context.Background(), dto.EndInput{ActualDurationSec: 0, TargetDurationSec: 120, AimedSessionsPerDay: 1})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, ok := interactor.Status("generated-1"); ok {
		t.Fatalf("invalid session must not be submitted")
	}
}

func TestExportWritesNotesAndSkipsUnchanged(t *testing.T) {
	t.Parallel()
	interactor, _ := newInteractor(t)
	for _, id := range []string{"e-1", "e-2"} {
		if _, err := interactor.TriggerSessionEnd(context.Background(), dto.EndInput{SessionID: id, ActualDurationSec: 60, TargetDurationSec: 60, AimedSessionsPerDay: 2}); err != nil {
			t.Fatalf("trigger %s: %v", id, err)
		}
	}
	drain(t, interactor)

	dir := filepath.Join(t.TempDir(), "notes")
	first, err := interactor.Export(context.Background(), dto.ExportInput{Dir: dir})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(first.Written) != 2 {
		t.Fatalf("expected two notes, got %+v", first)
	}
	for _, path := range first.Written {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("note %s missing: %v", path, err)
		}
	}

	second, err := interactor.Export(context.Background(), dto.ExportInput{Dir: dir})
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if len(second.Written) != 0 || second.Skipped != 2 {
		t.Fatalf("expected unchanged notes to be skipped, got %+v", second)
	}
}

func TestResubmittedOldSessionKeepsEstimateStreak(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ident := identity.Guest("tag-1")
	vault := guestvault.Open(filepath.Join(t.TempDir(), "guest.json"), 50)
	store := sessionadapter.NewGuestSessionStore(vault, ident, time.UTC, clock.NewFixed(now))
	first, _ := interactorOn(t, store, ident, now)
	for _, id := range []string{"old", "newer"} {
		if _, err := first.TriggerSessionEnd(context.Background(), dto.EndInput{SessionID: id, ActualDurationSec: 120, TargetDurationSec: 120, AimedSessionsPerDay: 1}); err != nil {
			t.Fatalf("trigger %s: %v", id, err)
		}
		drain(t, first)
	}

	restarted, _ := interactorOn(t, store, ident, now)
	if _, err := restarted.TriggerSessionEnd(context.Background(), dto.EndInput{SessionID: "old", ActualDurationSec: 120, TargetDurationSec: 120, AimedSessionsPerDay: 1}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	event, err := restarted.AwaitOutcome(context.Background(), "old")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if !event.Committed || event.Outcome.TimeStreak != 1 {
		t.Fatalf("expected the stored outcome with streak 1, got %+v", event)
	}
	drain(t, restarted)

	next, err := restarted.TriggerSessionEnd(context.Background(), dto.EndInput{SessionID: "latest", ActualDurationSec: 120, TargetDurationSec: 120, AimedSessionsPerDay: 1})
	if err != nil {
		t.Fatalf("trigger latest: %v", err)
	}
	if next.Estimate.TimeStreak != 3 {
		t.Fatalf("estimate went back to an older streak: %+v", next.Estimate)
	}
	drain(t, restarted)
}
