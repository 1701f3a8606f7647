package usecase_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	goaladapter "habitsync/internal/modules/goal/adapter/out"
	"habitsync/internal/modules/goal/dto"
	goalin "habitsync/internal/modules/goal/port/in"
	"habitsync/internal/modules/goal/service"
	"habitsync/internal/modules/goal/usecase"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/eventbus"
	"habitsync/internal/platform/guestvault"
	"habitsync/internal/platform/logging"
)

func newGuestInteractor(t *testing.T, path string) goalin.Usecase {
	t.Helper()
	vault := guestvault.Open(path, 10)
	events := goaladapter.NewBusGoalEvents(eventbus.New(16))
	clk := clock.NewFixed(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))
	svc := service.NewSyncService(goaladapter.NewGuestGoalStore(vault), events, clk, logging.Discard(), noop.NewTracerProvider().Tracer("test"), time.Second)
	return usecase.NewInteractor(svc, events)
}

func TestGuestGoalsStartFromDefaults(t *testing.T) {
	t.Parallel()
	interactor := newGuestInteractor(t, filepath.Join(t.TempDir(), "guest.json"))
	got, err := interactor.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got.TimeTargetMinutes != 10 || got.DailyFrequency != 1 || got.Source != "system" {
		t.Fatalf("unexpected defaults %+v", got)
	}
}

func TestApplyPreferencePersistsAcrossRestart(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "guest.json")
	interactor := newGuestInteractor(t, path)

	result, err := interactor.ApplyPreference(context.Background(), dto.SetPreferenceInput{Field: "dailyFrequency", Value: 4, Source: "user"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Status != "committed" || result.Goal.DailyFrequency != 4 {
		t.Fatalf("unexpected result %+v", result)
	}

	restarted := newGuestInteractor(t, path)
	got, err := restarted.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got.DailyFrequency != 4 || got.Source != "user" {
		t.Fatalf("expected persisted preference, got %+v", got)
	}
}

func TestLateSubscriberSeesCurrentGoal(t *testing.T) {
	t.Parallel()
	interactor := newGuestInteractor(t, filepath.Join(t.TempDir(), "guest.json"))
	if _, err := interactor.ApplyPreference(context.Background(), dto.SetPreferenceInput{Field: "timeTargetMinutes", Value: 30}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got := make(chan dto.GoalOutput, 1)
	stop := interactor.Subscribe(func(goal dto.GoalOutput) {
		got <- goal
	})
	defer stop()
	select {
	case goal := <-got:
		if goal.TimeTargetMinutes != 30 {
			t.Fatalf("expected replayed goal 30, got %+v", goal)
		}
	case <-time.After(time.Second):
		t.Fatalf("no replay for late subscriber")
	}
}

func TestReminderPlanFollowsFrequencyCommit(t *testing.T) {
	t.Parallel()
	interactor := newGuestInteractor(t, filepath.Join(t.TempDir(), "guest.json"))
	if _, err := interactor.ApplyPreference(context.Background(), dto.SetPreferenceInput{Field: "dailyFrequency", Value: 2}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := make(chan dto.ReminderPlan, 1)
	stop := interactor.SubscribeReminders(func(plan dto.ReminderPlan) {
		got <- plan
	})
	defer stop()
	select {
	case plan := <-got:
		if plan.DailyFrequency != 2 || len(plan.Slots) != 2 || plan.Slots[0] != "11:00" {
			t.Fatalf("unexpected plan %+v", plan)
		}
	case <-time.After(time.Second):
		t.Fatalf("no reminder plan published")
	}
}

func TestUnknownFieldIsRejected(t *testing.T) {
	t.Parallel()
	interactor := newGuestInteractor(t, filepath.Join(t.TempDir(), "guest.json"))
	if _, err := interactor.SetPreference(context.Background(), dto.SetPreferenceInput{Field: "colour", Value: 1}); err == nil {
		t.Fatalf("expected unknown field error")
	}
}
