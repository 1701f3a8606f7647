package out_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	goaladapter "habitsync/internal/modules/goal/adapter/out"
	"habitsync/internal/modules/goal/domain"
	apperrors "habitsync/internal/platform/errors"
	"habitsync/internal/platform/ledgerrpc"
)

type goalLedger struct {
	goal      ledgerrpc.Goal
	updates   []*ledgerrpc.UpdateGoalRequest
	updateErr error
	getErr    error
}

func (f *goalLedger) LookupOutcome(context.Context, *ledgerrpc.LookupOutcomeRequest) (*ledgerrpc.LookupOutcomeResponse, error) {
	return &ledgerrpc.LookupOutcomeResponse{}, nil
}

func (f *goalLedger) GetStreak(context.Context) (*ledgerrpc.GetStreakResponse, error) {
	return &ledgerrpc.GetStreakResponse{}, nil
}

func (f *goalLedger) CommitSession(context.Context, *ledgerrpc.CommitSessionRequest) (*ledgerrpc.CommitSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "not used")
}

func (f *goalLedger) ListHistory(context.Context, *ledgerrpc.ListHistoryRequest) (*ledgerrpc.ListHistoryResponse, error) {
	return &ledgerrpc.ListHistoryResponse{}, nil
}

func (f *goalLedger) GetGoals(context.Context) (*ledgerrpc.GetGoalsResponse, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &ledgerrpc.GetGoalsResponse{Goal: f.goal}, nil
}

func (f *goalLedger) UpdateGoal(_ context.Context, in *ledgerrpc.UpdateGoalRequest) (*ledgerrpc.UpdateGoalResponse, error) {
	f.updates = append(f.updates, in)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &ledgerrpc.UpdateGoalResponse{Goal: f.goal, Applied: false}, nil
}

func TestRemoteGoalStoreDefaultsUnsetFields(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	store := goaladapter.NewRemoteGoalStore(&goalLedger{goal: ledgerrpc.Goal{DailyFrequency: 4, UpdatedAt: at, Source: "user"}})

	pref, err := store.GetCurrentGoals(context.Background())
	if err != nil {
		t.Fatalf("get goals: %v", err)
	}
	if pref.TimeTargetMinutes != domain.DefaultTimeTargetMinutes || pref.DailyFrequency != 4 {
		t.Fatalf("unexpected preference %+v", pref)
	}
	if pref.Source != domain.SourceUser || !pref.UpdatedAt.Equal(at) {
		t.Fatalf("expected user source at %s, got %+v", at, pref)
	}
}

func TestRemoteGoalStoreNeverWrittenIsSystemDefault(t *testing.T) {
	t.Parallel()
	store := goaladapter.NewRemoteGoalStore(&goalLedger{})

	pref, err := store.GetCurrentGoals(context.Background())
	if err != nil {
		t.Fatalf("get goals: %v", err)
	}
	if pref != domain.Defaults() {
		t.Fatalf("expected defaults, got %+v", pref)
	}
}

func TestRemoteGoalStoreIgnoredWriteIsNotAnError(t *testing.T) {
	t.Parallel()
	ledger := &goalLedger{}
	store := goaladapter.NewRemoteGoalStore(ledger)
	at := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	if err := store.UpdateGoal(context.Background(), domain.FieldDailyFrequency, 3, domain.SourceSystem, at); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ledger.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(ledger.updates))
	}
	got := ledger.updates[0]
	if got.Field != string(domain.FieldDailyFrequency) || got.Value != 3 || got.Source != "system" || !got.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestRemoteGoalStoreValidatesBeforeSending(t *testing.T) {
	t.Parallel()
	ledger := &goalLedger{}
	store := goaladapter.NewRemoteGoalStore(ledger)

	err := store.UpdateGoal(context.Background(), domain.FieldTimeTargetMinutes, 0, domain.SourceUser, time.Now())
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(ledger.updates) != 0 {
		t.Fatalf("invalid value reached the ledger")
	}
}

func TestRemoteGoalStoreMapsStatusCodes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, apperrors.ErrUnauthenticated},
		{codes.PermissionDenied, apperrors.ErrUnauthenticated},
		{codes.InvalidArgument, apperrors.ErrInvalidInput},
	}
	for _, tc := range cases {
		store := goaladapter.NewRemoteGoalStore(&goalLedger{
			getErr:    status.Error(tc.code, "rejected"),
			updateErr: status.Error(tc.code, "rejected"),
		})
		if _, err := store.GetCurrentGoals(context.Background()); !errors.Is(err, tc.want) {
			t.Fatalf("get with %s: expected %v, got %v", tc.code, tc.want, err)
		}
		if err := store.UpdateGoal(context.Background(), domain.FieldDailyFrequency, 2, domain.SourceUser, time.Now()); !errors.Is(err, tc.want) {
			t.Fatalf("update with %s: expected %v, got %v", tc.code, tc.want, err)
		}
	}

	store := goaladapter.NewRemoteGoalStore(&goalLedger{getErr: status.Error(codes.Unavailable, "down")})
	_, err := store.GetCurrentGoals(context.Background())
	if err == nil || errors.Is(err, apperrors.ErrUnauthenticated) || status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected unavailable to pass through, got %v", err)
	}
}
