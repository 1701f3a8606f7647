package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"habitsync/internal/modules/goal/domain"
	goalout "habitsync/internal/modules/goal/port/out"
	apperrors "habitsync/internal/platform/errors"
	"habitsync/internal/platform/ledgerrpc"
)

type RemoteGoalStore struct {
	client ledgerrpc.LedgerClient
}

func NewRemoteGoalStore(client ledgerrpc.LedgerClient) goalout.GoalStore {
	return &RemoteGoalStore{client: client}
}

func (s *RemoteGoalStore) GetCurrentGoals(ctx context.Context) (domain.Preference, error) {
	resp, err := s.client.GetGoals(ctx)
	if err != nil {
		return domain.Preference{}, fmt.Errorf("get remote goals: %w", mapStatus(err))
	}
	return fromWireGoal(resp.Goal), nil
}

// UpdateGoal sends the write with its timestamp. A write the ledger kept
// out because it already holds a newer value is not an error; the next
// reconcile picks the newer value up.
func (s *RemoteGoalStore) UpdateGoal(ctx context.Context, field domain.Field, value int, source domain.Source, at time.Time) error {
	if err := domain.ValidateValue(field, value); err != nil {
		return err
	}
	_, err := s.client.UpdateGoal(ctx, &ledgerrpc.UpdateGoalRequest{Field: string(field), Value: value, Source: string(source), UpdatedAt: at})
	if err != nil {
		return fmt.Errorf("update remote goal %s: %w", field, mapStatus(err))
	}
	return nil
}

// fromWireGoal fills fields the ledger has never stored with defaults.
func fromWireGoal(goal ledgerrpc.Goal) domain.Preference {
	pref := domain.Defaults()
	if goal.TimeTargetMinutes > 0 {
		pref.TimeTargetMinutes = goal.TimeTargetMinutes
	}
	if goal.DailyFrequency > 0 {
		pref.DailyFrequency = goal.DailyFrequency
	}
	if !goal.UpdatedAt.IsZero() {
		pref.UpdatedAt = goal.UpdatedAt
		pref.Source = domain.ParseSource(goal.Source)
	}
	return pref
}

func mapStatus(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return errors.Join(apperrors.ErrUnauthenticated, err)
	case codes.InvalidArgument:
		return errors.Join(apperrors.ErrInvalidInput, err)
	default:
		return err
	}
}
