package in

import (
	"context"

	"habitsync/internal/modules/goal/dto"
)

type Usecase interface {
	GetCurrentGoals(ctx context.Context) (dto.GoalOutput, error)
	SetPreference(ctx context.Context, input dto.SetPreferenceInput) (dto.PendingMutation, error)
	ApplyPreference(ctx context.Context, input dto.SetPreferenceInput) (dto.MutationResult, error)
	Reconcile(ctx context.Context) (dto.GoalOutput, error)
	Subscribe(handler func(dto.GoalOutput)) (unsubscribe func())
	SubscribeFailures(field string, handler func(dto.MutationFailure)) (unsubscribe func())
	SubscribeReminders(handler func(dto.ReminderPlan)) (unsubscribe func())
	Drain(ctx context.Context) error
}
