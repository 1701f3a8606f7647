package out

import (
	"context"
	"time"

	"habitsync/internal/modules/goal/domain"
)

// GoalStore holds the authoritative preference. UpdateGoal is
// last-writer-wins per field: a write older than the stored one for the
// same field is ignored. An applied write records its source.
type GoalStore interface {
	GetCurrentGoals(ctx context.Context) (domain.Preference, error)
	UpdateGoal(ctx context.Context, field domain.Field, value int, source domain.Source, at time.Time) error
}

type GoalEvents interface {
	PublishChanged(pref domain.Preference)
	PublishMutationFailed(failure domain.MutationFailure)
	PublishReminderPlan(plan domain.ReminderPlan)
	SubscribeChanged(handler func(domain.Preference)) (unsubscribe func())
	SubscribeFailures(field domain.Field, handler func(domain.MutationFailure)) (unsubscribe func())
	SubscribeReminders(handler func(domain.ReminderPlan)) (unsubscribe func())
}
