package usecase

import (
	"context"

	"habitsync/internal/modules/goal/domain"
	"habitsync/internal/modules/goal/dto"
	goalin "habitsync/internal/modules/goal/port/in"
	goalout "habitsync/internal/modules/goal/port/out"
	"habitsync/internal/modules/goal/service"
)

type Interactor struct {
	svc    *service.SyncService
	events goalout.GoalEvents
}

func NewInteractor(svc *service.SyncService, events goalout.GoalEvents) goalin.Usecase {
	return &Interactor{svc: svc, events: events}
}

func (i *Interactor) GetCurrentGoals(_ context.Context) (dto.GoalOutput, error) {
	return i.output(i.svc.Current()), nil
}

func (i *Interactor) SetPreference(ctx context.Context, input dto.SetPreferenceInput) (dto.PendingMutation, error) {
	field, err := domain.ParseField(input.Field)
	if err != nil {
		return dto.PendingMutation{}, err
	}
	ticket, err := i.svc.SetPreference(ctx, field, input.Value, domain.ParseSource(input.Source))
	if err != nil {
		return dto.PendingMutation{}, err
	}
	m := ticket.Mutation()
	return dto.PendingMutation{Field: m.Key, Previous: m.Previous, Next: m.Next, Status: string(m.Status)}, nil
}

// ApplyPreference sets the preference and waits for the mutation to settle.
func (i *Interactor) ApplyPreference(ctx context.Context, input dto.SetPreferenceInput) (dto.MutationResult, error) {
	field, err := domain.ParseField(input.Field)
	if err != nil {
		return dto.MutationResult{}, err
	}
	ticket, err := i.svc.SetPreference(ctx, field, input.Value, domain.ParseSource(input.Source))
	if err != nil {
		return dto.MutationResult{}, err
	}
	m, err := ticket.Wait(ctx)
	if err != nil {
		return dto.MutationResult{}, err
	}
	result := dto.MutationResult{
		Field:    m.Key,
		Previous: m.Previous,
		Next:     m.Next,
		Status:   string(m.Status),
		Goal:     i.output(i.svc.Current()),
	}
	if m.Err != nil {
		result.Reason = m.Err.Error()
	}
	return result, nil
}

func (i *Interactor) Reconcile(ctx context.Context) (dto.GoalOutput, error) {
	pref, err := i.svc.Reconcile(ctx)
	if err != nil {
		return dto.GoalOutput{}, err
	}
	return i.output(pref), nil
}

func (i *Interactor) Subscribe(handler func(dto.GoalOutput)) func() {
	return i.events.SubscribeChanged(func(pref domain.Preference) {
		handler(i.output(pref))
	})
}

func (i *Interactor) SubscribeFailures(field string, handler func(dto.MutationFailure)) func() {
	return i.events.SubscribeFailures(domain.Field(field), func(failure domain.MutationFailure) {
		out := dto.MutationFailure{
			Field:     string(failure.Field),
			Previous:  failure.Previous,
			Attempted: failure.Attempted,
		}
		if failure.Err != nil {
			out.Reason = failure.Err.Error()
		}
		handler(out)
	})
}

func (i *Interactor) SubscribeReminders(handler func(dto.ReminderPlan)) func() {
	return i.events.SubscribeReminders(func(plan domain.ReminderPlan) {
		handler(dto.ReminderPlan{DailyFrequency: plan.DailyFrequency, Slots: plan.Slots})
	})
}

func (i *Interactor) Drain(ctx context.Context) error {
	return i.svc.Wait(ctx)
}

func (i *Interactor) output(pref domain.Preference) dto.GoalOutput {
	pending := []string{}
	for _, field := range i.svc.Pending() {
		pending = append(pending, string(field))
	}
	return dto.GoalOutput{
		TimeTargetMinutes: pref.TimeTargetMinutes,
		DailyFrequency:    pref.DailyFrequency,
		UpdatedAt:         pref.UpdatedAt,
		Source:            string(pref.Source),
		Pending:           pending,
	}
}
