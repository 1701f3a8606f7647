package usecase

import (
	"context"

	"habitsync/internal/modules/ledger/domain"
	"habitsync/internal/modules/ledger/dto"
	ledgerin "habitsync/internal/modules/ledger/port/in"
	"habitsync/internal/modules/ledger/service"
)

type Interactor struct {
	svc *service.LedgerService
}

func NewInteractor(svc *service.LedgerService) ledgerin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Lookup(ctx context.Context, identity, sessionID string) (dto.Entry, bool, error) {
	entry, found, err := i.svc.Lookup(ctx, identity, sessionID)
	if err != nil || !found {
		return dto.Entry{}, false, err
	}
	return dto.Entry(entry), true, nil
}

func (i *Interactor) Streak(ctx context.Context, identity string) (dto.Streak, error) {
	streak, err := i.svc.Streak(ctx, identity)
	if err != nil {
		return dto.Streak{}, err
	}
	return dto.Streak(streak), nil
}

func (i *Interactor) Commit(ctx context.Context, input dto.CommitInput) (dto.CommitOutput, error) {
	entry, duplicate, err := i.svc.Commit(ctx, domain.Entry(input.Entry), domain.Streak(input.Streak), input.ExpectedVersion)
	if err != nil {
		return dto.CommitOutput{}, err
	}
	return dto.CommitOutput{Entry: dto.Entry(entry), Duplicate: duplicate}, nil
}

func (i *Interactor) History(ctx context.Context, identity string, limit int) ([]dto.Entry, error) {
	entries, err := i.svc.History(ctx, identity, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.Entry(entry))
	}
	return out, nil
}

func (i *Interactor) Goal(ctx context.Context, identity string) (dto.Goal, error) {
	goal, err := i.svc.Goal(ctx, identity)
	if err != nil {
		return dto.Goal{}, err
	}
	return toGoal(goal), nil
}

func (i *Interactor) UpdateGoal(ctx context.Context, input dto.UpdateGoalInput) (dto.UpdateGoalOutput, error) {
	goal, applied, err := i.svc.UpdateGoal(ctx, input.Identity, input.Field, input.Value, input.Source, input.UpdatedAt)
	if err != nil {
		return dto.UpdateGoalOutput{}, err
	}
	return dto.UpdateGoalOutput{Goal: toGoal(goal), Applied: applied}, nil
}

func toGoal(goal domain.Goal) dto.Goal {
	return dto.Goal{
		TimeTargetMinutes: goal.TimeTargetMinutes,
		DailyFrequency:    goal.DailyFrequency,
		UpdatedAt:         goal.UpdatedAt(),
		Source:            goal.Source,
	}
}
