package in

import (
	"context"

	"habitsync/internal/modules/ledger/dto"
)

type Usecase interface {
	Lookup(ctx context.Context, identity, sessionID string) (dto.Entry, bool, error)
	Streak(ctx context.Context, identity string) (dto.Streak, error)
	Commit(ctx context.Context, input dto.CommitInput) (dto.CommitOutput, error)
	History(ctx context.Context, identity string, limit int) ([]dto.Entry, error)
	Goal(ctx context.Context, identity string) (dto.Goal, error)
	UpdateGoal(ctx context.Context, input dto.UpdateGoalInput) (dto.UpdateGoalOutput, error)
}
