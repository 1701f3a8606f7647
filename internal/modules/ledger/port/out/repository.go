package out

import (
	"context"

	"habitsync/internal/modules/ledger/domain"
)

// Repository persists ledger rows. Calls made with a context from
// tx.Manager.Within share that transaction.
type Repository interface {
	FindEntry(ctx context.Context, identity, sessionID string) (domain.Entry, bool, error)
	InsertEntry(ctx context.Context, entry domain.Entry) error
	ListEntries(ctx context.Context, identity string, limit int) ([]domain.Entry, error)
	GetStreak(ctx context.Context, identity string) (domain.Streak, error)
	PutStreak(ctx context.Context, identity string, streak domain.Streak) error
	GetGoal(ctx context.Context, identity string) (domain.Goal, error)
	PutGoal(ctx context.Context, identity string, goal domain.Goal) error
}
