package in

import (
	"context"

	"habitsync/internal/modules/session/dto"
)

type Usecase interface {
	TriggerSessionEnd(ctx context.Context, input dto.EndInput) (dto.EndOutput, error)
	SubscribeOutcome(sessionID string, handler func(dto.OutcomeEvent)) (unsubscribe func())
	AwaitOutcome(ctx context.Context, sessionID string) (dto.OutcomeEvent, error)
	Discard(sessionID string) bool
	Status(sessionID string) (string, bool)
	History(ctx context.Context, limit int) ([]dto.HistoryEntry, error)
	Streak(ctx context.Context) (dto.StreakOutput, error)
	Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error)
	Drain(ctx context.Context) error
}
