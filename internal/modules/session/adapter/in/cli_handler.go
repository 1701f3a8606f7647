package in

import (
	"context"
	"time"

	"habitsync/internal/modules/session/dto"
	sessionin "habitsync/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// End triggers the session and, since a CLI process exits right after,
// waits up to wait for the authoritative outcome.
func (h CLIHandler) End(ctx context.Context, sessionID string, actual, target time.Duration, aimed int, wait time.Duration) (dto.EndOutput, dto.OutcomeEvent, error) {
	out, err := h.usecase.TriggerSessionEnd(ctx, dto.EndInput{
		SessionID:           sessionID,
		ActualDurationSec:   int(actual.Seconds()),
		TargetDurationSec:   int(target.Seconds()),
		AimedSessionsPerDay: aimed,
	})
	if err != nil {
		return dto.EndOutput{}, dto.OutcomeEvent{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	event, err := h.usecase.AwaitOutcome(waitCtx, out.SessionID)
	if err != nil {
		return out, dto.OutcomeEvent{}, err
	}
	return out, event, nil
}

func (h CLIHandler) History(ctx context.Context, limit int) ([]dto.HistoryEntry, error) {
	return h.usecase.History(ctx, limit)
}

func (h CLIHandler) Streak(ctx context.Context) (dto.StreakOutput, error) {
	return h.usecase.Streak(ctx)
}

func (h CLIHandler) Export(ctx context.Context, dir string, limit int) (dto.ExportOutput, error) {
	return h.usecase.Export(ctx, dto.ExportInput{Dir: dir, Limit: limit})
}

func (h CLIHandler) Drain(ctx context.Context) error {
	return h.usecase.Drain(ctx)
}
