package in

import (
	"context"

	"habitsync/internal/modules/session/dto"
	sessionin "habitsync/internal/modules/session/port/in"
)

type TUIHandler struct {
	usecase sessionin.Usecase
}

func NewTUIHandler(usecase sessionin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) End(ctx context.Context, actualSec, targetSec, aimed int) (dto.EndOutput, error) {
	return h.usecase.TriggerSessionEnd(ctx, dto.EndInput{
		ActualDurationSec:   actualSec,
		TargetDurationSec:   targetSec,
		AimedSessionsPerDay: aimed,
	})
}

// Retry resubmits a session whose save failed. The session keeps its id so
// the store can recognise it if the earlier attempt landed after all.
func (h TUIHandler) Retry(ctx context.Context, sessionID string, actualSec, targetSec, aimed int) (dto.EndOutput, error) {
	return h.usecase.TriggerSessionEnd(ctx, dto.EndInput{
		SessionID:           sessionID,
		ActualDurationSec:   actualSec,
		TargetDurationSec:   targetSec,
		AimedSessionsPerDay: aimed,
	})
}

func (h TUIHandler) Subscribe(sessionID string, handler func(dto.OutcomeEvent)) func() {
	return h.usecase.SubscribeOutcome(sessionID, handler)
}

func (h TUIHandler) Discard(sessionID string) bool {
	return h.usecase.Discard(sessionID)
}
