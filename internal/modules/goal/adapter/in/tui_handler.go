package in

import (
	"context"

	"habitsync/internal/modules/goal/dto"
	goalin "habitsync/internal/modules/goal/port/in"
)

type TUIHandler struct {
	usecase goalin.Usecase
}

func NewTUIHandler(usecase goalin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Current(ctx context.Context) (dto.GoalOutput, error) {
	return h.usecase.GetCurrentGoals(ctx)
}

func (h TUIHandler) Set(ctx context.Context, field string, value int) (dto.PendingMutation, error) {
	return h.usecase.SetPreference(ctx, dto.SetPreferenceInput{Field: field, Value: value, Source: "user"})
}

func (h TUIHandler) Subscribe(handler func(dto.GoalOutput)) func() {
	return h.usecase.Subscribe(handler)
}

func (h TUIHandler) SubscribeFailures(field string, handler func(dto.MutationFailure)) func() {
	return h.usecase.SubscribeFailures(field, handler)
}
