package in

import (
	"context"

	"habitsync/internal/modules/goal/dto"
	goalin "habitsync/internal/modules/goal/port/in"
)

type CLIHandler struct {
	usecase goalin.Usecase
}

func NewCLIHandler(usecase goalin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Show(ctx context.Context) (dto.GoalOutput, error) {
	return h.usecase.Reconcile(ctx)
}

func (h CLIHandler) Set(ctx context.Context, field string, value int) (dto.MutationResult, error) {
	return h.usecase.ApplyPreference(ctx, dto.SetPreferenceInput{Field: field, Value: value, Source: "user"})
}

func (h CLIHandler) Drain(ctx context.Context) error {
	return h.usecase.Drain(ctx)
}
