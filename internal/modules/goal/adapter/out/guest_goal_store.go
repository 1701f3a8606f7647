package out

import (
	"context"
	"fmt"
	"time"

	"habitsync/internal/modules/goal/domain"
	goalout "habitsync/internal/modules/goal/port/out"
	"habitsync/internal/platform/guestvault"
)

type GuestGoalStore struct {
	vault *guestvault.Vault
}

func NewGuestGoalStore(vault *guestvault.Vault) goalout.GoalStore {
	return &GuestGoalStore{vault: vault}
}

func (s *GuestGoalStore) GetCurrentGoals(ctx context.Context) (domain.Preference, error) {
	blob, err := s.vault.Load(ctx)
	if err != nil {
		return domain.Preference{}, err
	}
	if blob.CurrentGoal == nil {
		return domain.Defaults(), nil
	}
	return fromGoalRecord(*blob.CurrentGoal), nil
}

func (s *GuestGoalStore) UpdateGoal(ctx context.Context, field domain.Field, value int, source domain.Source, at time.Time) error {
	if err := domain.ValidateValue(field, value); err != nil {
		return err
	}
	err := s.vault.Update(ctx, func(blob *guestvault.Blob) (bool, error) {
		record := blob.CurrentGoal
		if record == nil {
			defaults := domain.Defaults()
			record = &guestvault.GoalRecord{
				TimeTargetMinutes: defaults.TimeTargetMinutes,
				DailyFrequency:    defaults.DailyFrequency,
				Source:            string(defaults.Source),
			}
		}
		if record.FieldUpdatedAt == nil {
			record.FieldUpdatedAt = map[string]time.Time{}
		}
		if stored, ok := record.FieldUpdatedAt[string(field)]; ok && stored.After(at) {
			return false, nil
		}
		switch field {
		case domain.FieldTimeTargetMinutes:
			record.TimeTargetMinutes = value
		case domain.FieldDailyFrequency:
			record.DailyFrequency = value
		}
		record.FieldUpdatedAt[string(field)] = at
		if at.After(record.UpdatedAt) {
			record.UpdatedAt = at
		}
		record.Source = string(source)
		blob.CurrentGoal = record
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("update guest goal %s: %w", field, err)
	}
	return nil
}

func fromGoalRecord(record guestvault.GoalRecord) domain.Preference {
	return domain.Preference{
		TimeTargetMinutes: record.TimeTargetMinutes,
		DailyFrequency:    record.DailyFrequency,
		UpdatedAt:         record.UpdatedAt,
		Source:            domain.ParseSource(record.Source),
	}
}
