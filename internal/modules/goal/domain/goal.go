package domain

import (
	"fmt"
	"time"

	apperrors "habitsync/internal/platform/errors"
)

type Field string

const (
	FieldTimeTargetMinutes Field = "timeTargetMinutes"
	FieldDailyFrequency    Field = "dailyFrequency"
)

var Fields = []Field{FieldTimeTargetMinutes, FieldDailyFrequency}

type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

const (
	DefaultTimeTargetMinutes = 10
	DefaultDailyFrequency    = 1

	MinTimeTargetMinutes = 1
	MaxTimeTargetMinutes = 240
	MinDailyFrequency    = 1
	MaxDailyFrequency    = 12
)

// Preference is the user's goal configuration.
type Preference struct {
	TimeTargetMinutes int
	DailyFrequency    int
	UpdatedAt         time.Time
	Source            Source
}

func Defaults() Preference {
	return Preference{
		TimeTargetMinutes: DefaultTimeTargetMinutes,
		DailyFrequency:    DefaultDailyFrequency,
		Source:            SourceSystem,
	}
}

func ParseField(raw string) (Field, error) {
	switch Field(raw) {
	case FieldTimeTargetMinutes, FieldDailyFrequency:
		return Field(raw), nil
	default:
		return "", apperrors.Invalid("field", fmt.Sprintf("unknown goal field %q", raw))
	}
}

func ParseSource(raw string) Source {
	if Source(raw) == SourceSystem {
		return SourceSystem
	}
	return SourceUser
}

func ValidateValue(field Field, value int) error {
	switch field {
	case FieldTimeTargetMinutes:
		if value < MinTimeTargetMinutes || value > MaxTimeTargetMinutes {
			return apperrors.Invalid(string(field), fmt.Sprintf("must be between %d and %d", MinTimeTargetMinutes, MaxTimeTargetMinutes))
		}
	case FieldDailyFrequency:
		if value < MinDailyFrequency || value > MaxDailyFrequency {
			return apperrors.Invalid(string(field), fmt.Sprintf("must be between %d and %d", MinDailyFrequency, MaxDailyFrequency))
		}
	default:
		return apperrors.Invalid("field", fmt.Sprintf("unknown goal field %q", field))
	}
	return nil
}

func (p Preference) Value(field Field) int {
	if field == FieldDailyFrequency {
		return p.DailyFrequency
	}
	return p.TimeTargetMinutes
}

// With returns p with field set to value.
func (p Preference) With(field Field, value int) Preference {
	switch field {
	case FieldTimeTargetMinutes:
		p.TimeTargetMinutes = value
	case FieldDailyFrequency:
		p.DailyFrequency = value
	}
	return p
}

// MutationFailure reports a preference change that was rolled back.
type MutationFailure struct {
	Field     Field
	Previous  int
	Attempted int
	Err       error
}
