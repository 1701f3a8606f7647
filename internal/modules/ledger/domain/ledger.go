package domain

import (
	"time"

	apperrors "habitsync/internal/platform/errors"
)

const (
	GoalFieldTimeTargetMinutes = "timeTargetMinutes"
	GoalFieldDailyFrequency    = "dailyFrequency"

	SourceUser = "user"
)

// Entry is one committed session with the outcome the client computed.
type Entry struct {
	Identity            string
	SessionID           string
	ActualDurationSec   int
	TargetDurationSec   int
	AimedSessionsPerDay int
	OccurredAt          time.Time
	BasePoints          int
	BonusPoints         int
	TotalPoints         int
	TimeStreak          int
	DailyStreak         int
	RecordedAt          time.Time
}

func (e Entry) Validate() error {
	switch {
	case e.Identity == "":
		return apperrors.Invalid("identity", "is required")
	case e.SessionID == "":
		return apperrors.Invalid("session id", "is required")
	case e.ActualDurationSec <= 0 || e.TargetDurationSec <= 0:
		return apperrors.Invalid("duration", "must be positive")
	case e.AimedSessionsPerDay < 1:
		return apperrors.Invalid("aimed sessions per day", "must be at least 1")
	case e.TotalPoints != e.BasePoints+e.BonusPoints:
		return apperrors.Invalid("total points", "must equal base plus bonus")
	case e.TimeStreak < 0 || e.DailyStreak < 0:
		return apperrors.Invalid("streak", "must not be negative")
	}
	return nil
}

// Streak is an identity's streak row. Version grows by one per commit and
// is the compare-and-swap token for CommitSession.
type Streak struct {
	TimeStreak         int
	DailyStreak        int
	LastQualifyingDate string
	Version            int64
}

// Goal stores each field with its own write time so concurrent editors
// resolve per field, last writer wins. Zero values mean never set.
type Goal struct {
	TimeTargetMinutes       int
	DailyFrequency          int
	TimeTargetUpdatedAt     time.Time
	DailyFrequencyUpdatedAt time.Time
	Source                  string
}

func (g Goal) UpdatedAt() time.Time {
	if g.DailyFrequencyUpdatedAt.After(g.TimeTargetUpdatedAt) {
		return g.DailyFrequencyUpdatedAt
	}
	return g.TimeTargetUpdatedAt
}

// Apply writes value into field unless the stored write is newer. It
// reports whether the goal changed. An empty source counts as a user edit.
func (g *Goal) Apply(field string, value int, source string, at time.Time) (bool, error) {
	if value <= 0 {
		return false, apperrors.Invalid(field, "must be positive")
	}
	switch field {
	case GoalFieldTimeTargetMinutes:
		if g.TimeTargetUpdatedAt.After(at) {
			return false, nil
		}
		g.TimeTargetMinutes = value
		g.TimeTargetUpdatedAt = at
	case GoalFieldDailyFrequency:
		if g.DailyFrequencyUpdatedAt.After(at) {
			return false, nil
		}
		g.DailyFrequency = value
		g.DailyFrequencyUpdatedAt = at
	default:
		return false, apperrors.Invalid("field", "unknown goal field "+field)
	}
	if source == "" {
		source = SourceUser
	}
	g.Source = source
	return true, nil
}
