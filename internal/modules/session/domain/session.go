package domain

import (
	"time"

	apperrors "habitsync/internal/platform/errors"
	"habitsync/internal/platform/identity"
)

const SchemaVersion = 1

// Session is one completed timed activity. It never changes after creation;
// ID is the idempotency key for every store.
type Session struct {
	ID                  string
	Identity            identity.Identity
	ActualDurationSec   int
	TargetDurationSec   int
	AimedSessionsPerDay int
	OccurredAt          time.Time
}

func (s Session) Validate() error {
	if s.ID == "" {
		return apperrors.Invalid("session id", "is required")
	}
	return ValidateDurations(s.ActualDurationSec, s.TargetDurationSec, s.AimedSessionsPerDay)
}

func ValidateDurations(actual, target, aimed int) error {
	if actual <= 0 {
		return apperrors.Invalid("actual duration", "must be positive")
	}
	if target <= 0 {
		return apperrors.Invalid("target duration", "must be positive")
	}
	if aimed < 1 {
		return apperrors.Invalid("aimed sessions per day", "must be at least 1")
	}
	return nil
}

type Outcome struct {
	SessionID   string `json:"session_id"`
	BasePoints  int    `json:"base_points"`
	BonusPoints int    `json:"bonus_points"`
	TotalPoints int    `json:"total_points"`
	TimeStreak  int    `json:"time_streak"`
	DailyStreak int    `json:"daily_streak"`
}

// StreakState is owned by the active store and only changes when an outcome
// is committed. LastQualifyingDate is a YYYY-MM-DD calendar date.
type StreakState struct {
	TimeStreak         int    `json:"time_streak"`
	DailyStreak        int    `json:"daily_streak"`
	LastQualifyingDate string `json:"last_qualifying_date,omitempty"`
}

// Record is a persisted session together with its outcome.
type Record struct {
	Session    Session
	Outcome    Outcome
	RecordedAt time.Time
}

// State tracks a session's background save.
type State string

const (
	StateStarted   State = "started"
	StateComputing State = "computing"
	StateCommitted State = "committed"
	StateFailed    State = "failed"
)

func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// OutcomeEvent is what the coordinator publishes once a save settles.
type OutcomeEvent struct {
	SessionID   string
	Committed   bool
	Outcome     Outcome
	Err         error
	Discardable bool
}
