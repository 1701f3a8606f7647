package dto

import "time"

type EndInput struct {
	SessionID           string
	ActualDurationSec   int
	TargetDurationSec   int
	AimedSessionsPerDay int
}

type OutcomeOutput struct {
	SessionID   string
	BasePoints  int
	BonusPoints int
	TotalPoints int
	TimeStreak  int
	DailyStreak int
}

type EndOutput struct {
	SessionID string
	Identity  string
	State     string
	Estimate  OutcomeOutput
}

type OutcomeEvent struct {
	SessionID   string
	Committed   bool
	Outcome     OutcomeOutput
	Reason      string
	Discardable bool
}

type HistoryEntry struct {
	SessionID           string
	Identity            string
	ActualDurationSec   int
	TargetDurationSec   int
	AimedSessionsPerDay int
	OccurredAt          time.Time
	RecordedAt          time.Time
	Outcome             OutcomeOutput
}

type StreakOutput struct {
	TimeStreak         int
	DailyStreak        int
	LastQualifyingDate string
}

type ExportInput struct {
	Dir   string
	Limit int
}

type ExportOutput struct {
	Written []string
	Skipped int
}
