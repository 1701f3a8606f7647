package dto

import "time"

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

type Streak struct {
	TimeStreak         int
	DailyStreak        int
	LastQualifyingDate string
	Version            int64
}

type Goal struct {
	TimeTargetMinutes int
	DailyFrequency    int
	UpdatedAt         time.Time
	Source            string
}

type CommitInput struct {
	Entry           Entry
	Streak          Streak
	ExpectedVersion int64
}

type CommitOutput struct {
	Entry     Entry
	Duplicate bool
}

type UpdateGoalInput struct {
	Identity  string
	Field     string
	Value     int
	Source    string
	UpdatedAt time.Time
}

type UpdateGoalOutput struct {
	Goal    Goal
	Applied bool
}
