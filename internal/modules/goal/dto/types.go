package dto

import "time"

type GoalOutput struct {
	TimeTargetMinutes int
	DailyFrequency    int
	UpdatedAt         time.Time
	Source            string
	Pending           []string
}

type SetPreferenceInput struct {
	Field  string
	Value  int
	Source string
}

type PendingMutation struct {
	Field    string
	Previous int
	Next     int
	Status   string
}

type MutationResult struct {
	Field    string
	Previous int
	Next     int
	Status   string
	Reason   string
	Goal     GoalOutput
}

type MutationFailure struct {
	Field     string
	Previous  int
	Attempted int
	Reason    string
}

type ReminderPlan struct {
	DailyFrequency int
	Slots          []string
}
