package domain

import (
	"math"
	"time"
)

const (
	// BasePointsMax is awarded for reaching the full target duration.
	BasePointsMax = 100
	// BonusPerStreakStep is added per consecutive on-target session.
	BonusPerStreakStep = 10
	BonusPointsCap     = 100

	dateLayout = "2006-01-02"
)

// BonusPoints grows with the time streak and is zero without one.
func BonusPoints(timeStreak int) int {
	if timeStreak <= 0 {
		return 0
	}
	return min(timeStreak*BonusPerStreakStep, BonusPointsCap)
}

// Qualifies reports whether the session reached its target.
func (s Session) Qualifies() bool {
	return s.ActualDurationSec >= s.TargetDurationSec
}

// CalendarDate is the session's day in loc.
func (s Session) CalendarDate(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return s.OccurredAt.In(loc).Format(dateLayout)
}

// Calculate scores a session against the prior streak state and returns the
// outcome together with the streak state to store. It has no side effects.
func Calculate(session Session, prior StreakState, loc *time.Location) (Outcome, StreakState, error) {
	if err := ValidateDurations(session.ActualDurationSec, session.TargetDurationSec, session.AimedSessionsPerDay); err != nil {
		return Outcome{}, StreakState{}, err
	}

	ratio := float64(session.ActualDurationSec) / float64(session.TargetDurationSec)
	ratio = math.Max(0, math.Min(1, ratio))
	base := int(math.Round(ratio * BasePointsMax))

	next := prior
	if session.Qualifies() {
		next.TimeStreak = prior.TimeStreak + 1
		next.DailyStreak, next.LastQualifyingDate = advanceDaily(prior, session.CalendarDate(loc))
	} else {
		next.TimeStreak = 0
	}

	bonus := BonusPoints(next.TimeStreak)
	return Outcome{
		SessionID:   session.ID,
		BasePoints:  base,
		BonusPoints: bonus,
		TotalPoints: base + bonus,
		TimeStreak:  next.TimeStreak,
		DailyStreak: next.DailyStreak,
	}, next, nil
}

// advanceDaily applies one qualifying session on day to the daily streak.
func advanceDaily(prior StreakState, day string) (int, string) {
	if prior.LastQualifyingDate == "" {
		return 1, day
	}
	gap, ok := daysBetween(prior.LastQualifyingDate, day)
	switch {
	case !ok:
		return 1, day
	case gap <= 0:
		// same day, or a clock that moved backwards
		return max(prior.DailyStreak, 1), prior.LastQualifyingDate
	case gap == 1:
		return prior.DailyStreak + 1, day
	default:
		return 1, day
	}
}

func daysBetween(from, to string) (int, bool) {
	a, err := time.Parse(dateLayout, from)
	if err != nil {
		return 0, false
	}
	b, err := time.Parse(dateLayout, to)
	if err != nil {
		return 0, false
	}
	return int(b.Sub(a).Hours() / 24), true
}
