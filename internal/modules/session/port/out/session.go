package out

import (
	"context"

	"habitsync/internal/modules/session/domain"
)

// SessionStore persists sessions for one identity. RecordSession computes
// the outcome from the store's own streak state and persists session,
// outcome and new streak state as one unit; a known session id returns the
// stored outcome unchanged.
type SessionStore interface {
	RecordSession(ctx context.Context, session domain.Session) (domain.Outcome, error)
	History(ctx context.Context, limit int) ([]domain.Record, error)
	CurrentStreak(ctx context.Context) (domain.StreakState, error)
}

// OutcomeEvents carries settled saves to listeners, replaying the last
// event per session to late subscribers.
type OutcomeEvents interface {
	PublishCommitted(sessionID string, outcome domain.Outcome, discardable bool)
	PublishFailed(sessionID string, err error, discardable bool)
	// ClearFailure forgets a failed result that is being retried.
	ClearFailure(sessionID string)
	Subscribe(sessionID string, handler func(domain.OutcomeEvent)) (unsubscribe func())
}

// NoteWriter writes one exported history entry and reports its location.
type NoteWriter interface {
	WriteNote(ctx context.Context, dir string, record domain.Record) (path string, written bool, err error)
}
