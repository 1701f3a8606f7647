package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"habitsync/internal/modules/session/domain"
	sessionout "habitsync/internal/modules/session/port/out"
	apperrors "habitsync/internal/platform/errors"
	"habitsync/internal/platform/identity"
	"habitsync/internal/platform/ledgerrpc"
)

const remoteCommitAttempts = 2

// RemoteSessionStore scores sessions against the ledger's streak state and
// commits them with a version check. A concurrent writer or a dropped
// connection costs one retry against fresh state.
type RemoteSessionStore struct {
	client   ledgerrpc.LedgerClient
	identity identity.Identity
	loc      *time.Location
}

func NewRemoteSessionStore(client ledgerrpc.LedgerClient, ident identity.Identity, loc *time.Location) sessionout.SessionStore {
	return &RemoteSessionStore{client: client, identity: ident, loc: loc}
}

func (s *RemoteSessionStore) RecordSession(ctx context.Context, session domain.Session) (domain.Outcome, error) {
	if err := session.Validate(); err != nil {
		return domain.Outcome{}, err
	}
	if session.Identity.IsZero() {
		session.Identity = s.identity
	}
	var lastErr error
	for attempt := 0; attempt < remoteCommitAttempts; attempt++ {
		outcome, err := s.commitOnce(ctx, session)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return domain.Outcome{}, fmt.Errorf("record remote session %s: %w", session.ID, mapStatus(lastErr))
}

func (s *RemoteSessionStore) commitOnce(ctx context.Context, session domain.Session) (domain.Outcome, error) {
	found, err := s.client.LookupOutcome(ctx, &ledgerrpc.LookupOutcomeRequest{SessionID: session.ID})
	if err != nil {
		return domain.Outcome{}, err
	}
	if found.Found {
		return outcomeFromWire(found.Outcome), nil
	}

	current, err := s.client.GetStreak(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}
	outcome, next, err := domain.Calculate(session, streakFromWire(current.Streak), s.loc)
	if err != nil {
		return domain.Outcome{}, err
	}

	resp, err := s.client.CommitSession(ctx, &ledgerrpc.CommitSessionRequest{
		Session: sessionToWire(session),
		Outcome: outcomeToWire(outcome),
		Streak: ledgerrpc.Streak{
			TimeStreak:         next.TimeStreak,
			DailyStreak:        next.DailyStreak,
			LastQualifyingDate: next.LastQualifyingDate,
			Version:            current.Streak.Version + 1,
		},
		ExpectedVersion: current.Streak.Version,
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return outcomeFromWire(resp.Outcome), nil
}

func (s *RemoteSessionStore) History(ctx context.Context, limit int) ([]domain.Record, error) {
	resp, err := s.client.ListHistory(ctx, &ledgerrpc.ListHistoryRequest{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list remote history: %w", mapStatus(err))
	}
	records := make([]domain.Record, 0, len(resp.Entries))
	for _, entry := range resp.Entries {
		ident, _ := identity.Parse(entry.Session.Identity)
		records = append(records, domain.Record{
			Session: domain.Session{
				ID:                  entry.Session.ID,
				Identity:            ident,
				ActualDurationSec:   entry.Session.ActualDurationSec,
				TargetDurationSec:   entry.Session.TargetDurationSec,
				AimedSessionsPerDay: entry.Session.AimedSessionsPerDay,
				OccurredAt:          entry.Session.OccurredAt,
			},
			Outcome:    outcomeFromWire(entry.Outcome),
			RecordedAt: entry.RecordedAt,
		})
	}
	return records, nil
}

func (s *RemoteSessionStore) CurrentStreak(ctx context.Context) (domain.StreakState, error) {
	resp, err := s.client.GetStreak(ctx)
	if err != nil {
		return domain.StreakState{}, fmt.Errorf("get remote streak: %w", mapStatus(err))
	}
	return streakFromWire(resp.Streak), nil
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Aborted, codes.Unavailable:
		return true
	default:
		return false
	}
}

// mapStatus folds gRPC status codes the caller can act on into app errors.
func mapStatus(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return errors.Join(apperrors.ErrUnauthenticated, err)
	case codes.InvalidArgument:
		return errors.Join(apperrors.ErrInvalidInput, err)
	case codes.Aborted:
		return errors.Join(apperrors.ErrVersionConflict, err)
	case codes.NotFound:
		return errors.Join(apperrors.ErrNotFound, err)
	default:
		return err
	}
}

func sessionToWire(session domain.Session) ledgerrpc.Session {
	return ledgerrpc.Session{
		ID:                  session.ID,
		Identity:            session.Identity.String(),
		ActualDurationSec:   session.ActualDurationSec,
		TargetDurationSec:   session.TargetDurationSec,
		AimedSessionsPerDay: session.AimedSessionsPerDay,
		OccurredAt:          session.OccurredAt,
	}
}

func outcomeToWire(outcome domain.Outcome) ledgerrpc.Outcome {
	return ledgerrpc.Outcome(outcome)
}

func outcomeFromWire(outcome ledgerrpc.Outcome) domain.Outcome {
	return domain.Outcome(outcome)
}

func streakFromWire(streak ledgerrpc.Streak) domain.StreakState {
	return domain.StreakState{
		TimeStreak:         streak.TimeStreak,
		DailyStreak:        streak.DailyStreak,
		LastQualifyingDate: streak.LastQualifyingDate,
	}
}
