package out

import (
	"context"
	"fmt"
	"time"

	"habitsync/internal/modules/session/domain"
	sessionout "habitsync/internal/modules/session/port/out"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/guestvault"
	"habitsync/internal/platform/identity"
)

// GuestSessionStore keeps sessions, outcomes and streak state in the guest
// vault. Calculation and persistence happen under one vault update, so two
// sessions can never score against the same prior state.
type GuestSessionStore struct {
	vault    *guestvault.Vault
	identity identity.Identity
	loc      *time.Location
	clock    clock.Clock
}

func NewGuestSessionStore(vault *guestvault.Vault, ident identity.Identity, loc *time.Location, clk clock.Clock) sessionout.SessionStore {
	return &GuestSessionStore{vault: vault, identity: ident, loc: loc, clock: clk}
}

func (s *GuestSessionStore) RecordSession(ctx context.Context, session domain.Session) (domain.Outcome, error) {
	if err := session.Validate(); err != nil {
		return domain.Outcome{}, err
	}
	outcome := domain.Outcome{}
	err := s.vault.Update(ctx, func(blob *guestvault.Blob) (bool, error) {
		if existing, ok := blob.FindSession(session.ID); ok {
			outcome = outcomeFromHistory(existing)
			return false, nil
		}
		computed, next, err := domain.Calculate(session, domain.StreakState(blob.Streak), s.loc)
		if err != nil {
			return false, err
		}
		blob.Streak = guestvault.StreakRecord(next)
		blob.History = append([]guestvault.HistoryRecord{toHistory(s.identity, session, computed, s.clock.Now())}, blob.History...)
		outcome = computed
		return true, nil
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("record guest session %s: %w", session.ID, err)
	}
	return outcome, nil
}

func (s *GuestSessionStore) History(ctx context.Context, limit int) ([]domain.Record, error) {
	blob, err := s.vault.Load(ctx)
	if err != nil {
		return nil, err
	}
	entries := blob.History
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	records := make([]domain.Record, 0, len(entries))
	for _, entry := range entries {
		records = append(records, domain.Record{
			Session:    sessionFromHistory(entry),
			Outcome:    outcomeFromHistory(entry),
			RecordedAt: entry.RecordedAt,
		})
	}
	return records, nil
}

func (s *GuestSessionStore) CurrentStreak(ctx context.Context) (domain.StreakState, error) {
	blob, err := s.vault.Load(ctx)
	if err != nil {
		return domain.StreakState{}, err
	}
	return domain.StreakState(blob.Streak), nil
}

func toHistory(ident identity.Identity, session domain.Session, outcome domain.Outcome, recordedAt time.Time) guestvault.HistoryRecord {
	if session.Identity.IsZero() {
		session.Identity = ident
	}
	return guestvault.HistoryRecord{
		SessionID:           session.ID,
		Identity:            session.Identity.String(),
		ActualDurationSec:   session.ActualDurationSec,
		TargetDurationSec:   session.TargetDurationSec,
		AimedSessionsPerDay: session.AimedSessionsPerDay,
		OccurredAt:          session.OccurredAt,
		BasePoints:          outcome.BasePoints,
		BonusPoints:         outcome.BonusPoints,
		TotalPoints:         outcome.TotalPoints,
		TimeStreak:          outcome.TimeStreak,
		DailyStreak:         outcome.DailyStreak,
		RecordedAt:          recordedAt,
	}
}

func sessionFromHistory(rec guestvault.HistoryRecord) domain.Session {
	ident, _ := identity.Parse(rec.Identity)
	return domain.Session{
		ID:                  rec.SessionID,
		Identity:            ident,
		ActualDurationSec:   rec.ActualDurationSec,
		TargetDurationSec:   rec.TargetDurationSec,
		AimedSessionsPerDay: rec.AimedSessionsPerDay,
		OccurredAt:          rec.OccurredAt,
	}
}

func outcomeFromHistory(rec guestvault.HistoryRecord) domain.Outcome {
	return domain.Outcome{
		SessionID:   rec.SessionID,
		BasePoints:  rec.BasePoints,
		BonusPoints: rec.BonusPoints,
		TotalPoints: rec.TotalPoints,
		TimeStreak:  rec.TimeStreak,
		DailyStreak: rec.DailyStreak,
	}
}
