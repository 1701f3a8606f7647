package service

import (
	"context"
	"fmt"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"habitsync/internal/modules/ledger/domain"
	ledgerout "habitsync/internal/modules/ledger/port/out"
	"habitsync/internal/platform/clock"
	apperrors "habitsync/internal/platform/errors"
	"habitsync/internal/platform/tx"
)

const DefaultHistoryLimit = 100

type LedgerService struct {
	repo  ledgerout.Repository
	tx    tx.Manager
	clock clock.Clock
	log   hclog.Logger
}

func NewLedgerService(repo ledgerout.Repository, txm tx.Manager, clk clock.Clock, log hclog.Logger) *LedgerService {
	return &LedgerService{repo: repo, tx: txm, clock: clk, log: log.Named("ledger")}
}

func (s *LedgerService) Lookup(ctx context.Context, identity, sessionID string) (domain.Entry, bool, error) {
	return s.repo.FindEntry(ctx, identity, sessionID)
}

func (s *LedgerService) Streak(ctx context.Context, identity string) (domain.Streak, error) {
	return s.repo.GetStreak(ctx, identity)
}

// Commit stores entry and next in one transaction when the identity's
// streak version still equals expected. A session already stored returns
// its original entry with duplicate set; a stale version returns
// ErrVersionConflict and stores nothing.
func (s *LedgerService) Commit(ctx context.Context, entry domain.Entry, next domain.Streak, expected int64) (domain.Entry, bool, error) {
	if err := entry.Validate(); err != nil {
		return domain.Entry{}, false, err
	}
	stored := entry
	duplicate := false
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		existing, found, err := s.repo.FindEntry(ctx, entry.Identity, entry.SessionID)
		if err != nil {
			return err
		}
		if found {
			stored = existing
			duplicate = true
			return nil
		}
		current, err := s.repo.GetStreak(ctx, entry.Identity)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return fmt.Errorf("%w: have %d, expected %d", apperrors.ErrVersionConflict, current.Version, expected)
		}
		stored.RecordedAt = s.clock.Now()
		if err := s.repo.InsertEntry(ctx, stored); err != nil {
			return err
		}
		next.Version = current.Version + 1
		return s.repo.PutStreak(ctx, entry.Identity, next)
	})
	if err != nil {
		s.log.Debug("commit rejected", "identity", entry.Identity, "session", entry.SessionID, "error", err)
		return domain.Entry{}, false, err
	}
	if duplicate {
		s.log.Debug("duplicate session", "identity", entry.Identity, "session", entry.SessionID)
	} else {
		s.log.Info("session committed", "identity", entry.Identity, "session", entry.SessionID, "total", stored.TotalPoints)
	}
	return stored, duplicate, nil
}

func (s *LedgerService) History(ctx context.Context, identity string, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.repo.ListEntries(ctx, identity, limit)
}

func (s *LedgerService) Goal(ctx context.Context, identity string) (domain.Goal, error) {
	return s.repo.GetGoal(ctx, identity)
}

// UpdateGoal applies one field write, last writer wins per field.
func (s *LedgerService) UpdateGoal(ctx context.Context, identity, field string, value int, source string, at time.Time) (domain.Goal, bool, error) {
	if at.IsZero() {
		at = s.clock.Now()
	}
	var goal domain.Goal
	applied := false
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetGoal(ctx, identity)
		if err != nil {
			return err
		}
		changed, err := current.Apply(field, value, source, at)
		if err != nil {
			return err
		}
		goal = current
		if !changed {
			return nil
		}
		applied = true
		return s.repo.PutGoal(ctx, identity, current)
	})
	if err != nil {
		return domain.Goal{}, false, err
	}
	return goal, applied, nil
}
