package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"habitsync/internal/modules/goal/domain"
	goalout "habitsync/internal/modules/goal/port/out"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/optimistic"
)

const DefaultCommitTimeout = 8 * time.Second

// SyncService keeps a shadow copy of the goal preference that reflects
// user edits immediately and is reverted when the store rejects them.
//
// Lock order is runner then shadow: optimistic applies run under the
// runner lock and take mu inside it.
type SyncService struct {
	store  goalout.GoalStore
	events goalout.GoalEvents
	clock  clock.Clock
	log    hclog.Logger
	tracer trace.Tracer
	runner *optimistic.Runner[int]

	setMu  sync.Mutex
	pubMu  sync.Mutex
	mu     sync.Mutex
	shadow domain.Preference
}

func NewSyncService(store goalout.GoalStore, events goalout.GoalEvents, clk clock.Clock, log hclog.Logger, tracer trace.Tracer, timeout time.Duration) *SyncService {
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}
	return &SyncService{
		store:  store,
		events: events,
		clock:  clk,
		log:    log.Named("goal"),
		tracer: tracer,
		runner: optimistic.NewRunner[int](timeout),
		shadow: domain.Defaults(),
	}
}

func (s *SyncService) Current() domain.Preference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadow
}

// Pending lists fields with an unsettled mutation.
func (s *SyncService) Pending() []domain.Field {
	pending := []domain.Field{}
	for _, field := range domain.Fields {
		if s.runner.Pending(string(field)) {
			pending = append(pending, field)
		}
	}
	return pending
}

// Reconcile loads the authoritative preference and adopts it for every
// field without a pending mutation.
func (s *SyncService) Reconcile(ctx context.Context) (domain.Preference, error) {
	authoritative, err := s.store.GetCurrentGoals(ctx)
	if err != nil {
		return s.Current(), fmt.Errorf("load goals: %w", err)
	}
	for _, field := range domain.Fields {
		s.runner.ApplyIfIdle(string(field), func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.shadow = s.shadow.With(field, authoritative.Value(field))
			if authoritative.UpdatedAt.After(s.shadow.UpdatedAt) {
				s.shadow.UpdatedAt = authoritative.UpdatedAt
				s.shadow.Source = authoritative.Source
			}
		})
	}
	return s.publishCurrent(), nil
}

// SetPreference applies value to the shadow copy and publishes it before
// returning, then commits in the background. The ticket settles as
// committed, failed (shadow reverted) or superseded.
func (s *SyncService) SetPreference(ctx context.Context, field domain.Field, value int, source domain.Source) (*optimistic.Ticket[int], error) {
	if err := domain.ValidateValue(field, value); err != nil {
		return nil, err
	}

	s.setMu.Lock()
	before := s.Current()
	at := s.clock.Now()
	forward := true
	ticket := s.runner.Run(ctx, optimistic.Spec[int]{
		Key:      string(field),
		Previous: before.Value(field),
		Next:     value,
		Apply: func(v int) {
			if forward {
				forward = false
				s.write(field, v, source, at)
				return
			}
			s.write(field, v, before.Source, before.UpdatedAt)
		},
		Commit: func(ctx context.Context) error {
			return s.commit(ctx, field, value, source, at)
		},
		Settled: func(m optimistic.Mutation[int]) {
			s.settled(field, m)
		},
	})
	s.setMu.Unlock()

	s.publishCurrent()
	return ticket, nil
}

// Wait blocks until every started mutation has settled.
func (s *SyncService) Wait(ctx context.Context) error {
	return s.runner.Wait(ctx)
}

// publishCurrent reads and publishes the shadow as one step so the last
// published preference is never older than the shadow.
func (s *SyncService) publishCurrent() domain.Preference {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	current := s.Current()
	s.events.PublishChanged(current)
	return current
}

func (s *SyncService) write(field domain.Field, value int, source domain.Source, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shadow = s.shadow.With(field, value)
	s.shadow.Source = source
	s.shadow.UpdatedAt = at
}

func (s *SyncService) commit(ctx context.Context, field domain.Field, value int, source domain.Source, at time.Time) error {
	ctx, span := s.tracer.Start(ctx, "goal.update", trace.WithAttributes(
		attribute.String("goal.field", string(field)),
		attribute.Int("goal.value", value),
	))
	defer span.End()
	if err := s.store.UpdateGoal(ctx, field, value, source, at); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "goal update failed")
		return err
	}
	return nil
}

func (s *SyncService) settled(field domain.Field, m optimistic.Mutation[int]) {
	switch m.Status {
	case optimistic.StatusCommitted:
		s.log.Debug("goal committed", "field", field, "value", m.Next)
		if field == domain.FieldDailyFrequency {
			s.events.PublishReminderPlan(domain.PlanReminders(m.Next))
		}
	case optimistic.StatusFailed:
		s.log.Warn("goal change rolled back", "field", field, "attempted", m.Next, "restored", m.Restored, "error", m.Err)
		s.publishCurrent()
		s.events.PublishMutationFailed(domain.MutationFailure{
			Field:     field,
			Previous:  m.Restored,
			Attempted: m.Next,
			Err:       m.Err,
		})
	case optimistic.StatusSuperseded:
		s.log.Debug("goal change superseded", "field", field, "value", m.Next, "error", m.Err)
		if m.RolledBack {
			// the newer change already failed; settle on what the store kept
			s.log.Warn("goal restored after superseded change settled", "field", field, "restored", m.Restored)
			s.publishCurrent()
		}
	}
}
