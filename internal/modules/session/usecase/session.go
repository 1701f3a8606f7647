package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"habitsync/internal/modules/session/domain"
	"habitsync/internal/modules/session/dto"
	sessionin "habitsync/internal/modules/session/port/in"
	sessionout "habitsync/internal/modules/session/port/out"
	"habitsync/internal/modules/session/service"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/id"
	"habitsync/internal/platform/identity"
)

type Interactor struct {
	coordinator *service.Coordinator
	store       sessionout.SessionStore
	events      sessionout.OutcomeEvents
	notes       sessionout.NoteWriter
	clock       clock.Clock
	ids         id.Generator
	identity    identity.Identity
	loc         *time.Location

	mu      sync.Mutex
	streak  domain.StreakState
	reads   uint64
	applied uint64
}

const streakRefreshTimeout = 5 * time.Second

func NewInteractor(
	coordinator *service.Coordinator,
	store sessionout.SessionStore,
	events sessionout.OutcomeEvents,
	notes sessionout.NoteWriter,
	clk clock.Clock,
	ids id.Generator,
	ident identity.Identity,
	loc *time.Location,
) *Interactor {
	if loc == nil {
		loc = time.Local
	}
	i := &Interactor{
		coordinator: coordinator,
		store:       store,
		events:      events,
		notes:       notes,
		clock:       clk,
		ids:         ids,
		identity:    ident,
		loc:         loc,
	}
	coordinator.Observe(i.observe)
	return i
}

var _ sessionin.Usecase = (*Interactor)(nil)

// Prime loads the store's streak state used for immediate estimates.
func (i *Interactor) Prime(ctx context.Context) error {
	return i.refresh(ctx)
}

// refresh replaces the estimate snapshot with the store's streak state. A
// read that finishes after a newer one has been applied is dropped.
func (i *Interactor) refresh(ctx context.Context) error {
	i.mu.Lock()
	i.reads++
	read := i.reads
	i.mu.Unlock()

	streak, err := i.store.CurrentStreak(ctx)
	if err != nil {
		return fmt.Errorf("load streak state: %w", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if read > i.applied {
		i.streak = streak
		i.applied = read
	}
	return nil
}

// TriggerSessionEnd validates the session, hands it to the coordinator and
// returns at once with an estimate. The authoritative outcome arrives on
// the outcome events.
func (i *Interactor) TriggerSessionEnd(ctx context.Context, input dto.EndInput) (dto.EndOutput, error) {
	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = i.ids.New()
	}
	session := domain.Session{
		ID:                  sessionID,
		Identity:            i.identity,
		ActualDurationSec:   input.ActualDurationSec,
		TargetDurationSec:   input.TargetDurationSec,
		AimedSessionsPerDay: input.AimedSessionsPerDay,
		OccurredAt:          i.clock.Now(),
	}
	if err := session.Validate(); err != nil {
		return dto.EndOutput{}, err
	}

	i.mu.Lock()
	estimate, _, err := domain.Calculate(session, i.streak, i.loc)
	i.mu.Unlock()
	if err != nil {
		return dto.EndOutput{}, err
	}

	state := i.coordinator.Submit(ctx, session)
	return dto.EndOutput{
		SessionID: session.ID,
		Identity:  i.identity.String(),
		State:     string(state),
		Estimate:  toOutcomeOutput(estimate),
	}, nil
}

func (i *Interactor) SubscribeOutcome(sessionID string, handler func(dto.OutcomeEvent)) func() {
	return i.events.Subscribe(sessionID, func(event domain.OutcomeEvent) {
		handler(toEventOutput(event))
	})
}

func (i *Interactor) AwaitOutcome(ctx context.Context, sessionID string) (dto.OutcomeEvent, error) {
	event, err := i.coordinator.Wait(ctx, sessionID)
	if err != nil {
		return dto.OutcomeEvent{}, err
	}
	return toEventOutput(event), nil
}

func (i *Interactor) Discard(sessionID string) bool {
	return i.coordinator.Discard(sessionID)
}

func (i *Interactor) Status(sessionID string) (string, bool) {
	state, ok := i.coordinator.Status(sessionID)
	return string(state), ok
}

func (i *Interactor) History(ctx context.Context, limit int) ([]dto.HistoryEntry, error) {
	records, err := i.store.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.HistoryEntry, 0, len(records))
	for _, record := range records {
		out = append(out, dto.HistoryEntry{
			SessionID:           record.Session.ID,
			Identity:            record.Session.Identity.String(),
			ActualDurationSec:   record.Session.ActualDurationSec,
			TargetDurationSec:   record.Session.TargetDurationSec,
			AimedSessionsPerDay: record.Session.AimedSessionsPerDay,
			OccurredAt:          record.Session.OccurredAt,
			RecordedAt:          record.RecordedAt,
			Outcome:             toOutcomeOutput(record.Outcome),
		})
	}
	return out, nil
}

func (i *Interactor) Streak(ctx context.Context) (dto.StreakOutput, error) {
	streak, err := i.store.CurrentStreak(ctx)
	if err != nil {
		return dto.StreakOutput{}, err
	}
	return dto.StreakOutput{
		TimeStreak:         streak.TimeStreak,
		DailyStreak:        streak.DailyStreak,
		LastQualifyingDate: streak.LastQualifyingDate,
	}, nil
}

// Export writes one markdown note per history entry into input.Dir.
func (i *Interactor) Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error) {
	records, err := i.store.History(ctx, input.Limit)
	if err != nil {
		return dto.ExportOutput{}, err
	}
	out := dto.ExportOutput{Written: []string{}}
	for _, record := range records {
		path, written, err := i.notes.WriteNote(ctx, input.Dir, record)
		if err != nil {
			return out, err
		}
		if !written {
			out.Skipped++
			continue
		}
		out.Written = append(out.Written, path)
	}
	return out, nil
}

func (i *Interactor) Drain(ctx context.Context) error {
	return i.coordinator.Drain(ctx)
}

// observe reloads the estimate snapshot after a committed save. A resubmitted
// session returns its stored outcome, whose streak may be older than the
// store's, so the snapshot never copies streaks from the event itself.
func (i *Interactor) observe(_ domain.Session, event domain.OutcomeEvent) {
	if !event.Committed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), streakRefreshTimeout)
	defer cancel()
	_ = i.refresh(ctx)
}

func toOutcomeOutput(outcome domain.Outcome) dto.OutcomeOutput {
	return dto.OutcomeOutput{
		SessionID:   outcome.SessionID,
		BasePoints:  outcome.BasePoints,
		BonusPoints: outcome.BonusPoints,
		TotalPoints: outcome.TotalPoints,
		TimeStreak:  outcome.TimeStreak,
		DailyStreak: outcome.DailyStreak,
	}
}

func toEventOutput(event domain.OutcomeEvent) dto.OutcomeEvent {
	out := dto.OutcomeEvent{
		SessionID:   event.SessionID,
		Committed:   event.Committed,
		Outcome:     toOutcomeOutput(event.Outcome),
		Discardable: event.Discardable,
	}
	if event.Err != nil {
		out.Reason = event.Err.Error()
	}
	return out
}
