package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"habitsync/internal/modules/session/domain"
	sessionout "habitsync/internal/modules/session/port/out"
	apperrors "habitsync/internal/platform/errors"
)

const (
	DefaultCommitTimeout = 15 * time.Second
	DefaultTrackedSaves  = 1024
)

type save struct {
	state       domain.State
	outcome     domain.Outcome
	err         error
	discardable bool
	done        chan struct{}
}

// Coordinator runs session saves in the background, detached from the
// caller's lifetime. Concurrent submissions of one session share a single
// store call, and a committed session is never sent to the store again.
type Coordinator struct {
	store   sessionout.SessionStore
	events  sessionout.OutcomeEvents
	log     hclog.Logger
	tracer  trace.Tracer
	timeout time.Duration

	group    singleflight.Group
	mu       sync.Mutex
	saves    *lru.Cache[string, *save]
	observer func(domain.Session, domain.OutcomeEvent)
	wg       sync.WaitGroup
}

func NewCoordinator(store sessionout.SessionStore, events sessionout.OutcomeEvents, log hclog.Logger, tracer trace.Tracer, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}
	saves, err := lru.New[string, *save](DefaultTrackedSaves)
	if err != nil {
		panic(err)
	}
	return &Coordinator{
		store:   store,
		events:  events,
		log:     log.Named("session"),
		tracer:  tracer,
		timeout: timeout,
		saves:   saves,
	}
}

// Observe registers fn to run after every settled save, before waiters are
// released.
func (c *Coordinator) Observe(fn func(domain.Session, domain.OutcomeEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// Submit starts saving session unless it is already committed or in flight,
// and returns the save's state. It never blocks on the store.
//
// The flight is joined or started under mu, and settle forgets a flight
// under mu before marking it terminal, so a resubmit after a failure always
// starts a fresh store call instead of joining the one that just failed.
func (c *Coordinator) Submit(ctx context.Context, session domain.Session) domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.saves.Get(session.ID)
	if ok && current.state == domain.StateCommitted {
		return domain.StateCommitted
	}
	state := domain.StateStarted
	switch {
	case !ok:
		c.saves.Add(session.ID, &save{state: domain.StateStarted, done: make(chan struct{})})
	case current.state == domain.StateFailed:
		c.saves.Add(session.ID, &save{state: domain.StateStarted, done: make(chan struct{})})
		c.events.ClearFailure(session.ID)
	default:
		state = current.state
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(session.ID, func() (any, error) {
		return c.commit(detached, session)
	})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-ch
	}()
	return state
}

func (c *Coordinator) commit(ctx context.Context, session domain.Session) (domain.Outcome, error) {
	c.mu.Lock()
	current, ok := c.saves.Get(session.ID)
	if ok && current.state == domain.StateCommitted {
		c.mu.Unlock()
		return current.outcome, nil
	}
	if !ok || current.state.Terminal() {
		current = &save{done: make(chan struct{})}
		c.saves.Add(session.ID, current)
	}
	current.state = domain.StateComputing
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "session.commit", trace.WithAttributes(
		attribute.String("session.id", session.ID),
		attribute.String("session.identity", session.Identity.String()),
	))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	outcome, err := c.store.RecordSession(ctx, session)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", apperrors.ErrCommitTimeout, err)
		}
		err = fmt.Errorf("%w: %w", apperrors.ErrCommitFailed, err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "commit failed")
		c.log.Warn("session save failed", "session", session.ID, "error", err)
	} else {
		c.log.Debug("session saved", "session", session.ID, "total", outcome.TotalPoints)
	}
	c.settle(session, current, outcome, err)
	return outcome, err
}

func (c *Coordinator) settle(session domain.Session, current *save, outcome domain.Outcome, err error) {
	c.mu.Lock()
	c.group.Forget(session.ID)
	current.outcome = outcome
	current.err = err
	current.state = domain.StateCommitted
	if err != nil {
		current.state = domain.StateFailed
	}
	discardable := current.discardable
	observer := c.observer
	c.mu.Unlock()

	event := domain.OutcomeEvent{SessionID: session.ID, Committed: err == nil, Outcome: outcome, Err: err, Discardable: discardable}
	if err != nil {
		c.events.PublishFailed(session.ID, err, discardable)
	} else {
		c.events.PublishCommitted(session.ID, outcome, discardable)
	}
	if observer != nil {
		observer(session, event)
	}
	close(current.done)
}

// Discard marks an unfinished save so its result is reported as
// discardable. Saves already settled are left alone.
func (c *Coordinator) Discard(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.saves.Get(sessionID)
	if !ok || current.state.Terminal() {
		return false
	}
	current.discardable = true
	return true
}

func (c *Coordinator) Status(sessionID string) (domain.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.saves.Peek(sessionID)
	if !ok {
		return "", false
	}
	return current.state, true
}

// Wait blocks until the tracked save for sessionID settles.
func (c *Coordinator) Wait(ctx context.Context, sessionID string) (domain.OutcomeEvent, error) {
	c.mu.Lock()
	current, ok := c.saves.Peek(sessionID)
	c.mu.Unlock()
	if !ok {
		return domain.OutcomeEvent{}, fmt.Errorf("%w: no save tracked for session %s", apperrors.ErrNotFound, sessionID)
	}
	select {
	case <-current.done:
	case <-ctx.Done():
		return domain.OutcomeEvent{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.OutcomeEvent{
		SessionID:   sessionID,
		Committed:   current.err == nil,
		Outcome:     current.outcome,
		Err:         current.err,
		Discardable: current.discardable,
	}, nil
}

// Drain waits for every save started so far.
func (c *Coordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
