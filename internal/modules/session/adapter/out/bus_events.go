package out

import (
	"habitsync/internal/modules/session/domain"
	sessionout "habitsync/internal/modules/session/port/out"
	"habitsync/internal/platform/eventbus"
)

var (
	OutcomeCommittedTopic = eventbus.NewTopic[domain.OutcomeEvent]("outcome-committed")
	OutcomeFailedTopic    = eventbus.NewTopic[domain.OutcomeEvent]("outcome-commit-failed")
)

type BusOutcomeEvents struct {
	bus *eventbus.Bus
}

func NewBusOutcomeEvents(bus *eventbus.Bus) sessionout.OutcomeEvents {
	return &BusOutcomeEvents{bus: bus}
}

// PublishCommitted drops any earlier failure for the session so a late
// subscriber only ever sees the final result.
func (e *BusOutcomeEvents) PublishCommitted(sessionID string, outcome domain.Outcome, discardable bool) {
	eventbus.Forget(e.bus, OutcomeFailedTopic, sessionID)
	eventbus.Publish(e.bus, OutcomeCommittedTopic, sessionID, domain.OutcomeEvent{
		SessionID:   sessionID,
		Committed:   true,
		Outcome:     outcome,
		Discardable: discardable,
	})
}

func (e *BusOutcomeEvents) PublishFailed(sessionID string, err error, discardable bool) {
	eventbus.Publish(e.bus, OutcomeFailedTopic, sessionID, domain.OutcomeEvent{
		SessionID:   sessionID,
		Err:         err,
		Discardable: discardable,
	})
}

func (e *BusOutcomeEvents) ClearFailure(sessionID string) {
	eventbus.Forget(e.bus, OutcomeFailedTopic, sessionID)
}

func (e *BusOutcomeEvents) Subscribe(sessionID string, handler func(domain.OutcomeEvent)) func() {
	stopFailed := eventbus.Subscribe(e.bus, OutcomeFailedTopic, sessionID, handler)
	stopCommitted := eventbus.Subscribe(e.bus, OutcomeCommittedTopic, sessionID, handler)
	return func() {
		stopCommitted()
		stopFailed()
	}
}
