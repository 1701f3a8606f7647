package out

import (
	"habitsync/internal/modules/goal/domain"
	goalout "habitsync/internal/modules/goal/port/out"
	"habitsync/internal/platform/eventbus"
)

const currentKey = "current"

var (
	GoalChangedTopic        = eventbus.NewTopic[domain.Preference]("goal-changed")
	GoalMutationFailedTopic = eventbus.NewTopic[domain.MutationFailure]("goal-mutation-failed")
	ReminderRescheduleTopic = eventbus.NewTopic[domain.ReminderPlan]("reminder-reschedule")
)

type BusGoalEvents struct {
	bus *eventbus.Bus
}

func NewBusGoalEvents(bus *eventbus.Bus) goalout.GoalEvents {
	return &BusGoalEvents{bus: bus}
}

func (e *BusGoalEvents) PublishChanged(pref domain.Preference) {
	eventbus.Publish(e.bus, GoalChangedTopic, currentKey, pref)
}

func (e *BusGoalEvents) PublishMutationFailed(failure domain.MutationFailure) {
	eventbus.Publish(e.bus, GoalMutationFailedTopic, string(failure.Field), failure)
}

func (e *BusGoalEvents) PublishReminderPlan(plan domain.ReminderPlan) {
	eventbus.Publish(e.bus, ReminderRescheduleTopic, currentKey, plan)
}

func (e *BusGoalEvents) SubscribeChanged(handler func(domain.Preference)) func() {
	return eventbus.Subscribe(e.bus, GoalChangedTopic, currentKey, handler)
}

func (e *BusGoalEvents) SubscribeFailures(field domain.Field, handler func(domain.MutationFailure)) func() {
	return eventbus.Subscribe(e.bus, GoalMutationFailedTopic, string(field), handler)
}

func (e *BusGoalEvents) SubscribeReminders(handler func(domain.ReminderPlan)) func() {
	return eventbus.Subscribe(e.bus, ReminderRescheduleTopic, currentKey, handler)
}
