package domain

import "fmt"

const (
	reminderWindowStart   = 8 * 60
	reminderWindowMinutes = 12 * 60
)

// ReminderPlan is the decision to reschedule reminders for a new daily
// frequency. Delivering the reminders belongs to the host platform.
type ReminderPlan struct {
	DailyFrequency int
	Slots          []string
}

// PlanReminders spreads frequency slots evenly over 08:00-20:00, each slot in
// the middle of its share of the window.
func PlanReminders(frequency int) ReminderPlan {
	if frequency < MinDailyFrequency {
		frequency = MinDailyFrequency
	}
	slots := make([]string, 0, frequency)
	for i := 0; i < frequency; i++ {
		minute := reminderWindowStart + (2*i+1)*reminderWindowMinutes/(2*frequency)
		slots = append(slots, fmt.Sprintf("%02d:%02d", minute/60, minute%60))
	}
	return ReminderPlan{DailyFrequency: frequency, Slots: slots}
}
