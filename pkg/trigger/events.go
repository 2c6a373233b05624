package trigger

// Trigger names understood by the dispatcher. Each wake of a workflow is
// one delivery of one of these.
const (
	RunRequested      = "agent.run.requested"
	ReminderRequested = "agent.reminder.requested"
)

// RunPayload wakes the study run workflow for one iteration.
type RunPayload struct {
	RunID string `json:"run_id"`
}

// ReminderPayload fires the delayed reminder workflow for a run.
type ReminderPayload struct {
	RunID   string `json:"run_id"`
	Minutes int    `json:"minutes"`
}
