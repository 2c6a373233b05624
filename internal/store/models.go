package store

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of an agent run.
// RUNNING transitions to COMPLETED or FAILED; terminal states are sticky.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// LogKind tags an audit log entry. The set is closed; dashboards match on it.
type LogKind string

const (
	LogKindPlan              LogKind = "PLAN"
	LogKindTool              LogKind = "TOOL"
	LogKindReminderScheduled LogKind = "REMINDER_SCHEDULED"
	LogKindResult            LogKind = "RESULT"
)

// Account owns agent runs and carries the contact addresses reminders go to.
type Account struct {
	ID             string    `json:"id"`
	Email          string    `json:"email,omitempty"`
	Name           string    `json:"name"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AgentRun is one end-to-end study coaching session.
type AgentRun struct {
	ID                 string    `json:"id"`
	AccountID          string    `json:"account_id"`
	Topic              string    `json:"topic"`
	Goal               string    `json:"goal"`
	TimeAvailable      *int      `json:"time_available,omitempty"` // minutes
	Status             RunStatus `json:"status"`
	Iteration          int       `json:"iteration"`
	RemindAfterMinutes int       `json:"remind_after_minutes"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// StudyTask is an actionable item produced by the create_tasks tool.
type StudyTask struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Resource is a reference link produced by the add_resources tool.
type Resource struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// StepLog is an append-only audit entry. Ordering by CreatedAt is the
// canonical audit trail for a run.
type StepLog struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	Kind      LogKind         `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// ReminderJob records a fired reminder. Sent means "attempt completed",
// independent of delivery outcome.
type ReminderJob struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Minutes   int       `json:"minutes"`
	Sent      bool      `json:"sent"`
	CreatedAt time.Time `json:"created_at"`
}

// TriggerStatus is the delivery state of a persisted trigger.
type TriggerStatus string

const (
	TriggerStatusPending   TriggerStatus = "pending"
	TriggerStatusDelivered TriggerStatus = "delivered"
	TriggerStatusFailed    TriggerStatus = "failed"
)

// Trigger is a durable asynchronous message that wakes a workflow,
// immediately or at a future wall-clock time.
type Trigger struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	DeliverAt time.Time       `json:"deliver_at"`
	Status    TriggerStatus   `json:"status"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
