// Package reminder is the delayed sub-workflow woken by a reminder trigger.
// It records a ReminderJob, attempts delivery over the notification
// channels, and appends a RESULT audit entry. Delivery failure is recorded
// as data, never propagated: "sent" means the attempt completed.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Tarun553/study-coach/internal/store"
	"github.com/Tarun553/study-coach/pkg/notifier"
	"github.com/Tarun553/study-coach/pkg/steps"
	"github.com/Tarun553/study-coach/pkg/trigger"
)

const (
	stepLoadRun           = "load-run"
	stepLoadAccount       = "load-account"
	stepCreateReminderJob = "create-reminder-job"
	stepSendNotification  = "send-notification"
	stepMarkReminderSent  = "mark-reminder-sent"
	stepLogResult         = "log-result"
)

// Handler executes one reminder firing.
type Handler struct {
	store    *store.Store
	steps    *steps.Executor
	notifier notifier.Notifier
	logger   zerolog.Logger
}

// New creates a reminder handler.
func New(st *store.Store, exec *steps.Executor, n notifier.Notifier, logger zerolog.Logger) (*Handler, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("step executor is required")
	}
	if n == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	return &Handler{
		store:    st,
		steps:    exec,
		notifier: n,
		logger:   logger.With().Str("component", "reminder").Logger(),
	}, nil
}

// HandleTrigger processes one delivered reminder trigger.
func (h *Handler) HandleTrigger(ctx context.Context, t *store.Trigger) error {
	var payload trigger.ReminderPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return steps.Permanent(fmt.Errorf("invalid reminder trigger payload: %w", err))
	}
	if payload.RunID == "" {
		return steps.Permanent(fmt.Errorf("reminder trigger payload missing run_id"))
	}
	if payload.Minutes <= 0 {
		return steps.Permanent(fmt.Errorf("reminder trigger payload carries non-positive minutes"))
	}

	return h.fire(ctx, payload, t.ID)
}

// notifyResult is the durable record of one delivery attempt.
type notifyResult struct {
	EmailSent bool `json:"email_sent"`
}

// fire runs the reminder workflow under step memoization so a redelivered
// trigger does not create a second ReminderJob or send a second email.
func (h *Handler) fire(ctx context.Context, payload trigger.ReminderPayload, invocationID string) error {
	inv := h.steps.Invocation(payload.RunID, invocationID)
	logger := h.logger.With().Str("run_id", payload.RunID).Logger()

	run, err := h.loadRun(ctx, inv, payload.RunID)
	if err != nil {
		return err
	}

	account, err := h.loadAccount(ctx, inv, run.AccountID)
	if err != nil {
		return err
	}

	jobResult, err := inv.Do(ctx, stepCreateReminderJob, func(ctx context.Context) (any, error) {
		return h.store.CreateReminderJob(ctx, run.ID, payload.Minutes)
	})
	if err != nil {
		return err
	}
	var job store.ReminderJob
	if err := steps.Unmarshal(jobResult, &job); err != nil {
		return fmt.Errorf("failed to decode recorded reminder job: %w", err)
	}

	// Delivery is best-effort: the outcome is captured as data and the
	// workflow proceeds either way.
	sentResult, err := inv.Do(ctx, stepSendNotification, func(ctx context.Context) (any, error) {
		notifyErr := h.notifier.Notify(ctx, notifier.Notification{
			RunID:          run.ID,
			Topic:          run.Topic,
			Goal:           run.Goal,
			Minutes:        payload.Minutes,
			Email:          account.Email,
			Name:           account.Name,
			TelegramChatID: account.TelegramChatID,
		})
		if notifyErr != nil {
			if !errors.Is(notifyErr, notifier.ErrNoRecipient) {
				logger.Warn().Err(notifyErr).Msg("Reminder delivery attempt failed")
			}
			return notifyResult{EmailSent: false}, nil
		}
		return notifyResult{EmailSent: true}, nil
	})
	if err != nil {
		return err
	}
	var sent notifyResult
	if err := steps.Unmarshal(sentResult, &sent); err != nil {
		return fmt.Errorf("failed to decode recorded delivery result: %w", err)
	}

	if _, err := inv.Do(ctx, stepMarkReminderSent, func(ctx context.Context) (any, error) {
		return nil, h.store.MarkReminderSent(ctx, job.ID)
	}); err != nil {
		return err
	}

	if _, err := inv.Do(ctx, stepLogResult, func(ctx context.Context) (any, error) {
		return h.store.AppendStepLog(ctx, run.ID, store.LogKindResult, map[string]any{
			"message":       "Reminder fired",
			"minutes":       payload.Minutes,
			"topic":         run.Topic,
			"emailSent":     sent.EmailSent,
			"reminderJobId": job.ID,
		})
	}); err != nil {
		return err
	}

	logger.Info().Int("minutes", payload.Minutes).Bool("email_sent", sent.EmailSent).Msg("Reminder fired")
	return nil
}

func (h *Handler) loadRun(ctx context.Context, inv *steps.Invocation, runID string) (*store.AgentRun, error) {
	result, err := inv.Do(ctx, stepLoadRun, func(ctx context.Context) (any, error) {
		run, err := h.store.GetRun(ctx, runID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, steps.Permanent(fmt.Errorf("run %s not found", runID))
		}
		return run, err
	})
	if err != nil {
		return nil, err
	}

	var run store.AgentRun
	if err := steps.Unmarshal(result, &run); err != nil {
		return nil, fmt.Errorf("failed to decode recorded run: %w", err)
	}
	return &run, nil
}

func (h *Handler) loadAccount(ctx context.Context, inv *steps.Invocation, accountID string) (*store.Account, error) {
	result, err := inv.Do(ctx, stepLoadAccount, func(ctx context.Context) (any, error) {
		account, err := h.store.GetAccount(ctx, accountID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, steps.Permanent(fmt.Errorf("account %s not found", accountID))
		}
		return account, err
	})
	if err != nil {
		return nil, err
	}

	var account store.Account
	if err := steps.Unmarshal(result, &account); err != nil {
		return nil, fmt.Errorf("failed to decode recorded account: %w", err)
	}
	return &account, nil
}
