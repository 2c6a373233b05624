// Package orchestrator drives the study run state machine. One invocation
// handles one wake of a run: load state, plan the next action, execute it,
// bump the iteration, and report whether the run should be woken again.
//
// The orchestrator never loops in-process. Each iteration is a separate
// trigger delivery, so a crash between iterations loses at most the step
// in flight, and a retried delivery skips steps that already committed.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tarun553/study-coach/internal/store"
	"github.com/Tarun553/study-coach/pkg/plan"
	"github.com/Tarun553/study-coach/pkg/planner"
	"github.com/Tarun553/study-coach/pkg/steps"
	"github.com/Tarun553/study-coach/pkg/trigger"
)

// Named steps of one run invocation. Resume skips the ones already recorded.
const (
	stepLoadRun           = "load-run"
	stepMarkFailedMaxIter = "mark-failed-max-iterations"
	stepScheduleReminder  = "schedule-reminder"
	stepLogReminderSched  = "log-reminder-scheduled"
	stepLoadSnapshot      = "load-snapshot"
	stepPlanNextAction    = "plan-next-action"
	stepLogPlan           = "log-plan"
	stepExecuteTool       = "execute-tool"
	stepLogSchedReminder  = "log-schedule-reminder"
	stepIncrementIter     = "increment-iteration"
	stepMarkCompleted     = "mark-completed"
)

// Outcome is the continuation decision of one invocation: either the run
// wants another wake, or it reached a terminal state.
type Outcome struct {
	Continue bool            `json:"continue"`
	RunID    string          `json:"run_id"`
	Status   store.RunStatus `json:"status,omitempty"`
}

// Config bounds the run loop.
type Config struct {
	// MaxIterations is the ceiling after which a run is forcibly failed.
	MaxIterations int
	// DefaultRemindAfterMinutes is used when a run carries no delay of its own.
	DefaultRemindAfterMinutes int
	// ContinueDelay is the pause between an invocation finishing and the
	// next wake being delivered.
	ContinueDelay time.Duration
}

// DefaultConfig returns the production loop bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations:             10,
		DefaultRemindAfterMinutes: 45,
		ContinueDelay:             2 * time.Second,
	}
}

// Orchestrator owns the run lifecycle. All state mutation of a run after
// creation goes through here.
type Orchestrator struct {
	store   *store.Store
	planner planner.Planner
	steps   *steps.Executor
	pub     trigger.Publisher
	cfg     Config
	logger  zerolog.Logger
}

// New creates an orchestrator.
func New(st *store.Store, p planner.Planner, exec *steps.Executor, pub trigger.Publisher, cfg Config, logger zerolog.Logger) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if p == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("step executor is required")
	}
	if pub == nil {
		return nil, fmt.Errorf("trigger publisher is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.DefaultRemindAfterMinutes <= 0 {
		cfg.DefaultRemindAfterMinutes = 45
	}

	return &Orchestrator{
		store:   st,
		planner: p,
		steps:   exec,
		pub:     pub,
		cfg:     cfg,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
	}, nil
}

// HandleTrigger adapts the run workflow to the trigger bus: it decodes the
// payload, runs one invocation, and emits the delayed continuation trigger
// when the run wants another wake.
func (o *Orchestrator) HandleTrigger(ctx context.Context, t *store.Trigger) error {
	var payload trigger.RunPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return steps.Permanent(fmt.Errorf("invalid run trigger payload: %w", err))
	}
	if payload.RunID == "" {
		return steps.Permanent(fmt.Errorf("run trigger payload missing run_id"))
	}

	outcome, err := o.HandleRunRequested(ctx, payload.RunID, t.ID)
	if err != nil {
		return err
	}

	if outcome.Continue {
		if _, err := o.pub.EmitAfter(ctx, trigger.RunRequested, trigger.RunPayload{RunID: payload.RunID}, o.cfg.ContinueDelay); err != nil {
			return fmt.Errorf("failed to emit continuation trigger: %w", err)
		}
	}
	return nil
}

// HandleRunRequested executes one iteration of the run identified by runID.
// invocationID scopes step memoization: redelivery of the same trigger
// resumes past committed steps, while the next iteration's trigger starts a
// fresh step scope.
func (o *Orchestrator) HandleRunRequested(ctx context.Context, runID, invocationID string) (Outcome, error) {
	inv := o.steps.Invocation(runID, invocationID)
	logger := o.logger.With().Str("run_id", runID).Logger()

	run, err := o.loadRun(ctx, inv, runID)
	if err != nil {
		return Outcome{}, err
	}
	if run.Status != store.RunStatusRunning {
		logger.Info().Str("status", string(run.Status)).Msg("Run already terminal, ignoring wake")
		return Outcome{RunID: runID, Status: run.Status}, nil
	}

	if run.Iteration >= o.cfg.MaxIterations {
		if _, err := inv.Do(ctx, stepMarkFailedMaxIter, func(ctx context.Context) (any, error) {
			return nil, o.store.MarkRunStatus(ctx, runID, store.RunStatusFailed)
		}); err != nil {
			return Outcome{}, err
		}
		logger.Warn().Int("iteration", run.Iteration).Msg("Run hit iteration ceiling, marked failed")
		return Outcome{}, steps.Permanent(fmt.Errorf("run %s reached max iterations (%d)", runID, o.cfg.MaxIterations))
	}

	if run.Iteration == 0 {
		if err := o.scheduleStartReminder(ctx, inv, run); err != nil {
			return Outcome{}, err
		}
	}

	snapshot, err := o.loadSnapshot(ctx, inv, runID)
	if err != nil {
		return Outcome{}, err
	}

	action, err := o.planNextAction(ctx, inv, run, snapshot)
	if err != nil {
		return Outcome{}, err
	}

	if _, err := inv.Do(ctx, stepLogPlan, func(ctx context.Context) (any, error) {
		return o.store.AppendStepLog(ctx, runID, store.LogKindPlan, action)
	}); err != nil {
		return Outcome{}, err
	}

	logger.Info().
		Str("tool", string(action.Tool)).
		Int("iteration", run.Iteration).
		Msg("Executing planned action")

	if err := o.executeTool(ctx, inv, run, action); err != nil {
		return Outcome{}, err
	}

	if _, err := inv.Do(ctx, stepIncrementIter, func(ctx context.Context) (any, error) {
		return nil, o.store.IncrementIteration(ctx, runID)
	}); err != nil {
		return Outcome{}, err
	}

	// A finish tool tag completes the run even when the planner left the
	// done flag unset; looping on it would burn iterations until the
	// ceiling fails a run that asked to stop.
	if action.Done || action.Tool == plan.ToolFinish {
		if _, err := inv.Do(ctx, stepMarkCompleted, func(ctx context.Context) (any, error) {
			return nil, o.store.MarkRunStatus(ctx, runID, store.RunStatusCompleted)
		}); err != nil {
			return Outcome{}, err
		}
		logger.Info().Int("iteration", run.Iteration+1).Msg("Run completed")
		return Outcome{RunID: runID, Status: store.RunStatusCompleted}, nil
	}

	return Outcome{Continue: true, RunID: runID, Status: store.RunStatusRunning}, nil
}

func (o *Orchestrator) loadRun(ctx context.Context, inv *steps.Invocation, runID string) (*store.AgentRun, error) {
	result, err := inv.Do(ctx, stepLoadRun, func(ctx context.Context) (any, error) {
		run, err := o.store.GetRun(ctx, runID)
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

// scheduleStartReminder arms the automatic reminder every run gets exactly
// once, at iteration zero, regardless of what the planner later decides.
func (o *Orchestrator) scheduleStartReminder(ctx context.Context, inv *steps.Invocation, run *store.AgentRun) error {
	minutes := run.RemindAfterMinutes
	if minutes <= 0 {
		minutes = o.cfg.DefaultRemindAfterMinutes
	}

	if _, err := inv.Do(ctx, stepScheduleReminder, func(ctx context.Context) (any, error) {
		return o.pub.EmitAt(ctx, trigger.ReminderRequested,
			trigger.ReminderPayload{RunID: run.ID, Minutes: minutes},
			time.Now().UTC().Add(time.Duration(minutes)*time.Minute))
	}); err != nil {
		return err
	}

	_, err := inv.Do(ctx, stepLogReminderSched, func(ctx context.Context) (any, error) {
		return o.store.AppendStepLog(ctx, run.ID, store.LogKindReminderScheduled, map[string]any{
			"minutes": minutes,
		})
	})
	return err
}

func (o *Orchestrator) loadSnapshot(ctx context.Context, inv *steps.Invocation, runID string) (planner.Snapshot, error) {
	result, err := inv.Do(ctx, stepLoadSnapshot, func(ctx context.Context) (any, error) {
		tasks, err := o.store.CountTasks(ctx, runID)
		if err != nil {
			return nil, err
		}
		resources, err := o.store.CountResources(ctx, runID)
		if err != nil {
			return nil, err
		}
		return planner.Snapshot{TasksCount: tasks, ResourcesCount: resources}, nil
	})
	if err != nil {
		return planner.Snapshot{}, err
	}

	var snapshot planner.Snapshot
	if err := steps.Unmarshal(result, &snapshot); err != nil {
		return planner.Snapshot{}, fmt.Errorf("failed to decode recorded snapshot: %w", err)
	}
	return snapshot, nil
}

// planNextAction asks the planner for the next tool call. A response that
// does not decode into a known action shape is fatal for the invocation;
// transient planner failures are retried by the step executor.
func (o *Orchestrator) planNextAction(ctx context.Context, inv *steps.Invocation, run *store.AgentRun, snapshot planner.Snapshot) (*plan.Action, error) {
	result, err := inv.Do(ctx, stepPlanNextAction, func(ctx context.Context) (any, error) {
		action, err := o.planner.PlanNextAction(ctx, planner.RunContext{
			Topic:         run.Topic,
			Goal:          run.Goal,
			TimeAvailable: run.TimeAvailable,
			Iteration:     run.Iteration,
			Snapshot:      snapshot,
		})
		if err != nil {
			var decodeErr *plan.DecodeError
			if errors.As(err, &decodeErr) {
				return nil, steps.Permanent(err)
			}
			return nil, err
		}
		return action, nil
	})
	if err != nil {
		return nil, err
	}

	var action plan.Action
	if err := steps.Unmarshal(result, &action); err != nil {
		return nil, fmt.Errorf("failed to decode recorded plan action: %w", err)
	}
	return &action, nil
}

// executeTool applies the planned action against the store. Argument
// violations the decode layer cannot see (no secure resource URLs) are
// planner contract violations and fatal for the invocation.
func (o *Orchestrator) executeTool(ctx context.Context, inv *steps.Invocation, run *store.AgentRun, action *plan.Action) error {
	switch action.Tool {
	case plan.ToolCreateTasks:
		if action.Args == nil || len(action.Args.Tasks) == 0 {
			return steps.Permanent(fmt.Errorf("create_tasks action carries no tasks"))
		}
		_, err := inv.Do(ctx, stepExecuteTool, func(ctx context.Context) (any, error) {
			inserted, err := o.store.InsertTasks(ctx, run.ID, action.Args.Tasks)
			if err != nil {
				return nil, err
			}
			if _, err := o.store.AppendStepLog(ctx, run.ID, store.LogKindTool, map[string]any{
				"tool":     string(action.Tool),
				"inserted": inserted,
			}); err != nil {
				return nil, err
			}
			return map[string]int{"inserted": inserted}, nil
		})
		return err

	case plan.ToolAddResources:
		valid := secureResources(action.Args)
		if len(valid) == 0 {
			return steps.Permanent(fmt.Errorf("add_resources action carries no titled https resources"))
		}
		_, err := inv.Do(ctx, stepExecuteTool, func(ctx context.Context) (any, error) {
			inserted, err := o.store.InsertResources(ctx, run.ID, valid)
			if err != nil {
				return nil, err
			}
			if _, err := o.store.AppendStepLog(ctx, run.ID, store.LogKindTool, map[string]any{
				"tool":     string(action.Tool),
				"inserted": inserted,
			}); err != nil {
				return nil, err
			}
			return map[string]int{"inserted": inserted}, nil
		})
		return err

	case plan.ToolScheduleReminder:
		if action.Args == nil || action.Args.Minutes <= 0 {
			return steps.Permanent(fmt.Errorf("schedule_reminder action carries non-positive minutes"))
		}
		minutes := action.Args.Minutes
		_, err := inv.Do(ctx, stepLogSchedReminder, func(ctx context.Context) (any, error) {
			triggerID, err := o.pub.EmitAt(ctx, trigger.ReminderRequested,
				trigger.ReminderPayload{RunID: run.ID, Minutes: minutes},
				time.Now().UTC().Add(time.Duration(minutes)*time.Minute))
			if err != nil {
				return nil, err
			}
			if _, err := o.store.AppendStepLog(ctx, run.ID, store.LogKindTool, map[string]any{
				"tool":    string(action.Tool),
				"minutes": minutes,
			}); err != nil {
				return nil, err
			}
			return map[string]string{"trigger_id": triggerID}, nil
		})
		return err

	case plan.ToolFinish:
		_, err := inv.Do(ctx, stepExecuteTool, func(ctx context.Context) (any, error) {
			log, err := o.store.AppendStepLog(ctx, run.ID, store.LogKindTool, map[string]any{
				"tool":    string(action.Tool),
				"message": action.Message,
			})
			if err != nil {
				return nil, err
			}
			return map[string]string{"log_id": log.ID}, nil
		})
		return err

	default:
		return steps.Permanent(fmt.Errorf("unknown tool %q", action.Tool))
	}
}

// secureResources keeps titled https resources only, capped at the
// protocol limit.
func secureResources(args *plan.Args) []store.ResourceInput {
	if args == nil {
		return nil
	}

	var valid []store.ResourceInput
	for _, r := range args.Resources {
		if r.Title == "" || !strings.HasPrefix(r.URL, plan.SecureScheme) {
			continue
		}
		valid = append(valid, store.ResourceInput{Title: r.Title, URL: r.URL})
		if len(valid) == plan.MaxResources {
			break
		}
	}
	return valid
}
