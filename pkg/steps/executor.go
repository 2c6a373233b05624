// Package steps provides durable, independently retried named steps.
//
// Invariants:
//   - A step's side effects are committed at most once per (invocation, name)
//     pair in normal operation.
//   - On crash-and-resume, a step whose result was durably recorded returns
//     its prior result instead of re-executing.
//   - Transient failures inside a step are retried with backoff up to a
//     bounded attempt count; permanent failures propagate immediately.
package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Storage is the durable record of completed steps.
type Storage interface {
	GetStepResult(ctx context.Context, invocationID, stepName string) (json.RawMessage, bool, error)
	PutStepResult(ctx context.Context, invocationID, stepName, runID string, result json.RawMessage) error
}

// RetryPolicy bounds retries of transient step failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the orchestrator defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Executor runs named units of work with durable memoization.
type Executor struct {
	storage Storage
	retry   RetryPolicy
	logger  zerolog.Logger
}

// NewExecutor creates a step executor.
func NewExecutor(storage Storage, retry RetryPolicy, logger zerolog.Logger) (*Executor, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}

	return &Executor{
		storage: storage,
		retry:   retry,
		logger:  logger.With().Str("component", "steps").Logger(),
	}, nil
}

// Invocation scopes step execution to one wake cycle of a run. Retrying the
// same invocation skips steps that already committed; a new invocation
// starts with a clean slate.
type Invocation struct {
	exec         *Executor
	runID        string
	invocationID string
}

// Invocation returns a step scope for one wake cycle of a run.
func (e *Executor) Invocation(runID, invocationID string) *Invocation {
	return &Invocation{
		exec:         e,
		runID:        runID,
		invocationID: invocationID,
	}
}

// Do runs the named operation at most effectively once within the
// invocation and returns its JSON-encoded result. A previously recorded
// result is returned without re-executing the operation.
func (inv *Invocation) Do(ctx context.Context, stepName string, op func(ctx context.Context) (any, error)) (json.RawMessage, error) {
	recorded, ok, err := inv.exec.storage.GetStepResult(ctx, inv.invocationID, stepName)
	if err != nil {
		return nil, fmt.Errorf("step %q: failed to read prior result: %w", stepName, err)
	}
	if ok {
		inv.exec.logger.Debug().
			Str("run_id", inv.runID).
			Str("step", stepName).
			Msg("Step already recorded, returning prior result")
		return recorded, nil
	}

	value, err := inv.run(ctx, stepName, op)
	if err != nil {
		return nil, err
	}

	result, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("step %q: failed to marshal result: %w", stepName, err)
	}

	if err := inv.exec.storage.PutStepResult(ctx, inv.invocationID, stepName, inv.runID, result); err != nil {
		return nil, fmt.Errorf("step %q: failed to record result: %w", stepName, err)
	}

	return result, nil
}

// run executes op with bounded retry on transient failures.
func (inv *Invocation) run(ctx context.Context, stepName string, op func(ctx context.Context) (any, error)) (any, error) {
	retry := inv.exec.retry
	backoff := retry.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if IsPermanent(err) {
			return nil, fmt.Errorf("step %q: %w", stepName, err)
		}
		if attempt == retry.MaxAttempts {
			break
		}

		inv.exec.logger.Warn().
			Err(err).
			Str("run_id", inv.runID).
			Str("step", stepName).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Step failed, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("step %q: %w", stepName, ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
			backoff = retry.MaxBackoff
		}
	}

	return nil, fmt.Errorf("step %q failed after %d attempts: %w", stepName, retry.MaxAttempts, lastErr)
}

// Unmarshal decodes a step result into out.
func Unmarshal(result json.RawMessage, out any) error {
	return json.Unmarshal(result, out)
}
