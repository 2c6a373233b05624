// Package trigger is a durable, single-process trigger bus. Triggers are
// persisted before delivery so that delayed work (reminders, run
// continuations) survives restarts: on startup the dispatcher re-arms a
// timer for every undelivered trigger, firing overdue ones immediately.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Tarun553/study-coach/internal/store"
	"github.com/Tarun553/study-coach/pkg/steps"
)

// Publisher emits durable triggers. Handlers receive a Publisher so a
// workflow can schedule its own continuation or a delayed sub-workflow.
type Publisher interface {
	// Emit persists a trigger for immediate delivery.
	Emit(ctx context.Context, name string, payload any) (string, error)
	// EmitAt persists a trigger for delivery at a wall-clock time.
	EmitAt(ctx context.Context, name string, payload any, at time.Time) (string, error)
	// EmitAfter persists a trigger for delivery after a delay.
	EmitAfter(ctx context.Context, name string, payload any, delay time.Duration) (string, error)
}

// Handler processes one delivered trigger. A returned error wrapped with
// steps.Permanent marks the trigger failed without further retries.
type Handler func(ctx context.Context, t *store.Trigger) error

// sweepInterval bounds how stale a dropped timer can get: the periodic
// sweep re-arms any due pending trigger that lost its in-memory timer.
const sweepInterval = time.Minute

// Dispatcher owns trigger persistence, timers, and delivery.
type Dispatcher struct {
	store    *store.Store
	retry    steps.RetryPolicy
	logger   zerolog.Logger
	handlers map[string]Handler

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool

	sweeper *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher backed by the given store.
func NewDispatcher(st *store.Store, retry steps.RetryPolicy, logger zerolog.Logger) (*Dispatcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:    st,
		retry:    retry,
		logger:   logger.With().Str("component", "trigger").Logger(),
		handlers: make(map[string]Handler),
		timers:   make(map[string]*time.Timer),
		sweeper:  cron.New(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Register binds a handler to a trigger name. Must be called before Start.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Start re-arms timers for all undelivered triggers and begins the
// periodic catch-up sweep.
func (d *Dispatcher) Start(ctx context.Context) error {
	pending, err := d.store.PendingTriggers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending triggers: %w", err)
	}
	for _, t := range pending {
		d.arm(t.ID, t.DeliverAt)
	}
	d.logger.Info().Int("pending", len(pending)).Msg("Trigger dispatcher started")

	if _, err := d.sweeper.AddFunc(fmt.Sprintf("@every %s", sweepInterval), d.sweep); err != nil {
		return fmt.Errorf("failed to schedule trigger sweep: %w", err)
	}
	d.sweeper.Start()
	return nil
}

// Stop cancels in-flight deliveries, stops all timers, and waits for
// running handlers to return.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	for id, timer := range d.timers {
		timer.Stop()
		delete(d.timers, id)
	}
	d.mu.Unlock()

	d.cancel()
	stopCtx := d.sweeper.Stop()
	<-stopCtx.Done()
	d.wg.Wait()
	d.logger.Info().Msg("Trigger dispatcher stopped")
}

// Emit persists a trigger for immediate delivery.
func (d *Dispatcher) Emit(ctx context.Context, name string, payload any) (string, error) {
	return d.EmitAt(ctx, name, payload, time.Now().UTC())
}

// EmitAfter persists a trigger for delivery after a delay.
func (d *Dispatcher) EmitAfter(ctx context.Context, name string, payload any, delay time.Duration) (string, error) {
	return d.EmitAt(ctx, name, payload, time.Now().UTC().Add(delay))
}

// EmitAt persists a trigger and arms a timer for its delivery time.
func (d *Dispatcher) EmitAt(ctx context.Context, name string, payload any, at time.Time) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	t := &store.Trigger{
		ID:        uuid.New().String(),
		Name:      name,
		Payload:   raw,
		DeliverAt: at.UTC(),
	}
	if err := d.store.InsertTrigger(ctx, t); err != nil {
		return "", err
	}

	d.logger.Debug().
		Str("trigger_id", t.ID).
		Str("name", name).
		Time("deliver_at", t.DeliverAt).
		Msg("Trigger persisted")

	d.arm(t.ID, t.DeliverAt)
	return t.ID, nil
}

// arm schedules delivery of the trigger at deliverAt. Overdue triggers
// fire immediately. Arming an already-armed trigger is a no-op.
func (d *Dispatcher) arm(id string, deliverAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if _, exists := d.timers[id]; exists {
		return
	}

	delay := time.Until(deliverAt)
	if delay < 0 {
		delay = 0
	}

	d.timers[id] = time.AfterFunc(delay, func() {
		// The wg slot is taken under the same lock as the stopped check
		// so Stop's Wait cannot start between the check and the Add.
		d.mu.Lock()
		delete(d.timers, id)
		if d.stopped {
			d.mu.Unlock()
			return
		}
		d.wg.Add(1)
		d.mu.Unlock()

		defer d.wg.Done()
		d.deliver(id)
	})
}

// sweep re-arms any pending trigger without an in-memory timer. This is
// the safety net for timers lost to races or long clock jumps.
func (d *Dispatcher) sweep() {
	pending, err := d.store.PendingTriggers(d.ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Trigger sweep failed")
		return
	}
	for _, t := range pending {
		d.arm(t.ID, t.DeliverAt)
	}
}

// deliver runs the registered handler for a trigger with bounded retry.
func (d *Dispatcher) deliver(id string) {
	ctx := d.ctx

	t, err := d.store.GetTrigger(ctx, id)
	if err != nil {
		d.logger.Error().Err(err).Str("trigger_id", id).Msg("Failed to load trigger for delivery")
		return
	}
	if t.Status != store.TriggerStatusPending {
		return
	}

	d.mu.Lock()
	handler, ok := d.handlers[t.Name]
	d.mu.Unlock()
	if !ok {
		d.logger.Error().Str("trigger_id", id).Str("name", t.Name).Msg("No handler registered for trigger")
		if err := d.store.MarkTriggerFailed(ctx, id, "no handler registered"); err != nil {
			d.logger.Error().Err(err).Str("trigger_id", id).Msg("Failed to mark trigger failed")
		}
		return
	}

	logger := d.logger.With().Str("trigger_id", id).Str("name", t.Name).Logger()
	backoff := d.retry.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= d.retry.MaxAttempts; attempt++ {
		err := handler(ctx, t)
		if err == nil {
			if err := d.store.MarkTriggerDelivered(ctx, id); err != nil {
				logger.Error().Err(err).Msg("Failed to mark trigger delivered")
			}
			return
		}
		lastErr = err

		if recErr := d.store.RecordTriggerAttempt(ctx, id, err.Error()); recErr != nil {
			logger.Warn().Err(recErr).Msg("Failed to record trigger attempt")
		}

		if steps.IsPermanent(err) {
			logger.Error().Err(err).Msg("Trigger handler failed permanently")
			if err := d.store.MarkTriggerFailed(ctx, id, lastErr.Error()); err != nil {
				logger.Error().Err(err).Msg("Failed to mark trigger failed")
			}
			return
		}
		if attempt == d.retry.MaxAttempts {
			break
		}

		logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("Trigger handler failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if d.retry.MaxBackoff > 0 && backoff > d.retry.MaxBackoff {
			backoff = d.retry.MaxBackoff
		}
	}

	logger.Error().Err(lastErr).Int("attempts", d.retry.MaxAttempts).Msg("Trigger handler exhausted retries")
	if err := d.store.MarkTriggerFailed(ctx, id, lastErr.Error()); err != nil {
		logger.Error().Err(err).Msg("Failed to mark trigger failed")
	}
}
