package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tarun553/study-coach/internal/store"
	"github.com/Tarun553/study-coach/pkg/notifier"
	"github.com/Tarun553/study-coach/pkg/steps"
	"github.com/Tarun553/study-coach/pkg/trigger"
)

type fakeNotifier struct {
	err   error
	calls int
	last  notifier.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n notifier.Notification) error {
	f.calls++
	f.last = n
	return f.err
}

type fixture struct {
	store    *store.Store
	notifier *fakeNotifier
	handler  *Handler
	run      *store.AgentRun
}

func newFixture(t *testing.T, email string, chatID int64) *fixture {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	exec, err := steps.NewExecutor(st, steps.RetryPolicy{MaxAttempts: 1}, zerolog.Nop())
	require.NoError(t, err)

	n := &fakeNotifier{}
	h, err := New(st, exec, n, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	account, err := st.CreateAccount(ctx, email, "Learner", chatID)
	require.NoError(t, err)
	run, err := st.CreateRun(ctx, store.CreateRunParams{
		AccountID:          account.ID,
		Topic:              "Go concurrency",
		Goal:               "Understand channels",
		RemindAfterMinutes: 45,
	})
	require.NoError(t, err)

	return &fixture{store: st, notifier: n, handler: h, run: run}
}

func reminderTrigger(t *testing.T, runID string, minutes int) *store.Trigger {
	t.Helper()
	raw, err := json.Marshal(trigger.ReminderPayload{RunID: runID, Minutes: minutes})
	require.NoError(t, err)
	return &store.Trigger{ID: "t-reminder", Name: trigger.ReminderRequested, Payload: raw}
}

func resultLog(t *testing.T, st *store.Store, runID string) map[string]any {
	t.Helper()
	logs, err := st.ListStepLogs(context.Background(), runID)
	require.NoError(t, err)
	for _, l := range logs {
		if l.Kind == store.LogKindResult {
			var payload map[string]any
			require.NoError(t, json.Unmarshal(l.Payload, &payload))
			return payload
		}
	}
	t.Fatal("no RESULT log found")
	return nil
}

func TestFire_CreatesJobAndNotifies(t *testing.T) {
	f := newFixture(t, "learner@example.com", 0)
	ctx := context.Background()

	require.NoError(t, f.handler.HandleTrigger(ctx, reminderTrigger(t, f.run.ID, 45)))
	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, "learner@example.com", f.notifier.last.Email)
	assert.Equal(t, 45, f.notifier.last.Minutes)

	jobs, err := f.store.ListReminderJobs(ctx, f.run.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Sent)
	assert.Equal(t, 45, jobs[0].Minutes)

	payload := resultLog(t, f.store, f.run.ID)
	assert.Equal(t, "Reminder fired", payload["message"])
	assert.Equal(t, float64(45), payload["minutes"])
	assert.Equal(t, "Go concurrency", payload["topic"])
	assert.Equal(t, true, payload["emailSent"])
	assert.Equal(t, jobs[0].ID, payload["reminderJobId"])
}

func TestFire_NoAddressStillMarksSent(t *testing.T) {
	f := newFixture(t, "", 0)
	ctx := context.Background()

	require.NoError(t, f.handler.HandleTrigger(ctx, reminderTrigger(t, f.run.ID, 30)))

	jobs, err := f.store.ListReminderJobs(ctx, f.run.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Sent)

	payload := resultLog(t, f.store, f.run.ID)
	assert.Equal(t, false, payload["emailSent"])
}

func TestFire_DeliveryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, "learner@example.com", 0)
	f.notifier.err = fmt.Errorf("smtp down")
	ctx := context.Background()

	require.NoError(t, f.handler.HandleTrigger(ctx, reminderTrigger(t, f.run.ID, 45)))

	jobs, err := f.store.ListReminderJobs(ctx, f.run.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Sent)
	assert.Equal(t, false, resultLog(t, f.store, f.run.ID)["emailSent"])
}

func TestFire_RedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t, "learner@example.com", 0)
	ctx := context.Background()

	tr := reminderTrigger(t, f.run.ID, 45)
	require.NoError(t, f.handler.HandleTrigger(ctx, tr))
	require.NoError(t, f.handler.HandleTrigger(ctx, tr))

	jobs, err := f.store.ListReminderJobs(ctx, f.run.ID)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, 1, f.notifier.calls)
}

func TestHandleTrigger_PayloadValidation(t *testing.T) {
	f := newFixture(t, "learner@example.com", 0)
	ctx := context.Background()

	err := f.handler.HandleTrigger(ctx, &store.Trigger{ID: "t-1", Payload: []byte(`{"minutes":45}`)})
	require.Error(t, err)
	assert.True(t, steps.IsPermanent(err))

	err = f.handler.HandleTrigger(ctx, &store.Trigger{ID: "t-2", Payload: []byte(fmt.Sprintf(`{"run_id":%q,"minutes":0}`, f.run.ID))})
	require.Error(t, err)
	assert.True(t, steps.IsPermanent(err))
}

func TestHandleTrigger_MissingRunIsPermanent(t *testing.T) {
	f := newFixture(t, "learner@example.com", 0)

	err := f.handler.HandleTrigger(context.Background(), reminderTrigger(t, "no-such-run", 45))
	require.Error(t, err)
	assert.True(t, steps.IsPermanent(err))
}
