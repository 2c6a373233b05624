package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage is an in-memory Storage for tests.
type memStorage struct {
	mu      sync.Mutex
	results map[string]json.RawMessage
}

func newMemStorage() *memStorage {
	return &memStorage{results: make(map[string]json.RawMessage)}
}

func (m *memStorage) key(invocationID, stepName string) string {
	return invocationID + "/" + stepName
}

func (m *memStorage) GetStepResult(_ context.Context, invocationID, stepName string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[m.key(invocationID, stepName)]
	return result, ok, nil
}

func (m *memStorage) PutStepResult(_ context.Context, invocationID, stepName, _ string, result json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(invocationID, stepName)
	if _, exists := m.results[key]; !exists {
		m.results[key] = result
	}
	return nil
}

func newTestExecutor(t *testing.T, storage Storage) *Executor {
	t.Helper()
	exec, err := NewExecutor(storage, RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	return exec
}

func TestDo_RunsOnceAndRecords(t *testing.T) {
	storage := newMemStorage()
	exec := newTestExecutor(t, storage)
	inv := exec.Invocation("run-1", "inv-1")

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return map[string]int{"inserted": 3}, nil
	}

	result, err := inv.Do(context.Background(), "execute-tool", op)
	require.NoError(t, err)
	assert.JSONEq(t, `{"inserted":3}`, string(result))
	assert.Equal(t, 1, calls)

	// Resuming the same invocation returns the recorded result.
	result, err = inv.Do(context.Background(), "execute-tool", op)
	require.NoError(t, err)
	assert.JSONEq(t, `{"inserted":3}`, string(result))
	assert.Equal(t, 1, calls)
}

func TestDo_NewInvocationRunsAgain(t *testing.T) {
	storage := newMemStorage()
	exec := newTestExecutor(t, storage)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	_, err := exec.Invocation("run-1", "inv-1").Do(context.Background(), "increment-iteration", op)
	require.NoError(t, err)

	result, err := exec.Invocation("run-1", "inv-2").Do(context.Background(), "increment-iteration", op)
	require.NoError(t, err)
	assert.Equal(t, "2", string(result))
	assert.Equal(t, 2, calls)
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	storage := newMemStorage()
	exec := newTestExecutor(t, storage)
	inv := exec.Invocation("run-1", "inv-1")

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("store timeout")
		}
		return "ok", nil
	}

	result, err := inv.Do(context.Background(), "load-snapshot", op)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(result))
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustedRetriesFail(t *testing.T) {
	storage := newMemStorage()
	exec := newTestExecutor(t, storage)
	inv := exec.Invocation("run-1", "inv-1")

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return nil, fmt.Errorf("store timeout")
	}

	_, err := inv.Do(context.Background(), "load-run", op)
	require.Error(t, err)
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Equal(t, 3, calls)

	// Nothing was recorded; a retry of the invocation runs the op again.
	_, ok, getErr := storage.GetStepResult(context.Background(), "inv-1", "load-run")
	require.NoError(t, getErr)
	assert.False(t, ok)
}

func TestDo_PermanentErrorSkipsRetry(t *testing.T) {
	storage := newMemStorage()
	exec := newTestExecutor(t, storage)
	inv := exec.Invocation("run-1", "inv-1")

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return nil, Permanent(fmt.Errorf("run not found"))
	}

	_, err := inv.Do(context.Background(), "load-run", op)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancellationStopsRetry(t *testing.T) {
	storage := newMemStorage()
	exec, err := NewExecutor(storage, RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Hour,
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = exec.Invocation("run-1", "inv-1").Do(ctx, "plan-next-action", func(ctx context.Context) (any, error) {
		return nil, fmt.Errorf("planner timeout")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	err := Permanent(fmt.Errorf("bad args"))
	assert.True(t, IsPermanent(err))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsPermanent(fmt.Errorf("plain")))
}
