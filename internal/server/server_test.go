package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tarun553/study-coach/internal/store"
	"github.com/Tarun553/study-coach/pkg/trigger"
)

type recordingPublisher struct {
	mu        sync.Mutex
	emissions []string
	payloads  []any
}

func (p *recordingPublisher) Emit(ctx context.Context, name string, payload any) (string, error) {
	return p.EmitAt(ctx, name, payload, time.Now())
}

func (p *recordingPublisher) EmitAfter(ctx context.Context, name string, payload any, delay time.Duration) (string, error) {
	return p.EmitAt(ctx, name, payload, time.Now().Add(delay))
}

func (p *recordingPublisher) EmitAt(_ context.Context, name string, payload any, _ time.Time) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emissions = append(p.emissions, name)
	p.payloads = append(p.payloads, payload)
	return uuid.New().String(), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, *recordingPublisher) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	pub := &recordingPublisher{}
	srv, err := New("127.0.0.1", 0, st, pub, 45, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, st, pub
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateSession(t *testing.T) {
	ts, st, pub := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]any{
		"email": "learner@example.com",
		"name":  "Learner",
		"topic": "Go concurrency",
		"goal":  "Understand channels",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.RunID)
	assert.Equal(t, "RUNNING", body.Status)

	run, err := st.GetRun(context.Background(), body.RunID)
	require.NoError(t, err)
	assert.Equal(t, "Go concurrency", run.Topic)
	assert.Equal(t, 45, run.RemindAfterMinutes)

	require.Len(t, pub.emissions, 1)
	assert.Equal(t, trigger.RunRequested, pub.emissions[0])
	assert.Equal(t, body.RunID, pub.payloads[0].(trigger.RunPayload).RunID)
}

func TestCreateSession_ReusesAccountByEmail(t *testing.T) {
	ts, st, _ := newTestServer(t)

	first := postJSON(t, ts.URL+"/api/sessions", map[string]any{
		"email": "learner@example.com", "name": "Learner",
		"topic": "Go concurrency", "goal": "Understand channels",
	})
	second := postJSON(t, ts.URL+"/api/sessions", map[string]any{
		"email": "learner@example.com", "name": "Learner",
		"topic": "Go generics", "goal": "Understand constraints",
	})

	var a, b createSessionResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&a))
	require.NoError(t, json.NewDecoder(second.Body).Decode(&b))
	assert.Equal(t, a.AccountID, b.AccountID)
	assert.NotEqual(t, a.RunID, b.RunID)

	account, err := st.GetAccount(context.Background(), a.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "learner@example.com", account.Email)
}

func TestCreateSession_RequiresTopicAndGoal(t *testing.T) {
	ts, _, pub := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]any{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, pub.emissions)
}

func TestStartRun(t *testing.T) {
	ts, st, pub := newTestServer(t)
	ctx := context.Background()

	account, err := st.CreateAccount(ctx, "learner@example.com", "Learner", 0)
	require.NoError(t, err)
	run, err := st.CreateRun(ctx, store.CreateRunParams{
		AccountID: account.ID, Topic: "Go", Goal: "Learn", RemindAfterMinutes: 45,
	})
	require.NoError(t, err)

	resp := postJSON(t, fmt.Sprintf("%s/api/runs/%s/start", ts.URL, run.ID), map[string]any{})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, pub.emissions, 1)
	assert.Equal(t, trigger.RunRequested, pub.emissions[0])
}

func TestStartRun_TerminalRunConflicts(t *testing.T) {
	ts, st, pub := newTestServer(t)
	ctx := context.Background()

	account, err := st.CreateAccount(ctx, "learner@example.com", "Learner", 0)
	require.NoError(t, err)
	run, err := st.CreateRun(ctx, store.CreateRunParams{
		AccountID: account.ID, Topic: "Go", Goal: "Learn", RemindAfterMinutes: 45,
	})
	require.NoError(t, err)
	require.NoError(t, st.MarkRunStatus(ctx, run.ID, store.RunStatusCompleted))

	resp := postJSON(t, fmt.Sprintf("%s/api/runs/%s/start", ts.URL, run.ID), map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Empty(t, pub.emissions)
}

func TestStartRun_NotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/runs/no-such-run/start", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestToggleTask(t *testing.T) {
	ts, st, _ := newTestServer(t)
	ctx := context.Background()

	account, err := st.CreateAccount(ctx, "learner@example.com", "Learner", 0)
	require.NoError(t, err)
	run, err := st.CreateRun(ctx, store.CreateRunParams{
		AccountID: account.ID, Topic: "Go", Goal: "Learn", RemindAfterMinutes: 45,
	})
	require.NoError(t, err)
	_, err = st.InsertTasks(ctx, run.ID, []string{"Read channel docs"})
	require.NoError(t, err)
	tasks, err := st.ListTasks(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	resp := postJSON(t, fmt.Sprintf("%s/api/tasks/%s/toggle", ts.URL, tasks[0].ID), map[string]any{"done": true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	tasks, err = st.ListTasks(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, tasks[0].Done)
}

func TestToggleTask_NotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/tasks/no-such-task/toggle", map[string]any{"done": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
