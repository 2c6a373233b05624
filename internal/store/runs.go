package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateRunParams holds the fields needed to create an agent run.
type CreateRunParams struct {
	AccountID          string
	Topic              string
	Goal               string
	TimeAvailable      *int
	RemindAfterMinutes int
}

// CreateRun inserts a new RUNNING run at iteration 0.
func (s *Store) CreateRun(ctx context.Context, params CreateRunParams) (*AgentRun, error) {
	if params.AccountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	if params.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if params.Goal == "" {
		return nil, fmt.Errorf("goal is required")
	}
	if params.RemindAfterMinutes <= 0 {
		return nil, fmt.Errorf("remind_after_minutes must be positive, got %d", params.RemindAfterMinutes)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	now := time.Now().UTC()
	run := &AgentRun{
		ID:                 id,
		AccountID:          params.AccountID,
		Topic:              params.Topic,
		Goal:               params.Goal,
		TimeAvailable:      params.TimeAvailable,
		Status:             RunStatusRunning,
		Iteration:          0,
		RemindAfterMinutes: params.RemindAfterMinutes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var timeVal any
	if run.TimeAvailable != nil {
		timeVal = *run.TimeAvailable
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_runs (id, account_id, topic, goal, time_available, status, iteration, remind_after_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.AccountID, run.Topic, run.Goal, timeVal, string(run.Status), run.Iteration, run.RemindAfterMinutes, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*AgentRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, topic, goal, time_available, status, iteration, remind_after_minutes, created_at, updated_at
		FROM agent_runs WHERE id = ?
	`, id)

	var run AgentRun
	var timeAvailable sql.NullInt64
	var status string

	err := row.Scan(&run.ID, &run.AccountID, &run.Topic, &run.Goal, &timeAvailable, &status, &run.Iteration, &run.RemindAfterMinutes, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = RunStatus(status)
	if timeAvailable.Valid {
		v := int(timeAvailable.Int64)
		run.TimeAvailable = &v
	}

	return &run, nil
}

// MarkRunStatus transitions a RUNNING run into a terminal state.
// Terminal states are sticky: updates against a COMPLETED or FAILED run
// are silently dropped.
func (s *Store) MarkRunStatus(ctx context.Context, id string, status RunStatus) error {
	if status != RunStatusCompleted && status != RunStatusFailed {
		return fmt.Errorf("invalid target status: %s", status)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_runs SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(status), time.Now().UTC(), id, string(RunStatusRunning))
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// IncrementIteration advances a run's iteration counter by one.
func (s *Store) IncrementIteration(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agent_runs SET iteration = iteration + 1, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to increment iteration: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
