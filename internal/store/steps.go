package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GetStepResult returns the durably recorded result of a step within an
// invocation, or (nil, false) when the step has not completed yet.
func (s *Store) GetStepResult(ctx context.Context, invocationID, stepName string) (json.RawMessage, bool, error) {
	var result string
	err := s.db.QueryRowContext(ctx, `
		SELECT result FROM step_results WHERE invocation_id = ? AND step_name = ?
	`, invocationID, stepName).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query step result: %w", err)
	}
	return json.RawMessage(result), true, nil
}

// PutStepResult durably records a step's result. The first write wins;
// a concurrent duplicate is ignored so a resumed invocation cannot
// overwrite what an earlier attempt committed.
func (s *Store) PutStepResult(ctx context.Context, invocationID, stepName, runID string, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO step_results (invocation_id, step_name, run_id, result, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, invocationID, stepName, runID, string(result), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert step result: %w", err)
	}
	return nil
}
