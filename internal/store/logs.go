package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendStepLog writes an append-only audit entry. The payload is stored
// as JSON; it is display-only data, not a stable contract.
func (s *Store) AppendStepLog(ctx context.Context, runID string, kind LogKind, payload any) (*StepLog, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log payload: %w", err)
	}

	entry := &StepLog{
		ID:        uuid.New().String(),
		RunID:     runID,
		Kind:      kind,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_step_logs (id, run_id, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.RunID, string(entry.Kind), string(entry.Payload), entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert step log: %w", err)
	}

	return entry, nil
}

// ListStepLogs returns a run's audit trail in creation order.
func (s *Store) ListStepLogs(ctx context.Context, runID string) ([]*StepLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, kind, payload, created_at
		FROM agent_step_logs WHERE run_id = ? ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step logs: %w", err)
	}
	defer rows.Close()

	var logs []*StepLog
	for rows.Next() {
		var entry StepLog
		var kind, payload string
		if err := rows.Scan(&entry.ID, &entry.RunID, &kind, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step log: %w", err)
		}
		entry.Kind = LogKind(kind)
		entry.Payload = json.RawMessage(payload)
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
