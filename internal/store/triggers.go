package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// InsertTrigger persists a trigger for delivery at deliverAt.
func (s *Store) InsertTrigger(ctx context.Context, t *Trigger) error {
	if t.ID == "" {
		return fmt.Errorf("trigger id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("trigger name is required")
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = TriggerStatusPending
	}
	if len(t.Payload) == 0 {
		t.Payload = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO triggers (id, name, payload, deliver_at, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, string(t.Payload), t.DeliverAt, string(t.Status), t.Attempts, t.LastError, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trigger: %w", err)
	}
	return nil
}

// GetTrigger retrieves a trigger by ID, or ErrNotFound.
func (s *Store) GetTrigger(ctx context.Context, id string) (*Trigger, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, payload, deliver_at, status, attempts, last_error, created_at, updated_at
		FROM triggers WHERE id = ?
	`, id)

	t, err := scanTrigger(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// PendingTriggers returns all undelivered triggers ordered by deliver time.
// Used at startup to re-arm durable timers after a restart.
func (s *Store) PendingTriggers(ctx context.Context) ([]*Trigger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, payload, deliver_at, status, attempts, last_error, created_at, updated_at
		FROM triggers WHERE status = ? ORDER BY deliver_at
	`, string(TriggerStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*Trigger
	for rows.Next() {
		t, err := scanTrigger(rows.Scan)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// MarkTriggerDelivered marks a trigger as successfully handled.
func (s *Store) MarkTriggerDelivered(ctx context.Context, id string) error {
	return s.setTriggerStatus(ctx, id, TriggerStatusDelivered, "")
}

// MarkTriggerFailed marks a trigger as permanently failed with the final error.
func (s *Store) MarkTriggerFailed(ctx context.Context, id string, lastError string) error {
	return s.setTriggerStatus(ctx, id, TriggerStatusFailed, lastError)
}

func (s *Store) setTriggerStatus(ctx context.Context, id string, status TriggerStatus, lastError string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE triggers SET status = ?, last_error = ?, updated_at = ? WHERE id = ?
	`, string(status), lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update trigger status: %w", err)
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

// RecordTriggerAttempt bumps a trigger's attempt counter and stores the
// error that caused the retry.
func (s *Store) RecordTriggerAttempt(ctx context.Context, id string, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE triggers SET attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?
	`, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record trigger attempt: %w", err)
	}
	return nil
}

func scanTrigger(scan func(dest ...any) error) (*Trigger, error) {
	var t Trigger
	var payload, status string

	err := scan(&t.ID, &t.Name, &payload, &t.DeliverAt, &status, &t.Attempts, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan trigger: %w", err)
	}

	t.Payload = json.RawMessage(payload)
	t.Status = TriggerStatus(status)
	return &t, nil
}
