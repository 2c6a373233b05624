package store

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateReminderJob records a reminder that is about to be attempted,
// with sent = false.
func (s *Store) CreateReminderJob(ctx context.Context, runID string, minutes int) (*ReminderJob, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("minutes must be positive, got %d", minutes)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reminder job id: %w", err)
	}

	job := &ReminderJob{
		ID:        id,
		RunID:     runID,
		Minutes:   minutes,
		Sent:      false,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reminder_jobs (id, run_id, minutes, sent, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, job.ID, job.RunID, job.Minutes, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reminder job: %w", err)
	}

	return job, nil
}

// MarkReminderSent flips a reminder job's sent flag to true.
func (s *Store) MarkReminderSent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminder_jobs SET sent = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to update reminder job: %w", err)
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

// ListReminderJobs returns a run's reminder jobs in creation order.
func (s *Store) ListReminderJobs(ctx context.Context, runID string) ([]*ReminderJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, minutes, sent, created_at
		FROM reminder_jobs WHERE run_id = ? ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ReminderJob
	for rows.Next() {
		var job ReminderJob
		if err := rows.Scan(&job.ID, &job.RunID, &job.Minutes, &job.Sent, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
