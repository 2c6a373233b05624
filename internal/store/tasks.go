package store

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// InsertTasks bulk-inserts study tasks with position = list index, skipping
// titles that already exist for the run. Returns the number actually inserted.
func (s *Store) InsertTasks(ctx context.Context, runID string, titles []string) (int, error) {
	if len(titles) == 0 {
		return 0, fmt.Errorf("titles are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO study_tasks (id, run_id, title, done, position, created_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for i, title := range titles {
		id, err := gonanoid.New()
		if err != nil {
			return 0, fmt.Errorf("failed to generate task id: %w", err)
		}

		res, err := stmt.ExecContext(ctx, id, runID, title, i, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert task %q: %w", title, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tasks: %w", err)
	}
	return inserted, nil
}

// CountTasks returns the number of tasks belonging to a run.
func (s *Store) CountTasks(ctx context.Context, runID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM study_tasks WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// ListTasks returns a run's tasks in display order.
func (s *Store) ListTasks(ctx context.Context, runID string) ([]*StudyTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, title, done, position, created_at
		FROM study_tasks WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*StudyTask
	for rows.Next() {
		var task StudyTask
		if err := rows.Scan(&task.ID, &task.RunID, &task.Title, &task.Done, &task.Position, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// SetTaskDone toggles a task's done flag.
func (s *Store) SetTaskDone(ctx context.Context, taskID string, done bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE study_tasks SET done = ? WHERE id = ?`, done, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
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
