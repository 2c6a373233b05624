package store

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ResourceInput is a candidate reference link.
type ResourceInput struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// InsertResources bulk-inserts resources, skipping URLs that already exist
// for the run. Returns the number actually inserted.
func (s *Store) InsertResources(ctx context.Context, runID string, resources []ResourceInput) (int, error) {
	if len(resources) == 0 {
		return 0, fmt.Errorf("resources are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO resources (id, run_id, title, url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, r := range resources {
		id, err := gonanoid.New()
		if err != nil {
			return 0, fmt.Errorf("failed to generate resource id: %w", err)
		}

		res, err := stmt.ExecContext(ctx, id, runID, r.Title, r.URL, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert resource %q: %w", r.URL, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit resources: %w", err)
	}
	return inserted, nil
}

// CountResources returns the number of resources belonging to a run.
func (s *Store) CountResources(ctx context.Context, runID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return count, nil
}

// ListResources returns a run's resources in insertion order.
func (s *Store) ListResources(ctx context.Context, runID string) ([]*Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, title, url, created_at
		FROM resources WHERE run_id = ? ORDER BY created_at, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var resources []*Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.RunID, &r.Title, &r.URL, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, &r)
	}
	return resources, rows.Err()
}
