package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cinderlab/cinder/internal/domain/activity"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

var _ activity.Repository = (*ActivityRepository)(nil)

// Log inserts a finished run
func (r *ActivityRepository) Log(ctx context.Context, run *activity.Run) error {
	finishedAt := run.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = finishedAt
	}

	query := `
		INSERT INTO sync_activity (
			project_global_id, kind, status, uploaded, deleted, adopted,
			downloaded, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ProjectGlobalID,
		run.Kind,
		run.Status,
		run.Uploaded,
		run.Deleted,
		run.Adopted,
		run.Downloaded,
		run.Error,
		startedAt,
		finishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		run.ID = id
	}
	run.StartedAt = startedAt
	run.FinishedAt = finishedAt

	return nil
}

// List returns runs matching the given filters, newest first
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Run, error) {
	query := `
		SELECT
			id, project_global_id, kind, status, uploaded, deleted, adopted,
			downloaded, error, started_at, finished_at
		FROM sync_activity
	`

	args := []interface{}{}
	conditions := []string{}

	if opts.ProjectGlobalID != "" {
		conditions = append(conditions, "project_global_id = ?")
		args = append(args, opts.ProjectGlobalID)
	}
	if opts.Kind != nil {
		conditions = append(conditions, "kind = ?")
		args = append(args, *opts.Kind)
	}

	if len(conditions) > 0 {
		query += " WHERE " + joinConditions(conditions)
	}

	query += " ORDER BY started_at DESC, id DESC"

	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	runs := []activity.Run{}
	for rows.Next() {
		var run activity.Run
		if err := rows.Scan(
			&run.ID,
			&run.ProjectGlobalID,
			&run.Kind,
			&run.Status,
			&run.Uploaded,
			&run.Deleted,
			&run.Adopted,
			&run.Downloaded,
			&run.Error,
			&run.StartedAt,
			&run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return runs, nil
}
