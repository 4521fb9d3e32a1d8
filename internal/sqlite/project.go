package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/repository"
)

// ProjectRepository stores index entries in the projects table
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

var _ index.Repository = (*ProjectRepository)(nil)

const projectColumns = `id, name, description, location, global_id, created_at, sha1_hash, remote_id`

// Create inserts an entry and sets its RowID
func (r *ProjectRepository) Create(ctx context.Context, entry *index.Entry) error {
	query := `
		INSERT INTO projects (name, description, location, global_id, created_at, sha1_hash, remote_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.Name,
		entry.Description,
		entry.Location,
		entry.GlobalID,
		entry.CreatedAt,
		entry.Hash,
		nullInt64(entry.RemoteID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("global id %s: %w", entry.GlobalID, repository.ErrConflict)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get project id: %w", err)
	}
	entry.RowID = id
	return nil
}

// Update overwrites the mutable fields of an entry
func (r *ProjectRepository) Update(ctx context.Context, entry *index.Entry) error {
	query := `
		UPDATE projects
		SET name = ?, description = ?, location = ?, sha1_hash = ?, remote_id = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.Name,
		entry.Description,
		entry.Location,
		entry.Hash,
		nullInt64(entry.RemoteID),
		entry.RowID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireAffected(result)
}

// Delete removes an entry
func (r *ProjectRepository) Delete(ctx context.Context, rowID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, rowID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireAffected(result)
}

// Get retrieves an entry by row id
func (r *ProjectRepository) Get(ctx context.Context, rowID int64) (*index.Entry, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return scanEntry(r.db.QueryRowContext(ctx, query, rowID))
}

// GetByGlobalID retrieves an entry by global id
func (r *ProjectRepository) GetByGlobalID(ctx context.Context, globalID string) (*index.Entry, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE global_id = ?`
	return scanEntry(r.db.QueryRowContext(ctx, query, globalID))
}

// Search returns one page of entries whose name or description contains the
// term, ignoring Unicode case, ordered by insertion, along with the total
// count.
func (r *ProjectRepository) Search(ctx context.Context, opts index.SearchOptions) ([]index.Entry, int, error) {
	where := ""
	args := []interface{}{}
	if term := strings.TrimSpace(opts.Term); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		where = ` WHERE ` + foldFunc + `(name) LIKE ? ESCAPE '\' OR ` + foldFunc + `(description) LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + where + ` ORDER BY id LIMIT ? OFFSET ?`
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search projects: %w", err)
	}
	defer rows.Close()

	entries := []index.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating project rows: %w", err)
	}

	return entries, total, nil
}

// UpdateRemoteID sets the remote id of an entry
func (r *ProjectRepository) UpdateRemoteID(ctx context.Context, rowID int64, remoteID *int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE projects SET remote_id = ? WHERE id = ?`, nullInt64(remoteID), rowID)
	if err != nil {
		return fmt.Errorf("failed to update remote id: %w", err)
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*index.Entry, error) {
	var entry index.Entry
	var remoteID sql.NullInt64
	err := row.Scan(
		&entry.RowID,
		&entry.Name,
		&entry.Description,
		&entry.Location,
		&entry.GlobalID,
		&entry.CreatedAt,
		&entry.Hash,
		&remoteID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	if remoteID.Valid {
		id := remoteID.Int64
		entry.RemoteID = &id
	}
	return &entry, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
