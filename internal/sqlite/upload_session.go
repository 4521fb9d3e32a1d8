package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cinderlab/cinder/internal/corpus"
	"github.com/cinderlab/cinder/internal/repository"
)

// UploadSessionRepository keeps open chunked uploads so they survive restarts
type UploadSessionRepository struct {
	db *DB
}

// NewUploadSessionRepository creates a new UploadSessionRepository
func NewUploadSessionRepository(db *DB) *UploadSessionRepository {
	return &UploadSessionRepository{db: db}
}

var _ corpus.SessionStore = (*UploadSessionRepository)(nil)

// Get retrieves the session for one file version of a project
func (r *UploadSessionRepository) Get(ctx context.Context, projectGlobalID, fileKey string) (*corpus.UploadSession, error) {
	query := `
		SELECT project_global_id, file_key, upload_id, chunk_size, next_offset, updated_at
		FROM upload_sessions
		WHERE project_global_id = ? AND file_key = ?
	`

	var sess corpus.UploadSession
	err := r.db.QueryRowContext(ctx, query, projectGlobalID, fileKey).Scan(
		&sess.ProjectGlobalID,
		&sess.FileKey,
		&sess.UploadID,
		&sess.ChunkSize,
		&sess.Offset,
		&sess.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload session: %w", err)
	}
	return &sess, nil
}

// Put inserts or replaces a session
func (r *UploadSessionRepository) Put(ctx context.Context, sess *corpus.UploadSession) error {
	updatedAt := sess.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO upload_sessions (project_global_id, file_key, upload_id, chunk_size, next_offset, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_global_id, file_key) DO UPDATE SET
			upload_id = excluded.upload_id,
			chunk_size = excluded.chunk_size,
			next_offset = excluded.next_offset,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		sess.ProjectGlobalID,
		sess.FileKey,
		sess.UploadID,
		sess.ChunkSize,
		sess.Offset,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save upload session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *UploadSessionRepository) Delete(ctx context.Context, projectGlobalID, fileKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM upload_sessions WHERE project_global_id = ? AND file_key = ?`,
		projectGlobalID, fileKey,
	)
	if err != nil {
		return fmt.Errorf("failed to delete upload session: %w", err)
	}
	return nil
}

// DeleteProject drops every session of a project
func (r *UploadSessionRepository) DeleteProject(ctx context.Context, projectGlobalID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM upload_sessions WHERE project_global_id = ?`, projectGlobalID)
	if err != nil {
		return fmt.Errorf("failed to delete upload sessions: %w", err)
	}
	return nil
}
