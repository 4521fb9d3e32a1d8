package project

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
)

// Service coordinates a project folder with the local index.
type Service struct {
	tree   *Tree
	index  Indexer
	logger *slog.Logger
}

// NewService creates a new project service.
func NewService(tree *Tree, index Indexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{tree: tree, index: index, logger: logger}
}

// Tree returns the tree used by the service.
func (s *Service) Tree() *Tree {
	return s.tree
}

// Load opens the project folder at dir.
func (s *Service) Load(dir string) (*Snapshot, error) {
	return s.tree.Open(dir)
}

// Save refreshes the snapshot and records it in the index, creating the
// index row on first save.
func (s *Service) Save(ctx context.Context, snap *Snapshot) (*RefreshResult, error) {
	result, err := s.tree.Refresh(ctx, snap)
	if err != nil {
		return nil, err
	}

	req := IndexRequest{
		Name:        snap.Name,
		Description: snap.Description,
		Location:    snap.LocalPath,
		Hash:        snap.CompositeHash,
		GlobalID:    snap.GlobalID,
		RemoteID:    snap.RemoteID,
	}
	if snap.ProjectID == 0 {
		entry, err := s.index.Create(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("index project: %w", err)
		}
		snap.ProjectID = entry.RowID
		snap.GlobalID = entry.GlobalID
		if err := s.tree.Store().Save(snap); err != nil {
			return nil, err
		}
		s.logger.Info("project saved", "project_id", snap.ProjectID, "global_id", snap.GlobalID)
		return result, nil
	}

	if err := s.index.Update(ctx, snap.ProjectID, req); err != nil {
		return nil, fmt.Errorf("update index: %w", err)
	}
	return result, nil
}

// Remove drops the project from the index. With purge the folder is deleted
// as well.
func (s *Service) Remove(ctx context.Context, snap *Snapshot, purge bool) error {
	if snap.ProjectID != 0 {
		if err := s.index.Delete(ctx, snap.ProjectID); err != nil {
			return fmt.Errorf("remove from index: %w", err)
		}
	}
	if purge {
		if err := s.tree.FS().RemoveAll(snap.LocalPath); err != nil {
			return fmt.Errorf("delete project folder: %w", err)
		}
	}
	s.logger.Info("project removed", "project_id", snap.ProjectID, "purge", purge)
	return nil
}

// AddFile copies r into the data folder under category and path segments.
// The file is tracked once the snapshot is next refreshed.
func (s *Service) AddFile(snap *Snapshot, category Category, segments []string, filename string, r io.Reader) (string, error) {
	if !s.tree.HasCategory(category) {
		return "", fmt.Errorf("%q: %w", category, ErrUnknownCategory)
	}
	if err := ValidateLocation(segments, filename); err != nil {
		return "", err
	}

	parts := append([]string{snap.DataPath, string(category)}, segments...)
	dir := filepath.Join(parts...)
	fs := s.tree.FS()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	dst := filepath.Join(dir, filename)
	if err := afero.WriteReader(fs, dst, r); err != nil {
		return "", fmt.Errorf("copy %s: %w", filename, err)
	}
	return dst, nil
}

// RemoveFile deletes a tracked file from disk. The next refresh reports it as
// removed and the next sync deletes its remote copy.
func (s *Service) RemoveFile(snap *Snapshot, rec FileRecord) error {
	if _, ok := snap.Find(rec.Key()); !ok {
		return fmt.Errorf("%s: %w", rec, ErrFileNotTracked)
	}
	target := filepath.Join(snap.DataPath, filepath.FromSlash(rec.RelPath()))
	if err := s.tree.FS().Remove(target); err != nil {
		return fmt.Errorf("delete %s: %w", rec, err)
	}
	return nil
}

// VerifyHash reports whether the data folder still matches the recorded
// composite hash.
func (s *Service) VerifyHash(ctx context.Context, snap *Snapshot) (bool, error) {
	return s.tree.Verify(ctx, snap)
}
