package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/cinderlab/cinder/internal/repository"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultLimit is the page size used when a search does not give one.
const DefaultLimit = 20

// Service handles the local project index.
type Service struct {
	repo   Repository
	loader SnapshotLoader
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewService creates a new index service.
func NewService(repo Repository, loader SnapshotLoader, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, loader: loader, clock: clock, logger: logger}
}

// Create inserts a cache row. A fresh global id is minted unless the request
// already carries one, as it does for initialized and pulled projects.
func (s *Service) Create(ctx context.Context, req project.IndexRequest) (project.IndexEntry, error) {
	if strings.TrimSpace(req.Name) == "" {
		return project.IndexEntry{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.Location == "" {
		return project.IndexEntry{}, fmt.Errorf("%w: location is required", ErrInvalidInput)
	}

	entry := &Entry{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		GlobalID:    req.GlobalID,
		CreatedAt:   s.clock.Now().UTC(),
		Hash:        req.Hash,
		RemoteID:    req.RemoteID,
	}
	if entry.GlobalID == "" {
		entry.GlobalID = uuid.NewString()
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return project.IndexEntry{}, fmt.Errorf("creating index entry: %w", err)
	}
	s.logger.Debug("index entry created", "row_id", entry.RowID, "global_id", entry.GlobalID)
	return project.IndexEntry{RowID: entry.RowID, GlobalID: entry.GlobalID}, nil
}

// Update overwrites the mutable fields of a row. The global id never changes.
func (s *Service) Update(ctx context.Context, rowID int64, req project.IndexRequest) error {
	entry, err := s.Entry(ctx, rowID)
	if err != nil {
		return err
	}
	entry.Name = req.Name
	entry.Description = req.Description
	entry.Location = req.Location
	entry.Hash = req.Hash
	if req.RemoteID != nil {
		entry.RemoteID = req.RemoteID
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return mapNotFound(err)
	}
	return nil
}

// Delete removes a row.
func (s *Service) Delete(ctx context.Context, rowID int64) error {
	return mapNotFound(s.repo.Delete(ctx, rowID))
}

// Entry returns the cached row.
func (s *Service) Entry(ctx context.Context, rowID int64) (*Entry, error) {
	entry, err := s.repo.Get(ctx, rowID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return entry, nil
}

// EntryByGlobalID returns the row carrying globalID.
func (s *Service) EntryByGlobalID(ctx context.Context, globalID string) (*Entry, error) {
	entry, err := s.repo.GetByGlobalID(ctx, globalID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return entry, nil
}

// Get loads the project referenced by the row from its folder. The row only
// locates the project; file state always comes from the snapshot on disk.
func (s *Service) Get(ctx context.Context, rowID int64) (*project.Snapshot, error) {
	entry, err := s.Entry(ctx, rowID)
	if err != nil {
		return nil, err
	}
	snap, err := s.loader.Load(entry.Location)
	if err != nil {
		return nil, fmt.Errorf("loading project %d: %w", rowID, err)
	}
	snap.ProjectID = entry.RowID
	return snap, nil
}

// Search returns a page of rows whose name or description contains the term,
// ignoring case. Rows are ordered by insertion.
func (s *Service) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	if opts.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", ErrInvalidInput)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	entries, total, err := s.repo.Search(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	result := &SearchResult{Total: total, Offset: opts.Offset, Limit: opts.Limit, Items: make([]Item, 0, len(entries))}
	for _, entry := range entries {
		item := Item{Entry: entry}
		snap, err := s.loader.Load(entry.Location)
		if err != nil {
			s.logger.Warn("indexed project folder unavailable", "row_id", entry.RowID, "location", entry.Location, "error", err)
		} else {
			snap.ProjectID = entry.RowID
			item.Snapshot = snap
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// UpdateRemoteID records the remote id assigned to the project.
func (s *Service) UpdateRemoteID(ctx context.Context, rowID int64, remoteID *int64) error {
	return mapNotFound(s.repo.UpdateRemoteID(ctx, rowID, remoteID))
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrProjectNotFound, err)
	}
	return err
}
