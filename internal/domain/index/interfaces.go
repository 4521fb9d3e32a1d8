package index

import (
	"context"

	"github.com/cinderlab/cinder/internal/domain/project"
)

// Repository provides persistence for index entries.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	Update(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, rowID int64) error
	Get(ctx context.Context, rowID int64) (*Entry, error)
	GetByGlobalID(ctx context.Context, globalID string) (*Entry, error)
	Search(ctx context.Context, opts SearchOptions) ([]Entry, int, error)
	UpdateRemoteID(ctx context.Context, rowID int64, remoteID *int64) error
}

// SnapshotLoader rehydrates a project from its folder.
type SnapshotLoader interface {
	Load(dir string) (*project.Snapshot, error)
}
