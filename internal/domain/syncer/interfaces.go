package syncer

import (
	"context"

	"github.com/cinderlab/cinder/internal/corpus"
	"github.com/cinderlab/cinder/internal/domain/activity"
	"github.com/cinderlab/cinder/internal/domain/project"
)

// Remote is the corpus server surface a sync needs.
type Remote interface {
	CreateProject(ctx context.Context, snap *project.Snapshot) (int64, error)
	UpdateProject(ctx context.Context, snap *project.Snapshot) error
	GetProject(ctx context.Context, remoteID int64) (*corpus.RemoteProject, error)
	ListFiles(ctx context.Context, remoteID int64) ([]corpus.RemoteFile, error)
	DeleteFile(ctx context.Context, fileID int64) error
	Upload(ctx context.Context, req corpus.UploadRequest) (int64, error)
	Download(ctx context.Context, fileID int64, dest, wantDigest string) error
}

// Index is the part of the local index a sync keeps current.
type Index interface {
	project.Indexer
	UpdateRemoteID(ctx context.Context, rowID int64, remoteID *int64) error
}

// History records sync and pull runs.
type History interface {
	Start(kind activity.Kind, projectGlobalID string) *activity.Run
	Finish(ctx context.Context, run *activity.Run, runErr error) error
}
