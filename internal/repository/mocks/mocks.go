package mocks

import (
	"context"

	"github.com/cinderlab/cinder/internal/corpus"
	"github.com/cinderlab/cinder/internal/domain/activity"
	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/stretchr/testify/mock"
)

// Indexer is a mock for project.Indexer. It also satisfies the sync index.
type Indexer struct {
	mock.Mock
}

func (m *Indexer) Create(ctx context.Context, req project.IndexRequest) (project.IndexEntry, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(project.IndexEntry), args.Error(1)
}

func (m *Indexer) Update(ctx context.Context, rowID int64, req project.IndexRequest) error {
	args := m.Called(ctx, rowID, req)
	return args.Error(0)
}

func (m *Indexer) Delete(ctx context.Context, rowID int64) error {
	args := m.Called(ctx, rowID)
	return args.Error(0)
}

func (m *Indexer) UpdateRemoteID(ctx context.Context, rowID int64, remoteID *int64) error {
	args := m.Called(ctx, rowID, remoteID)
	return args.Error(0)
}

// IndexRepository is a mock for index.Repository.
type IndexRepository struct {
	mock.Mock
}

func (m *IndexRepository) Create(ctx context.Context, entry *index.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *IndexRepository) Update(ctx context.Context, entry *index.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *IndexRepository) Delete(ctx context.Context, rowID int64) error {
	args := m.Called(ctx, rowID)
	return args.Error(0)
}

func (m *IndexRepository) Get(ctx context.Context, rowID int64) (*index.Entry, error) {
	args := m.Called(ctx, rowID)
	if entry, ok := args.Get(0).(*index.Entry); ok {
		return entry, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IndexRepository) GetByGlobalID(ctx context.Context, globalID string) (*index.Entry, error) {
	args := m.Called(ctx, globalID)
	if entry, ok := args.Get(0).(*index.Entry); ok {
		return entry, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IndexRepository) Search(ctx context.Context, opts index.SearchOptions) ([]index.Entry, int, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]index.Entry); ok {
		return list, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *IndexRepository) UpdateRemoteID(ctx context.Context, rowID int64, remoteID *int64) error {
	args := m.Called(ctx, rowID, remoteID)
	return args.Error(0)
}

// SnapshotLoader is a mock for index.SnapshotLoader.
type SnapshotLoader struct {
	mock.Mock
}

func (m *SnapshotLoader) Load(dir string) (*project.Snapshot, error) {
	args := m.Called(dir)
	if snap, ok := args.Get(0).(*project.Snapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, run *activity.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Run, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.Run); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// SessionStore is a mock for corpus.SessionStore.
type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) Get(ctx context.Context, projectGlobalID, fileKey string) (*corpus.UploadSession, error) {
	args := m.Called(ctx, projectGlobalID, fileKey)
	if sess, ok := args.Get(0).(*corpus.UploadSession); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionStore) Put(ctx context.Context, session *corpus.UploadSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *SessionStore) Delete(ctx context.Context, projectGlobalID, fileKey string) error {
	args := m.Called(ctx, projectGlobalID, fileKey)
	return args.Error(0)
}
