package index_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/cinderlab/cinder/internal/repository"
	"github.com/cinderlab/cinder/internal/repository/mocks"
	"github.com/cinderlab/cinder/internal/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIndexService_CreateMintsGlobalID(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.IndexRepository{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 2, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600)))
	svc := index.NewService(repo, &mocks.SnapshotLoader{}, clock, nil)

	repo.On("Create", ctx, mock.MatchedBy(func(e *index.Entry) bool {
		return e.GlobalID != "" && e.CreatedAt.Location() == time.UTC
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*index.Entry).RowID = 1
	}).Return(nil).Once()

	entry, err := svc.Create(ctx, project.IndexRequest{Name: "Alpha", Location: "/alpha"})
	require.NoError(t, err)
	require.Equal(t, int64(1), entry.RowID)
	require.Len(t, entry.GlobalID, 36)
	repo.AssertExpectations(t)
}

func TestIndexService_CreateKeepsGivenGlobalID(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.IndexRepository{}
	svc := index.NewService(repo, &mocks.SnapshotLoader{}, clockwork.NewFakeClock(), nil)

	repo.On("Create", ctx, mock.MatchedBy(func(e *index.Entry) bool {
		return e.GlobalID == "pulled-gid" && e.RemoteID != nil && *e.RemoteID == 7
	})).Return(nil).Once()

	entry, err := svc.Create(ctx, project.IndexRequest{Name: "Alpha", Location: "/alpha", GlobalID: "pulled-gid", RemoteID: project.Int64(7)})
	require.NoError(t, err)
	require.Equal(t, "pulled-gid", entry.GlobalID)
}

func TestIndexService_CreateValidates(t *testing.T) {
	svc := index.NewService(&mocks.IndexRepository{}, &mocks.SnapshotLoader{}, nil, nil)

	_, err := svc.Create(context.Background(), project.IndexRequest{Name: " ", Location: "/alpha"})
	require.ErrorIs(t, err, index.ErrInvalidInput)
	_, err = svc.Create(context.Background(), project.IndexRequest{Name: "Alpha"})
	require.ErrorIs(t, err, index.ErrInvalidInput)
}

func TestIndexService_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.IndexRepository{}
	svc := index.NewService(repo, &mocks.SnapshotLoader{}, nil, nil)

	repo.On("Get", ctx, int64(42)).Return(nil, repository.ErrNotFound)
	repo.On("Delete", ctx, int64(42)).Return(repository.ErrNotFound)

	_, err := svc.Get(ctx, 42)
	require.ErrorIs(t, err, index.ErrProjectNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 42), index.ErrProjectNotFound)
	require.ErrorIs(t, svc.Update(ctx, 42, project.IndexRequest{Name: "x"}), index.ErrProjectNotFound)
}

func TestIndexService_UpdateKeepsRemoteID(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.IndexRepository{}
	svc := index.NewService(repo, &mocks.SnapshotLoader{}, nil, nil)

	repo.On("Get", ctx, int64(3)).Return(&index.Entry{RowID: 3, GlobalID: "g", RemoteID: project.Int64(11)}, nil)
	repo.On("Update", ctx, mock.MatchedBy(func(e *index.Entry) bool {
		return e.GlobalID == "g" && e.Hash == "h2" && e.RemoteID != nil && *e.RemoteID == 11
	})).Return(nil).Once()

	require.NoError(t, svc.Update(ctx, 3, project.IndexRequest{Name: "Alpha", Location: "/alpha", Hash: "h2", GlobalID: "other"}))
	repo.AssertExpectations(t)
}

func TestIndexService_SearchToleratesMissingFolder(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.IndexRepository{}
	loader := &mocks.SnapshotLoader{}
	svc := index.NewService(repo, loader, nil, nil)

	opts := index.SearchOptions{Term: "al", Limit: index.DefaultLimit}
	repo.On("Search", ctx, opts).Return([]index.Entry{
		{RowID: 1, Location: "/alpha"},
		{RowID: 2, Location: "/gone"},
	}, 2, nil)
	loader.On("Load", "/alpha").Return(&project.Snapshot{Name: "Alpha"}, nil)
	loader.On("Load", "/gone").Return(nil, os.ErrNotExist)

	result, err := svc.Search(ctx, index.SearchOptions{Term: "al"})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.NotNil(t, result.Items[0].Snapshot)
	assert.Equal(t, int64(1), result.Items[0].Snapshot.ProjectID)
	assert.Nil(t, result.Items[1].Snapshot)
	assert.Equal(t, 1, result.Pages())

	_, err = svc.Search(ctx, index.SearchOptions{Offset: -1})
	require.ErrorIs(t, err, index.ErrInvalidInput)
}

type nopLoader struct{}

func (nopLoader) Load(dir string) (*project.Snapshot, error) {
	return nil, errors.New("not loaded")
}

func TestIndexService_PagesCoverEveryMatchOnce(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc := index.NewService(sqlite.NewProjectRepository(db), nopLoader{}, nil, nil)

	for i := range 23 {
		name := fmt.Sprintf("proteome %02d", i)
		if i%4 == 0 {
			name = fmt.Sprintf("other %02d", i)
		}
		_, err := svc.Create(ctx, project.IndexRequest{Name: name, Location: fmt.Sprintf("/p/%d", i)})
		require.NoError(t, err)
	}

	const limit = 5
	first, err := svc.Search(ctx, index.SearchOptions{Term: "PROTEOME", Limit: limit})
	require.NoError(t, err)
	require.Equal(t, 17, first.Total)
	require.Equal(t, 4, first.Pages())

	seen := map[int64]bool{}
	var order []int64
	for page := range first.Pages() {
		result, err := svc.Search(ctx, index.SearchOptions{Term: "proteome", Offset: page * limit, Limit: limit})
		require.NoError(t, err)
		require.Equal(t, first.Total, result.Total)
		for _, item := range result.Items {
			require.False(t, seen[item.Entry.RowID], "row %d returned twice", item.Entry.RowID)
			seen[item.Entry.RowID] = true
			order = append(order, item.Entry.RowID)
		}
	}
	require.Len(t, seen, 17)
	require.IsIncreasing(t, order)
}
