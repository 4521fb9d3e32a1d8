package project_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/cinderlab/cinder/internal/repository/mocks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestService_SaveCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	fs, tree := newTree(t)
	indexer := &mocks.Indexer{}
	svc := project.NewService(tree, indexer, nil)

	snap, err := tree.Initialize(ctx, "/p", "Alpha")
	require.NoError(t, err)
	gid := snap.GlobalID

	indexer.On("Create", ctx, mock.MatchedBy(func(req project.IndexRequest) bool {
		return req.Name == "Alpha" && req.Location == "/p" && req.GlobalID == gid
	})).Return(project.IndexEntry{RowID: 5, GlobalID: gid}, nil).Once()

	_, err = svc.Save(ctx, snap)
	require.NoError(t, err)
	require.Equal(t, int64(5), snap.ProjectID)

	reloaded, err := svc.Load("/p")
	require.NoError(t, err)
	require.Equal(t, int64(5), reloaded.ProjectID)
	require.Equal(t, gid, reloaded.GlobalID)

	writeFile(t, fs, "/p/data/unprocessed/a.tsv", "a")
	indexer.On("Update", ctx, int64(5), mock.MatchedBy(func(req project.IndexRequest) bool {
		return req.Hash != "" && req.GlobalID == gid
	})).Return(nil).Once()

	_, err = svc.Save(ctx, reloaded)
	require.NoError(t, err)
	indexer.AssertExpectations(t)
}

func TestService_RemovePurge(t *testing.T) {
	ctx := context.Background()
	fs, tree := newTree(t)
	indexer := &mocks.Indexer{}
	svc := project.NewService(tree, indexer, nil)

	snap, err := tree.Initialize(ctx, "/p", "Alpha")
	require.NoError(t, err)
	snap.ProjectID = 3

	indexer.On("Delete", ctx, int64(3)).Return(nil).Once()
	require.NoError(t, svc.Remove(ctx, snap, true))

	exists, err := afero.DirExists(fs, "/p")
	require.NoError(t, err)
	require.False(t, exists)
	indexer.AssertExpectations(t)
}

func TestService_AddAndRemoveFile(t *testing.T) {
	ctx := context.Background()
	_, tree := newTree(t)
	svc := project.NewService(tree, &mocks.Indexer{}, nil)

	snap, err := tree.Initialize(ctx, "/p", "Alpha")
	require.NoError(t, err)

	_, err = svc.AddFile(snap, "unprocessed", []string{"run1"}, "a.tsv", bytes.NewBufferString("a\tb\n"))
	require.NoError(t, err)
	_, err = svc.AddFile(snap, "nope", nil, "a.tsv", bytes.NewBufferString(""))
	require.ErrorIs(t, err, project.ErrUnknownCategory)
	_, err = svc.AddFile(snap, "unprocessed", []string{".."}, "a.tsv", bytes.NewBufferString(""))
	require.ErrorIs(t, err, project.ErrInvalidInput)

	_, err = tree.Refresh(ctx, snap)
	require.NoError(t, err)
	rec := snap.AllFiles()[0]
	require.Equal(t, []string{"run1"}, rec.Path)

	require.NoError(t, svc.RemoveFile(snap, rec))
	require.ErrorIs(t, svc.RemoveFile(snap, project.FileRecord{Category: "unprocessed", Filename: "ghost.tsv"}), project.ErrFileNotTracked)

	result, err := tree.Refresh(ctx, snap)
	require.NoError(t, err)
	require.Len(t, result.Removed, 1)
}
