package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cinderlab/cinder/internal/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Index.Path = filepath.Join(t.TempDir(), "index.db")
	return cfg
}

func TestNew_LocalWorkflowWithoutAPIKey(t *testing.T) {
	ctx := context.Background()
	a, err := New(testConfig(t), nil, Options{FS: afero.NewMemMapFs()})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	snap, err := a.Tree.Initialize(ctx, "/work/alpha", "Alpha")
	require.NoError(t, err)
	_, err = a.Projects.Save(ctx, snap)
	require.NoError(t, err)
	require.NotZero(t, snap.ProjectID)

	entry, err := a.Index.Entry(ctx, snap.ProjectID)
	require.NoError(t, err)
	require.Equal(t, snap.GlobalID, entry.GlobalID)

	loaded, err := a.Index.Get(ctx, snap.ProjectID)
	require.NoError(t, err)
	require.Equal(t, "Alpha", loaded.Name)

	_, err = a.Syncer()
	require.ErrorIs(t, err, config.ErrConfiguration)
	_, err = a.MCPServices().Syncer()
	require.ErrorIs(t, err, config.ErrConfiguration)
}

func TestSyncer_BuiltOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.APIKey = "k"
	a, err := New(cfg, nil, Options{FS: afero.NewMemMapFs()})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	first, err := a.Syncer()
	require.NoError(t, err)
	second, err := a.Syncer()
	require.NoError(t, err)
	require.Same(t, first, second)
	require.NoError(t, a.ForgetUploads(context.Background(), "gid"))
}
