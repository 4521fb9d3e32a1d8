package corpus_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cinderlab/cinder/internal/config"
	"github.com/cinderlab/cinder/internal/corpus"
	"github.com/cinderlab/cinder/internal/corpustest"
	"github.com/cinderlab/cinder/internal/digest"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/cinderlab/cinder/internal/repository"
	"github.com/cinderlab/cinder/internal/repository/mocks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "secret-key"

func newClient(t *testing.T, srv *corpustest.Server, fs afero.Fs) *corpus.Client {
	t.Helper()
	c, err := corpus.New(corpus.Options{
		BaseURL:           srv.URL(),
		APIKey:            testKey,
		Fs:                fs,
		ContentCategories: []project.Category{"unprocessed", "differential_analysis"},
		ContentExtensions: []string{".tsv", ".txt", ".csv"},
	})
	require.NoError(t, err)
	return c
}

func testSnapshot() *project.Snapshot {
	return &project.Snapshot{
		GlobalID:      "0b6f4b1e-7a51-4a3e-9f0e-2d7b1c9a0e11",
		Name:          "Alpha",
		Description:   "first",
		LocalPath:     "/alpha",
		DataPath:      "/alpha/data",
		Metadata:      project.Metadata{"organism": project.String("human")},
		Files:         map[project.Category][]project.FileRecord{},
		CompositeHash: digest.Bytes(nil),
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := corpus.New(corpus.Options{BaseURL: "http://localhost:8000"})
	require.ErrorIs(t, err, config.ErrConfiguration)
}

func TestClient_RejectedKey(t *testing.T) {
	srv := corpustest.New(t, "other-key")
	c := newClient(t, srv, afero.NewMemMapFs())

	_, err := c.CreateProject(context.Background(), testSnapshot())
	require.ErrorIs(t, err, corpus.ErrUnauthorized)
	var terr *corpus.TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, http.StatusUnauthorized, terr.StatusCode)
	require.Equal(t, "create project", terr.Op)
}

func TestClient_ProjectRoundTrip(t *testing.T) {
	for _, stringMetadata := range []bool{false, true} {
		t.Run(map[bool]string{false: "object", true: "string"}[stringMetadata], func(t *testing.T) {
			ctx := context.Background()
			srv := corpustest.New(t, testKey)
			srv.StringMetadata = stringMetadata
			c := newClient(t, srv, afero.NewMemMapFs())

			snap := testSnapshot()
			id, err := c.CreateProject(ctx, snap)
			require.NoError(t, err)
			snap.RemoteID = project.Int64(id)

			snap.Description = "updated"
			snap.CompositeHash = digest.Bytes([]byte("x"))
			require.NoError(t, c.UpdateProject(ctx, snap))

			remote, err := c.GetProject(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, remote.ID)
			assert.Equal(t, "updated", remote.Description)
			assert.Equal(t, snap.CompositeHash, remote.Hash)
			assert.Equal(t, snap.GlobalID, remote.GlobalID)
			require.NotNil(t, remote.Snapshot)
			organism, _ := remote.Snapshot.Metadata["organism"].AsString()
			assert.Equal(t, "human", organism)
		})
	}
}

func TestClient_GetProjectNotFound(t *testing.T) {
	srv := corpustest.New(t, testKey)
	c := newClient(t, srv, afero.NewMemMapFs())

	_, err := c.GetProject(context.Background(), 999)
	require.ErrorIs(t, err, corpus.ErrNotFound)
	require.ErrorIs(t, c.UpdateProject(context.Background(), testSnapshot()), corpus.ErrNotLinked)
}

func TestClient_ListAndDeleteFiles(t *testing.T) {
	ctx := context.Background()
	srv := corpustest.New(t, testKey)
	srv.LegacyFileNames = true
	c := newClient(t, srv, afero.NewMemMapFs())

	pid := srv.SeedProject(corpustest.Project{Name: "Alpha"})
	fid := srv.SeedFile(pid, "unprocessed", []string{"run1"}, "a.tsv", []byte("a"))

	files, err := c.ListFiles(ctx, pid)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.tsv", files[0].Name)
	assert.Equal(t, []string{"run1"}, files[0].Path)
	assert.Equal(t, project.Category("unprocessed"), files[0].Category)
	assert.Equal(t, digest.Bytes([]byte("a")), files[0].Hash)

	require.NoError(t, c.DeleteFile(ctx, fid))
	require.ErrorIs(t, c.DeleteFile(ctx, fid), corpus.ErrNotFound)
	require.Empty(t, srv.Files(pid))
}

func writeRecord(t *testing.T, fs afero.Fs, snap *project.Snapshot, cat project.Category, name, body string) project.FileRecord {
	t.Helper()
	rec := project.FileRecord{Category: cat, Path: []string{}, Filename: name, Digest: digest.Bytes([]byte(body))}
	require.NoError(t, afero.WriteFile(fs, snap.DataPath+"/"+rec.RelPath(), []byte(body), 0o644))
	return rec
}

func TestClient_UploadCreate(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	srv := corpustest.New(t, testKey)
	c := newClient(t, srv, fs)

	snap := testSnapshot()
	pid := srv.SeedProject(corpustest.Project{Name: snap.Name})
	table := writeRecord(t, fs, snap, "unprocessed", "a.tsv", "sample.1\tsample.2\n1\t2\n")
	notes := writeRecord(t, fs, snap, "sample_annotation", "notes.bin", "opaque")

	tableID, err := c.Upload(ctx, corpus.UploadRequest{ProjectRemoteID: pid, ProjectGlobalID: snap.GlobalID, DataPath: snap.DataPath, Record: table})
	require.NoError(t, err)
	notesID, err := c.Upload(ctx, corpus.UploadRequest{ProjectRemoteID: pid, ProjectGlobalID: snap.GlobalID, DataPath: snap.DataPath, Record: notes})
	require.NoError(t, err)
	require.NotEqual(t, tableID, notesID)

	files := srv.Files(pid)
	require.Len(t, files, 2)
	assert.Equal(t, "sample.1\tsample.2\n1\t2\n", string(files[0].Content))
	assert.True(t, files[0].ContentLoaded)
	assert.False(t, files[1].ContentLoaded)
	// 22 bytes take three 8-byte chunks, 6 bytes take one.
	assert.Equal(t, 4, srv.Calls(corpustest.RouteChunk))
}

func TestClient_UploadResumesAfterFailure(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	srv := corpustest.New(t, testKey)
	c := newClient(t, srv, fs)

	snap := testSnapshot()
	pid := srv.SeedProject(corpustest.Project{Name: snap.Name})
	body := "0123456789abcdefghij"
	rec := writeRecord(t, fs, snap, "unprocessed", "big.tsv", body)
	req := corpus.UploadRequest{ProjectRemoteID: pid, ProjectGlobalID: snap.GlobalID, DataPath: snap.DataPath, Record: rec}

	srv.Fail(corpustest.RouteChunk, 2, http.StatusBadGateway)
	_, err := c.Upload(ctx, req)
	var terr *corpus.TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, http.StatusBadGateway, terr.StatusCode)
	require.Equal(t, "unprocessed/big.tsv", terr.Target)
	require.Empty(t, srv.Files(pid))

	id, err := c.Upload(ctx, req)
	require.NoError(t, err)
	require.NotZero(t, id)

	// One session, and no byte sent twice.
	require.Equal(t, 1, srv.Calls(corpustest.RouteOpenUpload))
	require.Equal(t, int64(len(body)), srv.BytesReceived())
	require.Equal(t, body, string(srv.Files(pid)[0].Content))
}

func TestClient_UploadStopsWhenSessionCannotBeSaved(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	srv := corpustest.New(t, testKey)

	sessions := new(mocks.SessionStore)
	sessions.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound)
	sessions.On("Put", mock.Anything, mock.AnythingOfType("*corpus.UploadSession")).Return(errors.New("disk full"))

	c, err := corpus.New(corpus.Options{BaseURL: srv.URL(), APIKey: testKey, Fs: fs, Sessions: sessions})
	require.NoError(t, err)

	snap := testSnapshot()
	pid := srv.SeedProject(corpustest.Project{Name: snap.Name})
	rec := writeRecord(t, fs, snap, "unprocessed", "a.tsv", "x\ty\n")

	_, err = c.Upload(ctx, corpus.UploadRequest{ProjectRemoteID: pid, ProjectGlobalID: snap.GlobalID, DataPath: snap.DataPath, Record: rec})
	require.ErrorContains(t, err, "save upload session")
	require.Zero(t, srv.Calls(corpustest.RouteChunk))
	sessions.AssertExpectations(t)
}

func TestClient_UploadReplace(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	srv := corpustest.New(t, testKey)
	c := newClient(t, srv, fs)

	snap := testSnapshot()
	pid := srv.SeedProject(corpustest.Project{Name: snap.Name})
	fid := srv.SeedFile(pid, "unprocessed", nil, "a.tsv", []byte("old"))
	rec := writeRecord(t, fs, snap, "unprocessed", "a.tsv", "new content")

	id, err := c.Upload(ctx, corpus.UploadRequest{ProjectRemoteID: pid, ProjectGlobalID: snap.GlobalID, DataPath: snap.DataPath, Record: rec, ReplaceID: project.Int64(fid)})
	require.NoError(t, err)
	require.Equal(t, fid, id)
	require.Equal(t, "new content", string(srv.Files(pid)[0].Content))
	require.Equal(t, rec.Digest, srv.Files(pid)[0].Hash)
}

func TestClient_UploadEmptyFile(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	srv := corpustest.New(t, testKey)
	c := newClient(t, srv, fs)

	snap := testSnapshot()
	pid := srv.SeedProject(corpustest.Project{Name: snap.Name})
	rec := writeRecord(t, fs, snap, "other_files", "empty.txt", "")

	id, err := c.Upload(ctx, corpus.UploadRequest{ProjectRemoteID: pid, ProjectGlobalID: snap.GlobalID, DataPath: snap.DataPath, Record: rec})
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Zero(t, srv.Calls(corpustest.RouteChunk))
}

func TestClient_Download(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	srv := corpustest.New(t, testKey)
	c := newClient(t, srv, fs)

	pid := srv.SeedProject(corpustest.Project{Name: "Alpha"})
	content := []byte("a\tb\n1\t2\n")
	fid := srv.SeedFile(pid, "unprocessed", nil, "a.tsv", content)

	dest := "/pulled/data/unprocessed/nested/a.tsv"
	srv.CorruptDownloads(1)
	require.NoError(t, c.Download(ctx, fid, dest, digest.Bytes(content)))
	got, err := afero.ReadFile(fs, dest)
	require.NoError(t, err)
	require.Equal(t, content, got)
	require.Equal(t, 2, srv.Calls(corpustest.RouteDownload))
}

func TestClient_DownloadGivesUp(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	srv := corpustest.New(t, testKey)
	c := newClient(t, srv, fs)

	pid := srv.SeedProject(corpustest.Project{Name: "Alpha"})
	content := []byte("payload")
	fid := srv.SeedFile(pid, "unprocessed", nil, "a.tsv", content)

	dest := "/pulled/a.tsv"
	srv.CorruptDownloads(10)
	err := c.Download(ctx, fid, dest, digest.Bytes(content))
	require.ErrorIs(t, err, corpus.ErrDigestMismatch)
	require.Equal(t, 3, srv.Calls(corpustest.RouteDownload))

	exists, err := afero.Exists(fs, dest)
	require.NoError(t, err)
	require.False(t, exists)

	// A missing file is not retried.
	require.ErrorIs(t, c.Download(ctx, 12345, dest, ""), corpus.ErrNotFound)
	require.Equal(t, 4, srv.Calls(corpustest.RouteDownload))
}
