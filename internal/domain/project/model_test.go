package project_test

import (
	"encoding/json"
	"testing"

	"github.com/cinderlab/cinder/internal/digest"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/stretchr/testify/require"
)

func TestCompositeHash_OrderIndependent(t *testing.T) {
	a := project.FileRecord{Category: "unprocessed", Path: []string{}, Filename: "a.tsv", Digest: digest.Bytes([]byte("a"))}
	b := project.FileRecord{Category: "unprocessed", Path: []string{"sub"}, Filename: "b.tsv", Digest: digest.Bytes([]byte("b"))}
	c := project.FileRecord{Category: "sample_annotation", Path: []string{}, Filename: "c.tsv", Digest: digest.Bytes([]byte("c"))}

	forward := project.CompositeHash([]project.FileRecord{a, b, c})
	backward := project.CompositeHash([]project.FileRecord{c, b, a})
	require.Equal(t, forward, backward)

	// Without sorting the fold depends on visit order.
	require.NotEqual(t,
		digest.Fold([]string{a.Digest, b.Digest, c.Digest}),
		digest.Fold([]string{c.Digest, b.Digest, a.Digest}),
	)
	require.Equal(t, digest.Fold([]string{c.Digest, a.Digest, b.Digest}), forward)
}

func TestSnapshotJSONLayout(t *testing.T) {
	snap := project.Snapshot{
		GlobalID: "g",
		Name:     "Alpha",
		Metadata: project.Metadata{
			"organism":   project.String("human"),
			"replicates": project.Number(3),
			"tags":       project.List(project.String("a"), project.Bool(true)),
			"extra":      project.Map(map[string]project.Value{"nested": {}}),
		},
		Files: map[project.Category][]project.FileRecord{
			"unprocessed": {{Filename: "a.tsv", Path: []string{"x"}, Digest: "d1", RemoteID: project.Int64(9)}},
		},
	}

	body, err := json.Marshal(snap)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	files := raw["project_files"].(map[string]any)["unprocessed"].([]any)
	first := files[0].(map[string]any)
	require.Equal(t, "a.tsv", first["filename"])
	require.Equal(t, []any{"x"}, first["path"])
	require.Equal(t, "d1", first["sha1"])
	require.EqualValues(t, 9, first["remote_id"])

	var decoded project.Snapshot
	require.NoError(t, json.Unmarshal(body, &decoded))
	organism, ok := decoded.Metadata["organism"].AsString()
	require.True(t, ok)
	require.Equal(t, "human", organism)
	n, ok := decoded.Metadata["replicates"].AsNumber()
	require.True(t, ok)
	require.Equal(t, 3.0, n)
	tags, ok := decoded.Metadata["tags"].AsList()
	require.True(t, ok)
	require.Len(t, tags, 2)
	extra, ok := decoded.Metadata["extra"].AsMap()
	require.True(t, ok)
	require.Equal(t, project.KindNull, extra["nested"].Kind())
}

func TestRecordRelPath(t *testing.T) {
	rec := project.FileRecord{Category: "unprocessed", Path: []string{"a", "b"}, Filename: "f.tsv"}
	require.Equal(t, "unprocessed/a/b/f.tsv", rec.RelPath())
	require.Equal(t, "a/b", rec.Key().Path)
	require.False(t, rec.Linked())
}

func TestValidateLocation(t *testing.T) {
	require.NoError(t, project.ValidateLocation(nil, "a.tsv"))
	require.NoError(t, project.ValidateLocation([]string{"batch1", "run.2"}, "a.tsv"))

	bad := []struct {
		segments []string
		filename string
	}{
		{nil, ""},
		{nil, "."},
		{nil, ".."},
		{nil, "sub/a.tsv"},
		{nil, `sub\a.tsv`},
		{[]string{".."}, "a.tsv"},
		{[]string{"ok", ""}, "a.tsv"},
		{[]string{"a/b"}, "a.tsv"},
	}
	for _, tc := range bad {
		err := project.ValidateLocation(tc.segments, tc.filename)
		require.ErrorIs(t, err, project.ErrInvalidInput, "%v %q", tc.segments, tc.filename)
	}
}
