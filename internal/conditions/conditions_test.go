package conditions

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelimiterFor(t *testing.T) {
	tests := []struct {
		name string
		want rune
	}{
		{"a.tsv", '\t'},
		{"a.TXT", '\t'},
		{"a.csv", ','},
	}
	for _, tt := range tests {
		got, err := DelimiterFor(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := DelimiterFor("a.xlsx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/d/a.tsv", []byte("\ufeffProtein\tctrl.1\tctrl.2\ttreat.1\nP1\t1\t2\t3\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/d/b.csv", []byte("id,\"x, y\"\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/d/empty.tsv", nil, 0o644))

	cols, err := ReadHeader(fs, "/d/a.tsv")
	require.NoError(t, err)
	require.Equal(t, []string{"Protein", "ctrl.1", "ctrl.2", "treat.1"}, cols)

	cols, err = ReadHeader(fs, "/d/b.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "x, y"}, cols)

	cols, err = ReadHeader(fs, "/d/empty.tsv")
	require.NoError(t, err)
	require.Empty(t, cols)
}

func TestSummarizeColumn(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.tsv", []byte("id\tgene\tv\n1\tA\t0\n2\tA\t1\n3\tB\n"), 0o644))

	s, err := SummarizeColumn(fs, "/a.tsv", "id")
	require.NoError(t, err)
	assert.Equal(t, ColumnSummary{Column: "id", Total: 3, Unique: true}, s)

	s, err = SummarizeColumn(fs, "/a.tsv", "gene")
	require.NoError(t, err)
	assert.False(t, s.Unique)

	_, err = SummarizeColumn(fs, "/a.tsv", "missing")
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestSelectRange(t *testing.T) {
	cols := []string{"id", "a.1", "a.2", "b.1"}

	got, err := SelectRange(cols, "1-3")
	require.NoError(t, err)
	require.Equal(t, []string{"a.1", "a.2", "b.1"}, got)

	got, err = SelectRange(cols, "0")
	require.NoError(t, err)
	require.Equal(t, []string{"id"}, got)

	for _, expr := range []string{"3-1", "4", "-1", "x"} {
		_, err := SelectRange(cols, expr)
		require.ErrorIs(t, err, ErrInvalidRange, expr)
	}
}

func TestGuess(t *testing.T) {
	a := Guess([]string{"ctrl.1", "ctrl.2", "treat.rep.1", "plain", "ctrl.1"})
	require.Equal(t, []Condition{
		{Sample: "ctrl.1", Condition: "ctrl"},
		{Sample: "ctrl.2", Condition: "ctrl"},
		{Sample: "treat.rep.1", Condition: "treat.rep"},
		{Sample: "plain", Condition: "plain"},
	}, a.Entries())
}

func TestAssignment_SetRemove(t *testing.T) {
	a := Guess([]string{"s1", "s2"})
	require.NoError(t, a.Set("s2", " treated "))
	require.ErrorIs(t, a.Set("s3", "x"), ErrUnknownSample)

	cond, ok := a.Condition("s2")
	require.True(t, ok)
	require.Equal(t, "treated", cond)

	a.Remove("s1")
	require.Equal(t, 1, a.Len())
	_, ok = a.Condition("s1")
	require.False(t, ok)
}

func TestWriteAnnotation(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := Guess([]string{"ctrl.1", "treat.1"})
	path := "/p/data/sample_annotation/annotation.tsv"

	require.NoError(t, WriteAnnotation(fs, path, a))
	body, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	require.Equal(t, "sample\tcondition\nctrl.1\tctrl\ntreat.1\ttreat\n", string(body))

	entries, err := afero.ReadDir(fs, "/p/data/sample_annotation")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	back, err := ReadAnnotation(fs, path)
	require.NoError(t, err)
	require.Equal(t, a.Entries(), back.Entries())
}

func TestColumnSettings(t *testing.T) {
	fs := afero.NewMemMapFs()

	empty, err := LoadSettings(fs, "/d/a.tsv")
	require.NoError(t, err)
	require.Empty(t, empty.IndexColumn)

	s := ColumnSettings{
		IndexColumn:     "Protein",
		SampleColumns:   []Condition{{Sample: "ctrl.1", Condition: "ctrl"}},
		MetadataColumns: []string{"Gene"},
	}
	require.NoError(t, SaveSettings(fs, "/d/a.tsv", s))
	exists, err := afero.Exists(fs, "/d/a.tsv.json")
	require.NoError(t, err)
	require.True(t, exists)

	loaded, err := LoadSettings(fs, "/d/a.tsv")
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}
