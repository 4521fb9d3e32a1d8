package digest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestReader_Deterministic(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("protein\tsample1\n"),
		bytes.Repeat([]byte("abcdefgh"), ChunkSize), // spans many chunks
	}
	for _, in := range inputs {
		a, err := Reader(bytes.NewReader(in))
		require.NoError(t, err)
		b, err := Reader(bytes.NewReader(in))
		require.NoError(t, err)
		require.Equal(t, a, b)
		require.Equal(t, Bytes(in), a)
	}
}

func TestReader_KnownValues(t *testing.T) {
	sum, err := Reader(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", sum)

	require.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", Bytes([]byte("abc")))
}

func TestFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/a.tsv", []byte("abc"), 0o644))

	sum, err := File(fs, "/data/a.tsv")
	require.NoError(t, err)
	require.Equal(t, Bytes([]byte("abc")), sum)

	_, err = File(fs, "/data/missing.tsv")
	require.Error(t, err)
}

func TestFold_OrderMatters(t *testing.T) {
	d1 := Bytes([]byte("one"))
	d2 := Bytes([]byte("two"))

	require.Equal(t, Bytes([]byte(d1+d2)), Fold([]string{d1, d2}))
	require.NotEqual(t, Fold([]string{d1, d2}), Fold([]string{d2, d1}))
	require.Equal(t, Bytes(nil), Fold(nil))
}
