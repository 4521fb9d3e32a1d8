// Package digest computes the SHA-1 content digests that identify project
// files and the composite digest that summarises a whole project.
package digest

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is the corpus server's content id, not a security boundary.
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// ChunkSize is the read size used while hashing, bounding memory use
// regardless of file size.
const ChunkSize = 4096

// Reader hashes r in ChunkSize pieces and returns the lowercase hex digest.
func Reader(r io.Reader) (string, error) {
	h := sha1.New() //nolint:gosec
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, onlyReader{r}, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the digest of b.
func Bytes(b []byte) string {
	sum := sha1.Sum(b) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// File hashes the file at path on fs.
func File(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// Fold hashes the concatenation of the UTF-8 hex digests in the given order.
// Callers wanting an order-independent result must sort first.
func Fold(digests []string) string {
	h := sha1.New() //nolint:gosec
	for _, d := range digests {
		_, _ = io.WriteString(h, d)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// onlyReader hides WriterTo/ReaderFrom so CopyBuffer actually uses buf.
type onlyReader struct {
	io.Reader
}
