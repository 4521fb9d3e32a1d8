package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/cinderlab/cinder/internal/digest"
)

// Download streams a remote file to dest, creating parent folders. A failed
// write deletes the partial file and restarts from the beginning, up to the
// configured number of attempts. When wantDigest is set the written bytes
// must hash to it.
func (c *Client) Download(ctx context.Context, fileID int64, dest, wantDigest string) error {
	if err := c.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create folder for %s: %w", dest, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.downloadAttempts; attempt++ {
		retry, err := c.downloadOnce(ctx, fileID, dest, wantDigest)
		if err == nil {
			return nil
		}
		_ = c.fs.Remove(dest)
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		c.logger.Warn("download failed, restarting", "file_id", fileID, "dest", dest, "attempt", attempt, "error", err)
	}
	return lastErr
}

// downloadOnce reports whether a failure is worth restarting for. Rejected
// requests are not; broken streams and bad writes are.
func (c *Client) downloadOnce(ctx context.Context, fileID int64, dest, wantDigest string) (bool, error) {
	path := filePath(fileID) + "/download"
	resp, err := c.send(ctx, "download file", http.MethodGet, path, nil, "", http.StatusOK)
	if err != nil {
		var terr *TransportError
		retry := errors.As(err, &terr) && terr.StatusCode == 0
		return retry, err
	}
	defer resp.Body.Close()

	out, err := c.fs.Create(dest)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", dest, err)
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return true, &TransportError{Op: "download file", Target: dest, Err: copyErr}
	}
	if closeErr != nil {
		return true, fmt.Errorf("close %s: %w", dest, closeErr)
	}

	if wantDigest != "" {
		got, err := digest.File(c.fs, dest)
		if err != nil {
			return true, err
		}
		if got != wantDigest {
			return true, &TransportError{Op: "download file", Target: dest, Err: fmt.Errorf("%w: got %s want %s", ErrDigestMismatch, got, wantDigest)}
		}
	}
	return false, nil
}

func decodeBody(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
