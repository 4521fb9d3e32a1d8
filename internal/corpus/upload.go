package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/cinderlab/cinder/internal/repository"
)

// maxStalls bounds consecutive chunk responses that do not advance the offset.
const maxStalls = 3

// UploadRequest names one local file version to transfer.
type UploadRequest struct {
	ProjectRemoteID int64
	ProjectGlobalID string
	DataPath        string
	Record          project.FileRecord
	// ReplaceID finalizes the upload as new content for that remote file
	// instead of creating a new one.
	ReplaceID *int64
}

// Upload transfers the file in server-sized chunks and returns its remote
// id. An interrupted upload leaves its session in the store; the next call
// for the same file version continues from the last acknowledged offset.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (int64, error) {
	rec := req.Record
	local := filepath.Join(req.DataPath, filepath.FromSlash(rec.RelPath()))
	key := SessionKey(rec)

	f, err := c.fs.Open(local)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", rec, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", rec, err)
	}
	size := info.Size()

	sess, err := c.sessions.Get(ctx, req.ProjectGlobalID, key)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		sess = nil
	case err != nil:
		return 0, fmt.Errorf("load upload session: %w", err)
	}
	resumed := sess != nil

	for {
		if sess == nil {
			sess, err = c.openSession(ctx, req.ProjectGlobalID, key, rec, size)
			if err != nil {
				return 0, err
			}
		} else {
			c.logger.Info("resuming upload", "file", rec.String(), "upload_id", sess.UploadID, "offset", sess.Offset)
		}

		err = c.sendChunks(ctx, f, size, rec, sess)
		if err == nil {
			break
		}
		if resumed && errors.Is(err, ErrNotFound) {
			// The server forgot the session; start over once.
			c.logger.Warn("upload session expired, restarting", "file", rec.String(), "upload_id", sess.UploadID)
			_ = c.sessions.Delete(ctx, req.ProjectGlobalID, key)
			sess, resumed = nil, false
			continue
		}
		return 0, err
	}

	id, err := c.finalize(ctx, req, sess)
	if err != nil {
		return 0, err
	}
	if err := c.sessions.Delete(ctx, req.ProjectGlobalID, key); err != nil {
		c.logger.Warn("failed to drop finished upload session", "file", rec.String(), "error", err)
	}
	return id, nil
}

func (c *Client) openSession(ctx context.Context, globalID, key string, rec project.FileRecord, size int64) (*UploadSession, error) {
	var resp openUploadResponse
	in := openUploadRequest{Filename: rec.Filename, Size: size, DataHash: rec.Digest, Category: string(rec.Category)}
	if err := c.doJSON(ctx, "open upload", http.MethodPost, "/api/files/chunked", in, &resp, http.StatusOK, http.StatusCreated); err != nil {
		return nil, retarget(err, rec)
	}
	if resp.UploadID == "" || resp.ChunkSize <= 0 {
		return nil, &TransportError{Op: "open upload", Target: rec.String(), Err: fmt.Errorf("%w: upload_id %q chunk_size %d", ErrUnexpectedStatus, resp.UploadID, resp.ChunkSize)}
	}

	sess := &UploadSession{
		ProjectGlobalID: globalID,
		FileKey:         key,
		UploadID:        resp.UploadID,
		ChunkSize:       resp.ChunkSize,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := c.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("save upload session: %w", err)
	}
	c.logger.Debug("upload opened", "file", rec.String(), "upload_id", sess.UploadID, "chunk_size", sess.ChunkSize)
	return sess, nil
}

// sendChunks posts the file from sess.Offset until the server reports
// completion or the file is exhausted, persisting each acknowledged offset.
func (c *Client) sendChunks(ctx context.Context, r io.ReadSeeker, size int64, rec project.FileRecord, sess *UploadSession) error {
	buf := make([]byte, sess.ChunkSize)
	stalls := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Seek(sess.Offset, io.SeekStart); err != nil {
			return fmt.Errorf("seek %s: %w", rec, err)
		}
		n, err := io.ReadFull(r, buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("read %s: %w", rec, err)
		}
		if n == 0 {
			return nil
		}

		resp, err := c.sendChunk(ctx, sess, rec.Filename, buf[:n])
		if err != nil {
			return retarget(err, rec)
		}
		if resp.Status == StatusComplete {
			sess.Offset = size
			return nil
		}
		if resp.Status != StatusInProgress || resp.Offset < 0 || resp.Offset > size {
			return &TransportError{Op: "upload chunk", Target: rec.String(), Err: fmt.Errorf("%w: status %q offset %d", ErrUnexpectedStatus, resp.Status, resp.Offset)}
		}

		if resp.Offset <= sess.Offset {
			stalls++
			if stalls >= maxStalls {
				return &TransportError{Op: "upload chunk", Target: rec.String(), Err: fmt.Errorf("%w: server stuck at offset %d", ErrUnexpectedStatus, resp.Offset)}
			}
		} else {
			stalls = 0
		}

		// The server's offset wins; it is where the next chunk must start.
		sess.Offset = resp.Offset
		sess.UpdatedAt = time.Now().UTC()
		if err := c.sessions.Put(ctx, sess); err != nil {
			return fmt.Errorf("save upload session: %w", err)
		}
	}
}

func (c *Client) sendChunk(ctx context.Context, sess *UploadSession, filename string, chunk []byte) (*chunkResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("offset", strconv.FormatInt(sess.Offset, 10)); err != nil {
		return nil, err
	}
	part, err := w.CreateFormFile("chunk", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(chunk); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	path := "/api/files/chunked/" + sess.UploadID
	resp, err := c.send(ctx, "upload chunk", http.MethodPost, path, &body, w.FormDataContentType(), http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out chunkResponse
	if err := decodeBody(resp.Body, &out); err != nil {
		return nil, &TransportError{Op: "upload chunk", Target: path, StatusCode: resp.StatusCode, Err: err}
	}
	return &out, nil
}

func (c *Client) finalize(ctx context.Context, req UploadRequest, sess *UploadSession) (int64, error) {
	rec := req.Record
	path := "/api/files/chunked/" + sess.UploadID + "/complete"
	content := c.indexesContent(rec)

	if req.ReplaceID != nil {
		var resp completeResponse
		in := replaceFileRequest{FileID: *req.ReplaceID, LoadFileContent: content}
		if err := c.doJSON(ctx, "complete upload", http.MethodPost, path, in, &resp, http.StatusOK); err != nil {
			return 0, retarget(err, rec)
		}
		if resp.ID != 0 {
			return resp.ID, nil
		}
		return *req.ReplaceID, nil
	}

	segments := rec.Path
	if segments == nil {
		segments = []string{}
	}
	var resp completeResponse
	in := createFileRequest{CreateFile: true, LoadFileContent: content, ProjectID: req.ProjectRemoteID, Path: segments}
	if err := c.doJSON(ctx, "complete upload", http.MethodPost, path, in, &resp, http.StatusOK, http.StatusCreated); err != nil {
		return 0, retarget(err, rec)
	}
	if resp.ID == 0 {
		return 0, &TransportError{Op: "complete upload", Target: rec.String(), Err: fmt.Errorf("%w: response has no id", ErrUnexpectedStatus)}
	}
	return resp.ID, nil
}

// retarget names the file instead of the request path in a transport error.
func retarget(err error, rec project.FileRecord) error {
	var terr *TransportError
	if errors.As(err, &terr) {
		copied := *terr
		copied.Target = rec.String()
		return &copied
	}
	return err
}

// memorySessions is the SessionStore used when none is configured. Sessions
// then only survive within one process.
type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]UploadSession
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]UploadSession)}
}

func (m *memorySessions) Get(_ context.Context, globalID, key string) (*UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[globalID+"\x00"+key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memorySessions) Put(_ context.Context, s *UploadSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ProjectGlobalID+"\x00"+s.FileKey] = *s
	return nil
}

func (m *memorySessions) Delete(_ context.Context, globalID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, globalID+"\x00"+key)
	return nil
}
