package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cinderlab/cinder/internal/domain/project"
)

// RemoteProject is the server's view of a project. Snapshot is decoded from
// the metadata blob and is nil when the server holds none.
type RemoteProject struct {
	ID          int64
	Name        string
	Description string
	Hash        string
	GlobalID    string
	Snapshot    *project.Snapshot
}

// RemoteFile is one entry of a remote project's file list.
type RemoteFile struct {
	ID       int64
	Name     string
	Path     []string
	Hash     string
	Category project.Category
}

// Key returns the identity a local record would need to match this file.
func (f RemoteFile) Key() project.FileKey {
	return f.record().Key()
}

func (f RemoteFile) record() project.FileRecord {
	return project.FileRecord{Category: f.Category, Path: f.Path, Filename: f.Name, Digest: f.Hash}
}

// UploadSession is the resumable state of one chunked upload.
type UploadSession struct {
	ProjectGlobalID string
	FileKey         string
	UploadID        string
	ChunkSize       int64
	Offset          int64
	UpdatedAt       time.Time
}

// SessionKey identifies the upload of one exact file version.
func SessionKey(rec project.FileRecord) string {
	return rec.RelPath() + "@" + rec.Digest
}

type projectPayload struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Hash        string            `json:"hash"`
	Metadata    *project.Snapshot `json:"metadata"`
	GlobalID    string            `json:"global_id"`
}

type projectResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Hash        string          `json:"hash"`
	GlobalID    string          `json:"global_id"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (r projectResponse) remote() (*RemoteProject, error) {
	rp := &RemoteProject{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Hash:        r.Hash,
		GlobalID:    r.GlobalID,
	}
	snap, err := decodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	rp.Snapshot = snap
	return rp, nil
}

// decodeMetadata accepts the snapshot either as an object or as a JSON
// string holding one; servers have stored both.
func decodeMetadata(raw json.RawMessage) (*project.Snapshot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode metadata string: %w", err)
		}
		if strings.TrimSpace(inner) == "" {
			return nil, nil
		}
		raw = json.RawMessage(inner)
	}
	var snap project.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &snap, nil
}

type fileResponse struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Filename string   `json:"filename"`
	Path     []string `json:"path"`
	Hash     string   `json:"hash"`
	Category string   `json:"file_category"`
}

func (r fileResponse) remote() RemoteFile {
	name := r.Name
	if name == "" {
		name = r.Filename
	}
	path := r.Path
	if path == nil {
		path = []string{}
	}
	return RemoteFile{ID: r.ID, Name: name, Path: path, Hash: r.Hash, Category: project.Category(r.Category)}
}

type openUploadRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	DataHash string `json:"data_hash"`
	Category string `json:"file_category"`
}

type openUploadResponse struct {
	UploadID  string `json:"upload_id"`
	ChunkSize int64  `json:"chunk_size"`
}

// Chunk statuses reported by the server.
const (
	StatusInProgress = "in-progress"
	StatusComplete   = "complete"
)

type chunkResponse struct {
	Status string `json:"status"`
	Offset int64  `json:"offset"`
}

// createFileRequest finalizes an upload as a new remote file.
type createFileRequest struct {
	CreateFile      bool     `json:"create_file"`
	LoadFileContent bool     `json:"load_file_content,omitempty"`
	ProjectID       int64    `json:"project_id"`
	Path            []string `json:"path"`
}

// replaceFileRequest finalizes an upload as new content for an existing file.
type replaceFileRequest struct {
	FileID          int64 `json:"file_id"`
	LoadFileContent bool  `json:"load_file_content,omitempty"`
}

type completeResponse struct {
	ID int64 `json:"id"`
}

func projectPath(id int64) string {
	return "/api/projects/" + strconv.FormatInt(id, 10)
}

func filePath(id int64) string {
	return "/api/files/" + strconv.FormatInt(id, 10)
}
