// Package corpus is the client side of the corpus server's HTTP API: project
// records, remote file listings and chunked file transfer.
package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cinderlab/cinder/internal/config"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/spf13/afero"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-API-Key"

// SessionStore persists open upload sessions between runs. Get returns
// repository.ErrNotFound when no session exists.
type SessionStore interface {
	Get(ctx context.Context, projectGlobalID, fileKey string) (*UploadSession, error)
	Put(ctx context.Context, session *UploadSession) error
	Delete(ctx context.Context, projectGlobalID, fileKey string) error
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Fs         afero.Fs
	Sessions   SessionStore
	Logger     *slog.Logger
	// DownloadAttempts bounds how often a download restarts after a failed
	// write. Zero means 3.
	DownloadAttempts int
	// ContentCategories and ContentExtensions select the files whose content
	// the server should index on upload.
	ContentCategories []project.Category
	ContentExtensions []string
}

// OptionsFromConfig maps the remote and project settings onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	cats := make([]project.Category, 0, len(cfg.Project.ContentCategories))
	for _, c := range cfg.Project.ContentCategories {
		cats = append(cats, project.Category(c))
	}
	return Options{
		BaseURL:           cfg.Remote.BaseURL(),
		APIKey:            cfg.Remote.APIKey,
		HTTPClient:        &http.Client{Timeout: cfg.Remote.Timeout},
		DownloadAttempts:  cfg.Remote.DownloadAttempts,
		ContentCategories: cats,
		ContentExtensions: slices.Clone(cfg.Project.ContentExtensions),
	}
}

// Client talks to one corpus server.
type Client struct {
	baseURL           string
	apiKey            string
	http              *http.Client
	fs                afero.Fs
	sessions          SessionStore
	logger            *slog.Logger
	downloadAttempts  int
	contentCategories []project.Category
	contentExtensions []string
}

// New creates a client. A missing API key is a configuration error: remote
// calls are never made anonymously.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &config.ConfigurationError{Field: "remote.api_key", Reason: "an API key is required for remote operations"}
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, &config.ConfigurationError{Field: "remote.host", Reason: "base URL is empty"}
	}
	c := &Client{
		baseURL:           strings.TrimRight(opts.BaseURL, "/"),
		apiKey:            opts.APIKey,
		http:              opts.HTTPClient,
		fs:                opts.Fs,
		sessions:          opts.Sessions,
		logger:            opts.Logger,
		downloadAttempts:  opts.DownloadAttempts,
		contentCategories: opts.ContentCategories,
		contentExtensions: opts.ContentExtensions,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 5 * time.Minute}
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.sessions == nil {
		c.sessions = newMemorySessions()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.downloadAttempts <= 0 {
		c.downloadAttempts = 3
	}
	return c, nil
}

// CreateProject creates the remote project record and returns its id.
func (c *Client) CreateProject(ctx context.Context, snap *project.Snapshot) (int64, error) {
	var resp projectResponse
	if err := c.doJSON(ctx, "create project", http.MethodPost, "/api/projects", newProjectPayload(snap), &resp, http.StatusOK, http.StatusCreated); err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, &TransportError{Op: "create project", Target: "/api/projects", Err: fmt.Errorf("%w: response has no id", ErrUnexpectedStatus)}
	}
	c.logger.Info("remote project created", "remote_id", resp.ID, "global_id", snap.GlobalID)
	return resp.ID, nil
}

// UpdateProject patches the remote record with the snapshot's current name,
// description, hash and metadata.
func (c *Client) UpdateProject(ctx context.Context, snap *project.Snapshot) error {
	if snap.RemoteID == nil {
		return ErrNotLinked
	}
	return c.doJSON(ctx, "update project", http.MethodPatch, projectPath(*snap.RemoteID), newProjectPayload(snap), nil, http.StatusOK, http.StatusNoContent)
}

// GetProject fetches the remote project record.
func (c *Client) GetProject(ctx context.Context, remoteID int64) (*RemoteProject, error) {
	var resp projectResponse
	if err := c.doJSON(ctx, "get project", http.MethodGet, projectPath(remoteID), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	rp, err := resp.remote()
	if err != nil {
		return nil, &TransportError{Op: "get project", Target: projectPath(remoteID), Err: err}
	}
	return rp, nil
}

// ListFiles lists the files of the remote project.
func (c *Client) ListFiles(ctx context.Context, remoteID int64) ([]RemoteFile, error) {
	var resp []fileResponse
	if err := c.doJSON(ctx, "list files", http.MethodGet, projectPath(remoteID)+"/files", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	files := make([]RemoteFile, 0, len(resp))
	for _, f := range resp {
		files = append(files, f.remote())
	}
	return files, nil
}

// DeleteFile removes a remote file.
func (c *Client) DeleteFile(ctx context.Context, fileID int64) error {
	return c.doJSON(ctx, "delete file", http.MethodDelete, filePath(fileID), nil, nil, http.StatusNoContent)
}

func newProjectPayload(snap *project.Snapshot) projectPayload {
	return projectPayload{
		Name:        snap.Name,
		Description: snap.Description,
		Hash:        snap.CompositeHash,
		Metadata:    snap,
		GlobalID:    snap.GlobalID,
	}
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any, want ...int) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, op, method, path, body, contentType, want...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Target: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// send performs one request and maps failure statuses to errors. On success
// the caller owns the response body.
func (c *Client) send(ctx context.Context, op, method, path string, body io.Reader, contentType string, want ...int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("corpus request", "op", op, "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Target: path, Err: err}
	}
	if slices.Contains(want, resp.StatusCode) {
		return resp, nil
	}

	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var cause error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		cause = ErrUnauthorized
	case http.StatusNotFound:
		cause = ErrNotFound
	default:
		cause = ErrUnexpectedStatus
	}
	if msg := strings.TrimSpace(string(detail)); msg != "" {
		cause = fmt.Errorf("%w: %s", cause, msg)
	}
	return nil, &TransportError{Op: op, Target: path, StatusCode: resp.StatusCode, Err: cause}
}

func (c *Client) indexesContent(rec project.FileRecord) bool {
	if !slices.Contains(c.contentCategories, rec.Category) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(rec.Filename))
	return slices.ContainsFunc(c.contentExtensions, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}

