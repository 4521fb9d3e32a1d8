package mcp

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/domain/project"
)

// Handler implements the MCP tools on top of the domain services.
type Handler struct {
	services Services
	logger   *slog.Logger
}

// NewHandler creates a new MCP handler.
func NewHandler(services Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{services: services, logger: logger}
}

func (h *Handler) ListProjects(ctx context.Context, req ListProjectsParams) (*ListProjectsResponse, error) {
	result, err := h.services.Index.Search(ctx, index.SearchOptions{Term: req.Term, Offset: req.Offset, Limit: req.Limit})
	if err != nil {
		return nil, mapError(err)
	}
	resp := &ListProjectsResponse{
		Total:    result.Total,
		Offset:   result.Offset,
		Limit:    result.Limit,
		Pages:    result.Pages(),
		Projects: make([]ProjectSummaryResponse, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		summary := ProjectSummaryResponse{
			RowID:       item.Entry.RowID,
			GlobalID:    item.Entry.GlobalID,
			Name:        item.Entry.Name,
			Description: item.Entry.Description,
			Location:    item.Entry.Location,
			Hash:        item.Entry.Hash,
			RemoteID:    item.Entry.RemoteID,
			CreatedAt:   item.Entry.CreatedAt.Format(time.RFC3339),
		}
		if item.Snapshot != nil {
			summary.Available = true
			summary.FileCount = item.Snapshot.FileCount()
		}
		resp.Projects = append(resp.Projects, summary)
	}
	return resp, nil
}

func (h *Handler) GetProject(ctx context.Context, req ProjectParams) (*ProjectResponse, error) {
	snap, err := h.services.Index.Get(ctx, req.RowID)
	if err != nil {
		return nil, mapError(err)
	}
	return projectResponse(snap), nil
}

func (h *Handler) RefreshProject(ctx context.Context, req ProjectParams) (*RefreshResponse, error) {
	snap, err := h.services.Index.Get(ctx, req.RowID)
	if err != nil {
		return nil, mapError(err)
	}
	result, err := h.services.Projects.Save(ctx, snap)
	if err != nil {
		return nil, mapError(err)
	}
	resp := &RefreshResponse{
		Hash:     result.Hash,
		Files:    snap.FileCount(),
		Removed:  fileResponses(result.Removed),
		Excluded: make([]string, 0, len(result.Failures)),
	}
	for _, f := range result.Failures {
		resp.Excluded = append(resp.Excluded, f.Error())
	}
	return resp, nil
}

func (h *Handler) SyncProject(ctx context.Context, req ProjectParams) (*SyncResponse, error) {
	snap, err := h.services.Index.Get(ctx, req.RowID)
	if err != nil {
		return nil, mapError(err)
	}
	if h.services.Syncer == nil {
		return nil, &APIError{Code: "REMOTE_UNAVAILABLE", Message: "no corpus server configured"}
	}
	svc, err := h.services.Syncer()
	if err != nil {
		return nil, mapError(err)
	}
	report, err := svc.Sync(ctx, snap)
	if err != nil {
		h.logger.Warn("mcp sync failed", "row_id", req.RowID, "error", err)
		return nil, mapError(err)
	}

	resp := &SyncResponse{
		RemoteID: report.RemoteID,
		Created:  report.Created,
		Hash:     report.Hash,
		Uploaded: fileResponses(report.Uploaded),
		Deleted:  make([]FileResponse, 0, len(report.Deleted)),
		Adopted:  len(report.Adopted),
	}
	for _, rf := range report.Deleted {
		rec := project.FileRecord{Category: rf.Category, Path: rf.Path, Filename: rf.Name, Digest: rf.Hash, RemoteID: project.Int64(rf.ID)}
		resp.Deleted = append(resp.Deleted, fileResponses([]project.FileRecord{rec})...)
	}
	return resp, nil
}

func projectResponse(snap *project.Snapshot) *ProjectResponse {
	return &ProjectResponse{
		RowID:       snap.ProjectID,
		GlobalID:    snap.GlobalID,
		RemoteID:    snap.RemoteID,
		Name:        snap.Name,
		Description: snap.Description,
		Location:    snap.LocalPath,
		Hash:        snap.CompositeHash,
		Metadata:    plainMetadata(snap.Metadata),
		Files:       fileResponses(snap.AllFiles()),
	}
}
