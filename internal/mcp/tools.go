package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *sdkmcp.Server, h *Handler) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_projects",
		Description: "Search the local project index by name or description, one page at a time",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListProjectsParams) (*sdkmcp.CallToolResult, ListProjectsResponse, error) {
		out, err := h.ListProjects(ctx, in)
		if err != nil {
			return nil, ListProjectsResponse{}, err
		}
		return nil, *out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_project",
		Description: "Get a project's identity, metadata and tracked files",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in ProjectParams) (*sdkmcp.CallToolResult, ProjectResponse, error) {
		out, err := h.GetProject(ctx, in)
		if err != nil {
			return nil, ProjectResponse{}, err
		}
		return nil, *out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "refresh_project",
		Description: "Rescan a project folder, recompute its hash and save the snapshot",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in ProjectParams) (*sdkmcp.CallToolResult, RefreshResponse, error) {
		out, err := h.RefreshProject(ctx, in)
		if err != nil {
			return nil, RefreshResponse{}, err
		}
		return nil, *out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "sync_project",
		Description: "Push a project to the corpus server: delete stale remote files, upload new ones, update the remote hash",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in ProjectParams) (*sdkmcp.CallToolResult, SyncResponse, error) {
		out, err := h.SyncProject(ctx, in)
		if err != nil {
			return nil, SyncResponse{}, err
		}
		return nil, *out, nil
	})
}
