package mcp

import (
	"encoding/json"

	"github.com/cinderlab/cinder/internal/domain/project"
)

type ListProjectsParams struct {
	Term   string `json:"term,omitempty" jsonschema:"case-insensitive substring of the name or description"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of matches to skip"`
	Limit  int    `json:"limit,omitempty" jsonschema:"page size, 20 when omitted"`
}

type ProjectParams struct {
	RowID int64 `json:"row_id" jsonschema:"local index row id from list_projects"`
}

type ProjectSummaryResponse struct {
	RowID       int64  `json:"row_id"`
	GlobalID    string `json:"global_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Hash        string `json:"hash"`
	RemoteID    *int64 `json:"remote_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	FileCount   int    `json:"file_count"`
	Available   bool   `json:"available"`
}

type ListProjectsResponse struct {
	Total    int                      `json:"total"`
	Offset   int                      `json:"offset"`
	Limit    int                      `json:"limit"`
	Pages    int                      `json:"pages"`
	Projects []ProjectSummaryResponse `json:"projects"`
}

type FileResponse struct {
	Category string `json:"category"`
	Path     string `json:"path"`
	SHA1     string `json:"sha1"`
	RemoteID *int64 `json:"remote_id,omitempty"`
}

type ProjectResponse struct {
	RowID       int64          `json:"row_id"`
	GlobalID    string         `json:"global_id"`
	RemoteID    *int64         `json:"remote_id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Hash        string         `json:"hash"`
	Metadata    map[string]any `json:"metadata"`
	Files       []FileResponse `json:"files"`
}

type RefreshResponse struct {
	Hash     string         `json:"hash"`
	Files    int            `json:"files"`
	Removed  []FileResponse `json:"removed"`
	Excluded []string       `json:"excluded"`
}

type SyncResponse struct {
	RemoteID int64          `json:"remote_id"`
	Created  bool           `json:"created"`
	Hash     string         `json:"hash"`
	Uploaded []FileResponse `json:"uploaded"`
	Deleted  []FileResponse `json:"deleted"`
	Adopted  int            `json:"adopted"`
}

func fileResponses(records []project.FileRecord) []FileResponse {
	out := make([]FileResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, FileResponse{Category: string(rec.Category), Path: rec.RelPath(), SHA1: rec.Digest, RemoteID: rec.RemoteID})
	}
	return out
}

// plainMetadata converts metadata into plain JSON values for structured output.
func plainMetadata(m project.Metadata) map[string]any {
	out := map[string]any{}
	data, err := json.Marshal(m)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}
