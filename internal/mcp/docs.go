package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `cinder manages local proteomics project folders and mirrors them to a corpus server.

- A project is a folder with project.json, project.sha1 and data/<category>/... files.
- list_projects pages through the local index. Use the row_id it returns for every other tool.
- refresh_project rescans the folder. Files that cannot be read are excluded and reported, never treated as removed.
- sync_project pushes changes: remote files with no identical local file are deleted first, then new files are uploaded, then the remote hash is updated. A failed sync can simply be run again; finished uploads are not repeated.`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "cinder://docs/sync",
		Name:        "sync",
		Title:       "How sync works",
		Description: "Order of operations and failure behaviour of sync_project",
		Content: `# Sync

1. The folder is refreshed. An unreadable file aborts the sync so nothing is deleted by mistake.
2. A project without a remote id is created on the server.
3. Remote files are compared with local files on (category, path, filename, sha1).
   Remote files with no match are deleted. Identical unlinked local files adopt the remote id.
4. Every local file without a remote id is uploaded in chunks. Its id is saved before the next file starts.
5. The remote project is patched with the composite hash and re-read to confirm it.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
