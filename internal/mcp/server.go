package mcp

import (
	"context"
	"log/slog"

	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/cinderlab/cinder/internal/domain/syncer"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// IndexService defines index operations needed by MCP.
type IndexService interface {
	Search(ctx context.Context, opts index.SearchOptions) (*index.SearchResult, error)
	Get(ctx context.Context, rowID int64) (*project.Snapshot, error)
}

// ProjectService defines project operations needed by MCP.
type ProjectService interface {
	Save(ctx context.Context, snap *project.Snapshot) (*project.RefreshResult, error)
}

// SyncService defines sync operations needed by MCP.
type SyncService interface {
	Sync(ctx context.Context, snap *project.Snapshot) (*syncer.Report, error)
}

// Services contains all domain services needed by MCP. Syncer is resolved per
// call so the server starts without remote credentials.
type Services struct {
	Index    IndexService
	Projects ProjectService
	Syncer   func() (SyncService, error)
}

// Config contains server configuration.
type Config struct {
	Services Services
	Version  string
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "cinder",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, NewHandler(cfg.Services, cfg.Logger))

	return server
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves.
func Run(ctx context.Context, server *sdkmcp.Server) error {
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}
