// Package app wires configuration, storage and domain services together.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cinderlab/cinder/internal/analysis"
	"github.com/cinderlab/cinder/internal/config"
	"github.com/cinderlab/cinder/internal/corpus"
	"github.com/cinderlab/cinder/internal/domain/activity"
	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/cinderlab/cinder/internal/domain/syncer"
	"github.com/cinderlab/cinder/internal/mcp"
	"github.com/cinderlab/cinder/internal/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
)

// App holds the services shared by every command.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	FS       afero.Fs
	Tree     *project.Tree
	Projects *project.Service
	Index    *index.Service
	Activity *activity.Service
	Analyzer *analysis.Analyzer

	db       *sqlite.DB
	sessions *sqlite.UploadSessionRepository

	syncOnce sync.Once
	syncer   *syncer.Service
	syncErr  error
}

// Options overrides the collaborators New would otherwise create.
type Options struct {
	FS     afero.Fs
	Clock  clockwork.Clock
	Runner analysis.Runner
}

// New opens the local index and builds the services. The corpus client is
// not created here, so commands that stay local work without an API key.
func New(cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	db, err := sqlite.Open(cfg.Index.Path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", cfg.Index.Path, err)
	}

	categories := make([]project.Category, 0, len(cfg.Project.Categories))
	for _, c := range cfg.Project.Categories {
		categories = append(categories, project.Category(c))
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		FS:       opts.FS,
		db:       db,
		sessions: sqlite.NewUploadSessionRepository(db),
	}
	a.Tree = project.NewTree(opts.FS, categories, logger.With("component", "tree"))
	a.Index = index.NewService(sqlite.NewProjectRepository(db), a.Tree.Store(), opts.Clock, logger.With("component", "index"))
	a.Projects = project.NewService(a.Tree, a.Index, logger.With("component", "project"))
	a.Activity = activity.NewService(sqlite.NewActivityRepository(db), opts.Clock, logger.With("component", "activity"))
	a.Analyzer = analysis.New(cfg.Analysis, opts.FS, opts.Runner, logger.With("component", "analysis"))
	return a, nil
}

// Syncer returns the sync service, creating the corpus client on first use.
// It fails with a configuration error when no API key is set.
func (a *App) Syncer() (*syncer.Service, error) {
	a.syncOnce.Do(func() {
		if err := a.Config.RequireAPIKey(); err != nil {
			a.syncErr = err
			return
		}
		opts := corpus.OptionsFromConfig(a.Config)
		opts.Fs = a.FS
		opts.Sessions = a.sessions
		opts.Logger = a.Logger.With("component", "corpus")
		client, err := corpus.New(opts)
		if err != nil {
			a.syncErr = err
			return
		}
		a.syncer = syncer.NewService(a.Tree, client, a.Index, a.Activity, a.Logger.With("component", "syncer"))
	})
	return a.syncer, a.syncErr
}

// MCPServices exposes the services to the MCP server.
func (a *App) MCPServices() mcp.Services {
	return mcp.Services{
		Index:    a.Index,
		Projects: a.Projects,
		Syncer: func() (mcp.SyncService, error) {
			svc, err := a.Syncer()
			if err != nil {
				return nil, err
			}
			return svc, nil
		},
	}
}

// ForgetUploads drops resumable upload state kept for a project.
func (a *App) ForgetUploads(ctx context.Context, globalID string) error {
	return a.sessions.DeleteProject(ctx, globalID)
}

// Close releases the index database.
func (a *App) Close() error {
	return a.db.Close()
}
