package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cinderlab/cinder/internal/app"
	"github.com/cinderlab/cinder/internal/config"
	"github.com/spf13/cobra"
)

// cli carries state shared by the commands of one invocation.
type cli struct {
	cfg     config.Config
	logger  *slog.Logger
	logFile io.Closer
	app     *app.App
	// appOptions is overridden in tests.
	appOptions app.Options
}

func newRootCmd(c *cli) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "cinder",
		Short:         "cinder - proteomics project folders synced with a corpus server",
		Long:          "cinder tracks project folders of categorized data files, keeps a local index of them and mirrors them to a remote corpus server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			c.cfg = cfg
			return c.setupLogging(cmd)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newInitCmd(c),
		newRefreshCmd(c),
		newSaveCmd(c),
		newListCmd(c),
		newShowCmd(c),
		newRemoveCmd(c),
		newAddCmd(c),
		newSyncCmd(c),
		newPullCmd(c),
		newHistoryCmd(c),
		newAnnotateCmd(c),
		newAnalyzeCmd(c),
		newConfigCmd(c),
		newMCPCmd(c),
	)
	return root
}

// openApp opens the local index once per invocation.
func (c *cli) openApp() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := app.New(c.cfg, c.logger, c.appOptions)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.logFile != nil {
		_ = c.logFile.Close()
		c.logFile = nil
	}
	return err
}

func (c *cli) setupLogging(cmd *cobra.Command) error {
	// Logs go to stderr so stdout stays clean for tables, JSON and MCP.
	logWriter := cmd.ErrOrStderr()
	if c.cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(c.cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			c.logFile = file
			logWriter = fileWriter
		}
	}
	c.logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(c.cfg.Log.Level),
	}))
	return nil
}
