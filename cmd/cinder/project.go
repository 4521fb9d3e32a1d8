package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/spf13/cobra"
)

func newInitCmd(c *cli) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a project folder and add it to the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			dir, err := absDir(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(dir)
			}
			snap, err := a.Tree.Initialize(cmd.Context(), dir, name)
			if err != nil {
				return err
			}
			if _, err := a.Projects.Save(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized project %q (id %d) at %s\n", snap.Name, snap.ProjectID, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name (defaults to the folder name)")
	return cmd
}

func newRefreshCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [dir]",
		Short: "Rescan the data folder and recompute file digests",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			snap, err := c.loadProject(args)
			if err != nil {
				return err
			}
			result, err := a.Projects.Save(cmd.Context(), snap)
			if err != nil {
				return err
			}
			printRefresh(cmd, snap, result)
			return nil
		},
	}
}

func newSaveCmd(c *cli) *cobra.Command {
	var description string
	var name string

	cmd := &cobra.Command{
		Use:   "save [dir]",
		Short: "Update the project's name or description and record it in the index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			snap, err := c.loadProject(args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("description") {
				snap.Description = description
			}
			if cmd.Flags().Changed("name") {
				if strings.TrimSpace(name) == "" {
					return fmt.Errorf("%w: project name is required", project.ErrInvalidInput)
				}
				snap.Name = name
			}
			result, err := a.Projects.Save(cmd.Context(), snap)
			if err != nil {
				return err
			}
			printRefresh(cmd, snap, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	return cmd
}

func printRefresh(cmd *cobra.Command, snap *project.Snapshot, result *project.RefreshResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d files, hash %s\n", snap.Name, snap.FileCount(), result.Hash)
	for _, rec := range result.Removed {
		fmt.Fprintf(out, "  removed %s\n", rec)
	}
	for _, failure := range result.Failures {
		fmt.Fprintf(out, "  skipped %v\n", failure)
	}
}

func newListCmd(c *cli) *cobra.Command {
	var (
		term   string
		offset int
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			result, err := a.Index.Search(cmd.Context(), index.SearchOptions{Term: term, Offset: offset, Limit: limit})
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return writeJSON(cmd, result)
			case "table":
				renderProjects(cmd.OutOrStdout(), result)
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&term, "term", "", "Filter by name or description")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of matches to skip")
	cmd.Flags().IntVar(&limit, "limit", index.DefaultLimit, "Page size")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

func newShowCmd(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <row-id>",
		Short: "Show one indexed project and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			rowID, err := parseID(args[0])
			if err != nil {
				return err
			}
			entry, err := a.Index.Entry(cmd.Context(), rowID)
			if err != nil {
				return err
			}
			snap, err := a.Index.Get(cmd.Context(), rowID)
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd, snap)
			}
			renderProject(cmd.OutOrStdout(), entry, snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

func newRemoveCmd(c *cli) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "remove <row-id>",
		Short: "Remove a project from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			rowID, err := parseID(args[0])
			if err != nil {
				return err
			}
			entry, err := a.Index.Entry(cmd.Context(), rowID)
			if err != nil {
				return err
			}
			snap, err := a.Index.Get(cmd.Context(), rowID)
			if err != nil {
				if purge || !errors.Is(err, project.ErrNotInitialized) {
					return err
				}
				// The folder is already gone; only the index row remains.
				snap = &project.Snapshot{ProjectID: entry.RowID, GlobalID: entry.GlobalID, LocalPath: entry.Location}
			}
			if err := a.Projects.Remove(cmd.Context(), snap, purge); err != nil {
				return err
			}
			if err := a.ForgetUploads(cmd.Context(), entry.GlobalID); err != nil {
				c.logger.Warn("failed to drop upload sessions", "global_id", entry.GlobalID, "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed project %q (id %d)\n", entry.Name, entry.RowID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the project folder")
	return cmd
}

func newAddCmd(c *cli) *cobra.Command {
	var (
		category string
		path     string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Copy files into a project category and track them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			snap, err := c.loadProject(optionalArg(dir))
			if err != nil {
				return err
			}
			var segments []string
			if path != "" {
				segments = strings.Split(filepath.ToSlash(path), "/")
			}
			for _, src := range args {
				if err := addFile(c, snap, category, segments, src); err != nil {
					return err
				}
			}
			result, err := a.Projects.Save(cmd.Context(), snap)
			if err != nil {
				return err
			}
			printRefresh(cmd, snap, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "unprocessed", "Target category")
	cmd.Flags().StringVar(&path, "path", "", "Sub-folder inside the category, e.g. batch1/run2")
	cmd.Flags().StringVar(&dir, "project", "", "Project folder (defaults to the current directory)")
	return cmd
}

func addFile(c *cli, snap *project.Snapshot, category string, segments []string, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	dst, err := c.app.Projects.AddFile(snap, project.Category(category), segments, filepath.Base(src), f)
	if err != nil {
		return err
	}
	c.logger.Debug("file added", "source", src, "destination", dst)
	return nil
}

func (c *cli) loadProject(args []string) (*project.Snapshot, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := absDir(dir)
	if err != nil {
		return nil, err
	}
	return c.app.Projects.Load(abs)
}

func optionalArg(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return abs, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
