package main

import (
	"fmt"
	"path/filepath"

	"github.com/cinderlab/cinder/internal/domain/activity"
	"github.com/spf13/cobra"
)

func newSyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [dir]",
		Short: "Mirror a project to the corpus server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			svc, err := a.Syncer()
			if err != nil {
				return err
			}
			snap, err := c.loadProject(args)
			if err != nil {
				return err
			}
			if snap.ProjectID == 0 {
				// Index first so the remote id lands on a row.
				if _, err := a.Projects.Save(cmd.Context(), snap); err != nil {
					return err
				}
			}
			report, err := svc.Sync(cmd.Context(), snap)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.Created {
				fmt.Fprintf(out, "Created remote project %d\n", report.RemoteID)
			}
			fmt.Fprintf(out, "Synced %q to remote project %d: %d uploaded, %d adopted, %d deleted\n",
				snap.Name, report.RemoteID, len(report.Uploaded), len(report.Adopted), len(report.Deleted))
			fmt.Fprintf(out, "Hash %s\n", report.Hash)
			return nil
		},
	}
}

func newPullCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pull <remote-id>",
		Short: "Download a remote project into a new local folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			svc, err := a.Syncer()
			if err != nil {
				return err
			}
			remoteID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("project-%d", remoteID)
			}
			dest, err := absDir(output)
			if err != nil {
				return err
			}
			report, err := svc.Pull(cmd.Context(), remoteID, dest)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pulled %q into %s: %d downloaded, %d skipped\n",
				report.Snapshot.Name, filepath.Clean(dest), len(report.Downloaded), len(report.Skipped))
			if !report.HashMatches {
				fmt.Fprintln(out, "Warning: local hash differs from the remote project hash")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "Destination folder (defaults to project-<remote-id>)")
	return cmd
}

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [dir]",
		Short: "Show recorded sync and pull runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openApp()
			if err != nil {
				return err
			}
			opts := activity.ListOptions{Limit: limit}
			if len(args) > 0 {
				snap, err := c.loadProject(args)
				if err != nil {
					return err
				}
				opts.ProjectGlobalID = snap.GlobalID
			}
			runs, err := a.Activity.History(cmd.Context(), opts)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	return cmd
}
