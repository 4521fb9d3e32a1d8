package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cinderlab/cinder/internal/domain/activity"
	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/jedib0t/go-pretty/v6/table"
)

func renderProjects(out io.Writer, result *index.SearchResult) {
	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No projects found")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Files", "Remote", "Created", "Location"})
	for _, item := range result.Items {
		files := "missing"
		if item.Snapshot != nil {
			files = fmt.Sprint(item.Snapshot.FileCount())
		}
		t.AppendRow(table.Row{
			item.Entry.RowID,
			item.Entry.Name,
			files,
			remoteLabel(item.Entry.RemoteID),
			item.Entry.CreatedAt.Local().Format(time.DateTime),
			item.Entry.Location,
		})
	}
	t.Render()

	page := result.Offset/result.Limit + 1
	fmt.Fprintf(out, "Page %d of %d (%d projects)\n", page, result.Pages(), result.Total)
}

func renderProject(out io.Writer, entry *index.Entry, snap *project.Snapshot) {
	fmt.Fprintf(out, "Name:        %s\n", snap.Name)
	if snap.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", snap.Description)
	}
	fmt.Fprintf(out, "Global ID:   %s\n", snap.GlobalID)
	fmt.Fprintf(out, "Remote ID:   %s\n", remoteLabel(snap.RemoteID))
	fmt.Fprintf(out, "Location:    %s\n", snap.LocalPath)
	fmt.Fprintf(out, "Created:     %s\n", entry.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Hash:        %s\n", snap.CompositeHash)

	files := snap.AllFiles()
	if len(files) == 0 {
		fmt.Fprintln(out, "No files tracked")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Category", "Path", "File", "SHA1", "Remote"})
	for _, rec := range files {
		t.AppendRow(table.Row{rec.Category, strings.Join(rec.Path, "/"), rec.Filename, rec.Digest, remoteLabel(rec.RemoteID)})
	}
	t.Render()
}

func renderHistory(out io.Writer, runs []activity.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No sync activity recorded")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Started", "Kind", "Status", "Uploaded", "Deleted", "Adopted", "Downloaded", "Duration", "Error"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.StartedAt.Local().Format(time.DateTime),
			run.Kind,
			run.Status,
			run.Uploaded,
			run.Deleted,
			run.Adopted,
			run.Downloaded,
			run.Duration().Round(time.Millisecond),
			run.Error,
		})
	}
	t.Render()
}

func remoteLabel(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}
