package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cinderlab/cinder/internal/corpus"
	"github.com/cinderlab/cinder/internal/domain/activity"
	"github.com/cinderlab/cinder/internal/domain/project"
)

// Report summarizes one sync.
type Report struct {
	RemoteID int64
	Created  bool
	Deleted  []corpus.RemoteFile
	Adopted  []project.FileRecord
	Unlinked []project.FileRecord
	Uploaded []project.FileRecord
	Hash     string
}

// Service reconciles local project folders with the corpus server.
type Service struct {
	tree    *project.Tree
	remote  Remote
	index   Index
	history History
	logger  *slog.Logger
	locks   keyedLock
}

// NewService creates a new sync service. history may be nil.
func NewService(tree *project.Tree, remote Remote, index Index, history History, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{tree: tree, remote: remote, index: index, history: history, logger: logger}
}

// Sync brings the remote copy of the project in line with the local folder.
// Remote files with no identical local record are deleted, unlinked local
// records are uploaded, and the remote record is patched with the local hash,
// strictly in that order. Each upload's remote id is persisted before the
// next file starts, so an interrupted sync resumes where it stopped.
func (s *Service) Sync(ctx context.Context, snap *project.Snapshot) (report *Report, err error) {
	if !s.locks.tryLock(snap.GlobalID) {
		return nil, fmt.Errorf("%s: %w", snap.GlobalID, ErrSyncInProgress)
	}
	defer s.locks.unlock(snap.GlobalID)

	run := s.startRun(activity.KindSync, snap.GlobalID)
	report = &Report{}
	defer func() {
		run.Uploaded, run.Deleted, run.Adopted = len(report.Uploaded), len(report.Deleted), len(report.Adopted)
		s.finishRun(ctx, run, err)
	}()

	logger := s.logger.With("global_id", snap.GlobalID)

	refreshed, err := s.tree.Refresh(ctx, snap)
	if err != nil {
		return report, fmt.Errorf("refresh before sync: %w", err)
	}
	// Excluded files would look deleted to the reconcile step.
	if len(refreshed.Failures) > 0 {
		return report, refreshed.Failures[0]
	}

	if snap.RemoteID == nil {
		id, err := s.remote.CreateProject(ctx, snap)
		if err != nil {
			return report, err
		}
		snap.RemoteID = project.Int64(id)
		report.Created = true
		if err := s.tree.Store().Save(snap); err != nil {
			return report, err
		}
		if snap.ProjectID != 0 {
			if err := s.index.UpdateRemoteID(ctx, snap.ProjectID, snap.RemoteID); err != nil {
				return report, fmt.Errorf("record remote id: %w", err)
			}
		}
	}
	report.RemoteID = *snap.RemoteID
	logger = logger.With("remote_id", report.RemoteID)

	if err := s.reconcile(ctx, snap, report, logger); err != nil {
		return report, err
	}
	if err := s.uploadPass(ctx, snap, report, logger); err != nil {
		return report, err
	}

	if err := s.remote.UpdateProject(ctx, snap); err != nil {
		return report, err
	}
	report.Hash = snap.CompositeHash

	if snap.ProjectID != 0 {
		if err := s.index.Update(ctx, snap.ProjectID, indexRequest(snap)); err != nil {
			return report, fmt.Errorf("update index: %w", err)
		}
	}

	remote, err := s.remote.GetProject(ctx, report.RemoteID)
	if err != nil {
		return report, err
	}
	if remote.Hash != snap.CompositeHash {
		logger.Error("remote hash mismatch after sync", "local_hash", snap.CompositeHash, "remote_hash", remote.Hash)
		return report, fmt.Errorf("%w: local %s remote %s", ErrHashMismatch, snap.CompositeHash, remote.Hash)
	}

	logger.Info("project synced",
		"deleted", len(report.Deleted),
		"adopted", len(report.Adopted),
		"uploaded", len(report.Uploaded),
		"hash", report.Hash,
	)
	return report, nil
}

// reconcile deletes remote files absent from the snapshot, adopts remote ids
// for identical unlinked records and unlinks records whose remote id the
// server no longer knows, including ids deleted here.
//
// Each local record keeps exactly one remote file: the one it is already
// linked to when the server lists that id under the same identity, otherwise
// the first listed match. Further remote files with the same identity are
// duplicates and are deleted.
func (s *Service) reconcile(ctx context.Context, snap *project.Snapshot, report *Report, logger *slog.Logger) error {
	remoteFiles, err := s.remote.ListFiles(ctx, *snap.RemoteID)
	if err != nil {
		return err
	}

	remoteIDs := make(map[int64]struct{}, len(remoteFiles))
	keep := make(map[project.FileKey]int64)
	for _, rf := range remoteFiles {
		remoteIDs[rf.ID] = struct{}{}
		if local, ok := snap.Find(rf.Key()); ok && local.RemoteID != nil && *local.RemoteID == rf.ID {
			keep[rf.Key()] = rf.ID
		}
	}
	for _, rf := range remoteFiles {
		if _, ok := keep[rf.Key()]; ok {
			continue
		}
		if _, ok := snap.Find(rf.Key()); ok {
			keep[rf.Key()] = rf.ID
		}
	}

	changed := false
	for _, rf := range remoteFiles {
		local, ok := snap.Find(rf.Key())
		if !ok || keep[rf.Key()] != rf.ID {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.remote.DeleteFile(ctx, rf.ID); err != nil && !errors.Is(err, corpus.ErrNotFound) {
				return &FileError{File: remoteRecord(rf), Step: "delete", Err: err}
			}
			delete(remoteIDs, rf.ID)
			logger.Debug("remote file deleted", append(fileAttrs(remoteRecord(rf), rf.ID), "duplicate", ok)...)
			report.Deleted = append(report.Deleted, rf)
			continue
		}
		if local.RemoteID == nil || *local.RemoteID != rf.ID {
			snap.SetFileRemoteID(local.Key(), project.Int64(rf.ID))
			local.RemoteID = project.Int64(rf.ID)
			report.Adopted = append(report.Adopted, local)
			changed = true
		}
	}

	for _, rec := range snap.AllFiles() {
		if rec.RemoteID == nil {
			continue
		}
		if _, ok := remoteIDs[*rec.RemoteID]; ok {
			continue
		}
		logger.Warn("remote file missing, will upload again", fileAttrs(rec, *rec.RemoteID)...)
		snap.SetFileRemoteID(rec.Key(), nil)
		rec.RemoteID = nil
		report.Unlinked = append(report.Unlinked, rec)
		changed = true
	}

	if changed {
		return s.tree.Store().Save(snap)
	}
	return nil
}

func (s *Service) uploadPass(ctx context.Context, snap *project.Snapshot, report *Report, logger *slog.Logger) error {
	for _, rec := range snap.AllFiles() {
		if rec.Linked() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		id, err := s.remote.Upload(ctx, corpus.UploadRequest{
			ProjectRemoteID: *snap.RemoteID,
			ProjectGlobalID: snap.GlobalID,
			DataPath:        snap.DataPath,
			Record:          rec,
		})
		if err != nil {
			logger.Error("upload failed", append(fileAttrs(rec, 0), "error", err)...)
			return &FileError{File: rec, Step: "upload", Err: err}
		}

		snap.SetFileRemoteID(rec.Key(), project.Int64(id))
		if err := s.tree.Store().Save(snap); err != nil {
			return &FileError{File: rec, Step: "record remote id", Err: err}
		}
		rec.RemoteID = project.Int64(id)
		report.Uploaded = append(report.Uploaded, rec)
		logger.Info("file uploaded", fileAttrs(rec, id)...)
	}
	return nil
}

// PullReport summarizes one pull.
type PullReport struct {
	Snapshot    *project.Snapshot
	Downloaded  []corpus.RemoteFile
	Skipped     []corpus.RemoteFile
	HashMatches bool
}

// Pull lays out a new project folder at dest from the remote project,
// downloads every remote file into it and registers it in the local index
// under the remote global id.
func (s *Service) Pull(ctx context.Context, remoteID int64, dest string) (report *PullReport, err error) {
	remote, err := s.remote.GetProject(ctx, remoteID)
	if err != nil {
		return nil, err
	}

	globalID := remote.GlobalID
	if globalID == "" && remote.Snapshot != nil {
		globalID = remote.Snapshot.GlobalID
	}
	if globalID == "" {
		return nil, fmt.Errorf("remote project %d has no global id: %w", remoteID, project.ErrInvalidInput)
	}

	if !s.locks.tryLock(globalID) {
		return nil, fmt.Errorf("%s: %w", globalID, ErrSyncInProgress)
	}
	defer s.locks.unlock(globalID)

	run := s.startRun(activity.KindPull, globalID)
	report = &PullReport{}
	defer func() {
		run.Downloaded = len(report.Downloaded)
		s.finishRun(ctx, run, err)
	}()

	if _, err := s.tree.Open(dest); err == nil {
		return report, fmt.Errorf("%s: %w", dest, project.ErrAlreadyInitialized)
	}

	snap := &project.Snapshot{
		GlobalID:    globalID,
		RemoteID:    project.Int64(remote.ID),
		Name:        remote.Name,
		Description: remote.Description,
		LocalPath:   dest,
		DataPath:    filepath.Join(dest, project.DataDir),
		Metadata:    project.Metadata{},
		Files:       map[project.Category][]project.FileRecord{},
	}
	if remote.Snapshot != nil && remote.Snapshot.Metadata != nil {
		snap.Metadata = remote.Snapshot.Metadata
	}
	if err := s.tree.Layout(snap); err != nil {
		return report, err
	}

	files, err := s.remote.ListFiles(ctx, remote.ID)
	if err != nil {
		return report, err
	}
	for _, rf := range files {
		rec := remoteRecord(rf)
		if !s.tree.HasCategory(rf.Category) {
			s.logger.Warn("skipping remote file in unknown category", fileAttrs(rec, rf.ID)...)
			report.Skipped = append(report.Skipped, rf)
			continue
		}
		target, ok := s.pullTarget(snap, rf)
		if !ok {
			report.Skipped = append(report.Skipped, rf)
			continue
		}
		if err := s.remote.Download(ctx, rf.ID, target, rf.Hash); err != nil {
			return report, &FileError{File: rec, Step: "download", Err: err}
		}
		// Seeding the record lets the refresh carry the remote id forward.
		rec.RemoteID = project.Int64(rf.ID)
		snap.Files[rf.Category] = append(snap.Files[rf.Category], rec)
		report.Downloaded = append(report.Downloaded, rf)
	}

	if _, err := s.tree.Refresh(ctx, snap); err != nil {
		return report, err
	}

	entry, err := s.index.Create(ctx, indexRequest(snap))
	if err != nil {
		return report, fmt.Errorf("index pulled project: %w", err)
	}
	snap.ProjectID = entry.RowID
	if err := s.tree.Store().Save(snap); err != nil {
		return report, err
	}

	report.Snapshot = snap
	report.HashMatches = snap.CompositeHash == remote.Hash
	if !report.HashMatches {
		s.logger.Warn("pulled project hash differs from remote", "global_id", globalID, "local_hash", snap.CompositeHash, "remote_hash", remote.Hash)
	}
	s.logger.Info("project pulled", "global_id", globalID, "remote_id", remote.ID, "path", dest, "files", len(report.Downloaded))
	return report, nil
}

// pullTarget resolves where a remote file lands below the data folder. Names
// that could climb out of it are refused.
func (s *Service) pullTarget(snap *project.Snapshot, rf corpus.RemoteFile) (string, bool) {
	rec := remoteRecord(rf)
	if err := project.ValidateLocation(rec.Path, rec.Filename); err != nil {
		s.logger.Warn("skipping remote file with unsafe path", append(fileAttrs(rec, rf.ID), "error", err)...)
		return "", false
	}
	root := filepath.Clean(snap.DataPath)
	target := filepath.Join(root, filepath.FromSlash(rec.RelPath()))
	if !strings.HasPrefix(target, root+string(filepath.Separator)) {
		s.logger.Warn("skipping remote file outside the data folder", fileAttrs(rec, rf.ID)...)
		return "", false
	}
	return target, true
}

func (s *Service) startRun(kind activity.Kind, globalID string) *activity.Run {
	if s.history == nil {
		return &activity.Run{Kind: kind, ProjectGlobalID: globalID}
	}
	return s.history.Start(kind, globalID)
}

func (s *Service) finishRun(ctx context.Context, run *activity.Run, runErr error) {
	if s.history == nil {
		return
	}
	_ = s.history.Finish(ctx, run, runErr)
}

func indexRequest(snap *project.Snapshot) project.IndexRequest {
	return project.IndexRequest{
		Name:        snap.Name,
		Description: snap.Description,
		Location:    snap.LocalPath,
		Hash:        snap.CompositeHash,
		GlobalID:    snap.GlobalID,
		RemoteID:    snap.RemoteID,
	}
}

func remoteRecord(rf corpus.RemoteFile) project.FileRecord {
	path := rf.Path
	if path == nil {
		path = []string{}
	}
	return project.FileRecord{Category: rf.Category, Path: path, Filename: rf.Name, Digest: rf.Hash}
}

func fileAttrs(rec project.FileRecord, remoteID int64) []any {
	attrs := []any{"category", rec.Category, "path", strings.Join(rec.Path, "/"), "filename", rec.Filename}
	if remoteID != 0 {
		attrs = append(attrs, "remote_id", remoteID)
	}
	return attrs
}
