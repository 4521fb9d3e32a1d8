package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cinderlab/cinder/internal/digest"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// RefreshResult describes what a refresh observed.
type RefreshResult struct {
	// Removed holds previously tracked records with no identical successor.
	// They are acted upon by the next sync, not by the refresh itself.
	Removed []FileRecord
	// Failures holds files whose digest could not be computed.
	Failures []*IntegrityError
	Hash     string
}

// Tree keeps a snapshot's file mapping consistent with its data folder.
type Tree struct {
	fs         afero.Fs
	store      *Store
	categories []Category
	logger     *slog.Logger
}

// NewTree creates a tree walker for the given categories.
func NewTree(fs afero.Fs, categories []Category, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tree{
		fs:         fs,
		store:      NewStore(fs),
		categories: slices.Clone(categories),
		logger:     logger,
	}
}

// Categories returns the configured categories.
func (t *Tree) Categories() []Category {
	return slices.Clone(t.categories)
}

// Store returns the snapshot store used by the tree.
func (t *Tree) Store() *Store {
	return t.store
}

// FS returns the filesystem the tree operates on.
func (t *Tree) FS() afero.Fs {
	return t.fs
}

// HasCategory reports whether c is configured.
func (t *Tree) HasCategory(c Category) bool {
	return slices.Contains(t.categories, c)
}

// Initialize lays out a new project folder at dir, mints its global id and
// writes the first snapshot.
func (t *Tree) Initialize(ctx context.Context, dir, name string) (*Snapshot, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	if ok, _ := afero.Exists(t.fs, filepath.Join(dir, SnapshotFile)); ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrAlreadyInitialized)
	}

	snap := &Snapshot{
		GlobalID:  uuid.NewString(),
		Name:      name,
		LocalPath: dir,
		DataPath:  filepath.Join(dir, DataDir),
		Metadata:  Metadata{},
		Files:     map[Category][]FileRecord{},
	}
	if _, err := t.Refresh(ctx, snap); err != nil {
		return nil, err
	}
	t.logger.Info("project initialized", "name", name, "path", dir, "global_id", snap.GlobalID)
	return snap, nil
}

// Open loads the snapshot of an existing project folder.
func (t *Tree) Open(dir string) (*Snapshot, error) {
	return t.store.Load(dir)
}

// Layout creates the data folder and one folder per category.
func (t *Tree) Layout(snap *Snapshot) error {
	for _, cat := range t.categories {
		if err := t.fs.MkdirAll(filepath.Join(snap.DataPath, string(cat)), 0o755); err != nil {
			return fmt.Errorf("create category folder %s: %w", cat, err)
		}
	}
	return nil
}

// Refresh re-walks the data folder, rebuilds the file mapping, carries remote
// ids forward for unchanged files, recomputes the composite hash and persists
// the snapshot.
func (t *Tree) Refresh(ctx context.Context, snap *Snapshot) (*RefreshResult, error) {
	if snap.DataPath == "" {
		snap.DataPath = filepath.Join(snap.LocalPath, DataDir)
	}
	if err := t.Layout(snap); err != nil {
		return nil, err
	}

	scan, err := t.scan(ctx, snap)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Failures: scan.failures}
	for _, prev := range snap.AllFiles() {
		if _, ok := scan.keys[prev.Key()]; ok {
			continue
		}
		if scan.unreadable(prev) {
			continue
		}
		result.Removed = append(result.Removed, prev)
	}

	snap.Files = scan.files
	snap.CompositeHash = CompositeHash(snap.AllFiles())
	result.Hash = snap.CompositeHash

	if err := t.store.Save(snap); err != nil {
		return nil, err
	}

	t.logger.Debug("project refreshed",
		"path", snap.LocalPath,
		"files", snap.FileCount(),
		"removed", len(result.Removed),
		"failures", len(result.Failures),
		"hash", snap.CompositeHash,
	)
	return result, nil
}

// Verify recomputes the composite hash of the data folder without touching
// the snapshot and compares it with the hash sidecar.
func (t *Tree) Verify(ctx context.Context, snap *Snapshot) (bool, error) {
	recorded, err := t.store.ReadHash(snap.LocalPath)
	if err != nil {
		return false, err
	}
	scan, err := t.scan(ctx, snap)
	if err != nil {
		return false, err
	}
	if len(scan.failures) > 0 {
		return false, scan.failures[0]
	}
	var all []FileRecord
	for _, records := range scan.files {
		all = append(all, records...)
	}
	return CompositeHash(all) == recorded, nil
}

// CompositeHash folds the digests of records in canonical order. The input
// slice is not modified.
func CompositeHash(records []FileRecord) string {
	sorted := slices.Clone(records)
	SortRecords(sorted)
	digests := make([]string, len(sorted))
	for i, rec := range sorted {
		digests[i] = rec.Digest
	}
	return digest.Fold(digests)
}

type scanResult struct {
	files      map[Category][]FileRecord
	keys       map[FileKey]struct{}
	failures   []*IntegrityError
	failedLocs map[Location]struct{}
	failedDirs []string
}

// unreadable reports whether rec sits where the walk could not look, in which
// case its absence from the fresh mapping says nothing about the disk.
func (s *scanResult) unreadable(rec FileRecord) bool {
	if _, ok := s.failedLocs[rec.Loc()]; ok {
		return true
	}
	rel := rec.RelPath()
	for _, dir := range s.failedDirs {
		if strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}

func (t *Tree) scan(ctx context.Context, snap *Snapshot) (*scanResult, error) {
	previous := make(map[FileKey]*int64)
	for _, records := range snap.Files {
		for _, rec := range records {
			if rec.RemoteID != nil {
				previous[rec.Key()] = rec.RemoteID
			}
		}
	}

	res := &scanResult{
		files:      make(map[Category][]FileRecord, len(t.categories)),
		keys:       make(map[FileKey]struct{}),
		failedLocs: make(map[Location]struct{}),
	}
	for _, cat := range t.categories {
		res.files[cat] = []FileRecord{}
	}

	root := snap.DataPath
	walkErr := afero.Walk(t.fs, root, func(p string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if p == root {
				return fmt.Errorf("walk data folder: %w", err)
			}
			// An unreadable directory or entry: keep what was known about it.
			t.logger.Warn("skipping unreadable entry", "path", p, "error", err)
			res.failedDirs = append(res.failedDirs, rel)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		parts := strings.Split(rel, "/")
		if len(parts) < 2 || !t.HasCategory(Category(parts[0])) {
			return nil
		}
		rec := FileRecord{
			Category: Category(parts[0]),
			Path:     slices.Clone(parts[1 : len(parts)-1]),
			Filename: parts[len(parts)-1],
		}

		sum, hashErr := digest.File(t.fs, p)
		if hashErr != nil {
			if errors.Is(hashErr, os.ErrNotExist) {
				// Deleted between listing and hashing.
				return nil
			}
			ierr := &IntegrityError{Location: rec.Loc(), Err: hashErr}
			t.logger.Warn("excluding file from refresh", "category", rec.Category, "path", strings.Join(rec.Path, "/"), "filename", rec.Filename, "error", hashErr)
			res.failures = append(res.failures, ierr)
			res.failedLocs[rec.Loc()] = struct{}{}
			return nil
		}
		rec.Digest = sum
		if id, ok := previous[rec.Key()]; ok {
			rec.RemoteID = Int64(*id)
		}

		res.files[rec.Category] = append(res.files[rec.Category], rec)
		res.keys[rec.Key()] = struct{}{}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	for cat := range res.files {
		SortRecords(res.files[cat])
	}
	return res, nil
}
