package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	// SnapshotFile is the structured snapshot written at the project root.
	SnapshotFile = "project.json"
	// HashFile is the sidecar holding the composite hash as one hex line.
	HashFile = "project.sha1"
	// DataDir is the folder below the project root holding category folders.
	DataDir = "data"
)

// Store reads and writes the on-disk snapshot of a project folder.
type Store struct {
	fs afero.Fs
}

// NewStore creates a store over fs.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// Load reads the snapshot stored in dir. The local and data paths are taken
// from dir rather than from the file, so a moved folder still opens.
func (s *Store) Load(dir string) (*Snapshot, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, SnapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotInitialized)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", dir, err)
	}
	snap.LocalPath = dir
	snap.DataPath = filepath.Join(dir, DataDir)
	snap.normalize()
	return &snap, nil
}

// ReadHash returns the composite hash recorded in the sidecar file.
func (s *Store) ReadHash(dir string) (string, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, HashFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", dir, ErrNotInitialized)
	}
	if err != nil {
		return "", fmt.Errorf("read hash sidecar: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the snapshot and its hash sidecar to snap.LocalPath. Both files
// are written to temporaries first and then renamed over the originals, so a
// crash never leaves a half-written snapshot behind.
func (s *Store) Save(snap *Snapshot) error {
	if snap.LocalPath == "" {
		return fmt.Errorf("save snapshot: %w: empty project path", ErrInvalidInput)
	}
	snap.normalize()

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	snapTmp, err := s.writeTemp(snap.LocalPath, SnapshotFile, body)
	if err != nil {
		return err
	}
	hashTmp, err := s.writeTemp(snap.LocalPath, HashFile, []byte(snap.CompositeHash))
	if err != nil {
		_ = s.fs.Remove(snapTmp)
		return err
	}

	if err := s.fs.Rename(snapTmp, filepath.Join(snap.LocalPath, SnapshotFile)); err != nil {
		_ = s.fs.Remove(snapTmp)
		_ = s.fs.Remove(hashTmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	if err := s.fs.Rename(hashTmp, filepath.Join(snap.LocalPath, HashFile)); err != nil {
		_ = s.fs.Remove(hashTmp)
		return fmt.Errorf("replace hash sidecar: %w", err)
	}
	return nil
}

func (s *Store) writeTemp(dir, name string, body []byte) (string, error) {
	f, err := afero.TempFile(s.fs, dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp %s: %w", name, err)
	}
	tmp := f.Name()
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("write temp %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("close temp %s: %w", name, err)
	}
	return tmp, nil
}
