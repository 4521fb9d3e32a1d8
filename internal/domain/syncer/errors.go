package syncer

import (
	"errors"
	"fmt"

	"github.com/cinderlab/cinder/internal/domain/project"
)

var (
	// ErrSyncInProgress indicates another sync of the same project is running.
	ErrSyncInProgress = errors.New("sync already in progress for project")
	// ErrHashMismatch indicates the remote project hash differs from the
	// local composite hash after a sync. This is a correctness violation.
	ErrHashMismatch = errors.New("remote project hash does not match local hash")
)

// FileError names the file and sub-step a sync failed on, so a retry can be
// aimed at it.
type FileError struct {
	File project.FileRecord
	Step string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("sync %s %s: %v", e.Step, e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
