package project

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized indicates a folder without a project.json.
	ErrNotInitialized = errors.New("project folder not initialized")
	// ErrAlreadyInitialized indicates a folder that already holds a project.
	ErrAlreadyInitialized = errors.New("project folder already initialized")
	// ErrUnknownCategory indicates a category outside the configured set.
	ErrUnknownCategory = errors.New("unknown file category")
	// ErrFileNotTracked indicates a record absent from the snapshot.
	ErrFileNotTracked = errors.New("file not tracked by project")
	// ErrInvalidInput indicates invalid project input.
	ErrInvalidInput = errors.New("invalid project input")
	// ErrIntegrity is wrapped by every IntegrityError.
	ErrIntegrity = errors.New("integrity error")
)

// IntegrityError reports a file whose digest could not be computed. The file
// is left out of the refresh that produced it.
type IntegrityError struct {
	Location Location
	Err      error
}

func (e *IntegrityError) Error() string {
	rel := string(e.Location.Category)
	if e.Location.Path != "" {
		rel += "/" + e.Location.Path
	}
	return fmt.Sprintf("integrity error: %s/%s: %v", rel, e.Location.Filename, e.Err)
}

func (e *IntegrityError) Unwrap() []error {
	return []error{ErrIntegrity, e.Err}
}
