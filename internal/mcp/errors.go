package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinderlab/cinder/internal/config"
	"github.com/cinderlab/cinder/internal/corpus"
	"github.com/cinderlab/cinder/internal/domain/index"
	"github.com/cinderlab/cinder/internal/domain/project"
	"github.com/cinderlab/cinder/internal/domain/syncer"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var integrity *project.IntegrityError
	var fileErr *syncer.FileError
	switch {
	case errors.Is(err, index.ErrProjectNotFound):
		return &APIError{Code: "PROJECT_NOT_FOUND", Message: "project not found", RecoveryHint: "Call list_projects for valid row ids"}
	case errors.Is(err, project.ErrNotInitialized):
		return &APIError{Code: "FOLDER_MISSING", Message: err.Error(), RecoveryHint: "The project folder was moved or deleted"}
	case errors.Is(err, index.ErrInvalidInput), errors.Is(err, project.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.As(err, &integrity):
		return &APIError{Code: "INTEGRITY_ERROR", Message: "file could not be read", Details: integrity.Location, RecoveryHint: "Fix file permissions and refresh"}
	case errors.Is(err, syncer.ErrSyncInProgress):
		return &APIError{Code: "SYNC_IN_PROGRESS", Message: "another sync of this project is running", RecoveryHint: "Retry when it finishes"}
	case errors.Is(err, syncer.ErrHashMismatch):
		return &APIError{Code: "HASH_MISMATCH", Message: err.Error(), RecoveryHint: "Run sync_project again"}
	case errors.Is(err, config.ErrConfiguration):
		return &APIError{Code: "CONFIGURATION_ERROR", Message: err.Error(), RecoveryHint: "Set CINDER_API_KEY or edit the config file"}
	case errors.Is(err, corpus.ErrUnauthorized):
		return &APIError{Code: "UNAUTHORIZED", Message: "corpus server rejected the API key"}
	case errors.As(err, &fileErr):
		return &APIError{Code: "SYNC_FAILED", Message: err.Error(), Details: fileErr.File.RelPath(), RecoveryHint: "Run sync_project again to resume"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &APIError{Code: "CANCELLED", Message: err.Error(), RecoveryHint: "Run sync_project again to resume"}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
