package activity

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// Service records the history of sync and pull runs.
type Service struct {
	repo   Repository
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, clock: clock, logger: logger}
}

// Start returns a run stamped with the current time. Nothing is stored until
// Finish.
func (s *Service) Start(kind Kind, projectGlobalID string) *Run {
	return &Run{
		ProjectGlobalID: projectGlobalID,
		Kind:            kind,
		StartedAt:       s.clock.Now().UTC(),
	}
}

// Finish stamps the run with its outcome and stores it. A failure to store
// history is returned but never masks runErr for the caller.
func (s *Service) Finish(ctx context.Context, run *Run, runErr error) error {
	if run == nil {
		return ErrInvalidInput
	}
	run.FinishedAt = s.clock.Now().UTC()
	run.Status = StatusSucceeded
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}
	// History must be written even when the run was cancelled.
	if err := s.repo.Log(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("failed to record sync activity", "global_id", run.ProjectGlobalID, "error", err)
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// History lists runs, newest first.
func (s *Service) History(ctx context.Context, opts ListOptions) ([]Run, error) {
	return s.repo.List(ctx, opts)
}
