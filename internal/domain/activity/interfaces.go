package activity

import "context"

// Repository provides persistence operations for sync runs.
type Repository interface {
	Log(ctx context.Context, run *Run) error
	List(ctx context.Context, opts ListOptions) ([]Run, error)
}
