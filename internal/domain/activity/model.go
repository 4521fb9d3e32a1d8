package activity

import "time"

// Kind is the type of remote operation a run performed.
type Kind string

const (
	KindSync Kind = "sync"
	KindPull Kind = "pull"
)

// Status is the outcome of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run records one sync or pull of a project.
type Run struct {
	ID              int64     `json:"id"`
	ProjectGlobalID string    `json:"project_global_id"`
	Kind            Kind      `json:"kind"`
	Status          Status    `json:"status"`
	Uploaded        int       `json:"uploaded"`
	Deleted         int       `json:"deleted"`
	Adopted         int       `json:"adopted"`
	Downloaded      int       `json:"downloaded"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
