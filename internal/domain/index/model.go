package index

import (
	"time"

	"github.com/cinderlab/cinder/internal/domain/project"
)

// Entry is one cached project summary. RowID is a local surrogate key; the
// project's identity across systems is GlobalID.
type Entry struct {
	RowID       int64     `json:"row_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	GlobalID    string    `json:"global_id"`
	CreatedAt   time.Time `json:"created_at"`
	Hash        string    `json:"sha1_hash"`
	RemoteID    *int64    `json:"remote_id,omitempty"`
}

// SearchOptions selects a page of entries matching Term.
type SearchOptions struct {
	Term   string
	Offset int
	Limit  int
}

// Item is one search hit. Snapshot is nil when the folder could not be
// loaded, e.g. after it was moved.
type Item struct {
	Entry    Entry             `json:"entry"`
	Snapshot *project.Snapshot `json:"snapshot,omitempty"`
}

// SearchResult is one page of matches plus the grand total.
type SearchResult struct {
	Total  int    `json:"total"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Items  []Item `json:"items"`
}

// Pages returns the number of pages of Limit entries needed for Total.
func (r SearchResult) Pages() int {
	if r.Limit <= 0 {
		return 0
	}
	return (r.Total + r.Limit - 1) / r.Limit
}
