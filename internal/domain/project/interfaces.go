package project

import "context"

// IndexRequest carries the summary fields cached in the local index.
type IndexRequest struct {
	Name        string
	Description string
	Location    string
	Hash        string
	GlobalID    string
	RemoteID    *int64
}

// IndexEntry is what the index assigns on create.
type IndexEntry struct {
	RowID    int64
	GlobalID string
}

// Indexer keeps the local index in step with saved projects.
type Indexer interface {
	Create(ctx context.Context, req IndexRequest) (IndexEntry, error)
	Update(ctx context.Context, rowID int64, req IndexRequest) error
	Delete(ctx context.Context, rowID int64) error
}
