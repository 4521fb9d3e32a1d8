package activity

// ListOptions provides filtering options for listing runs.
type ListOptions struct {
	ProjectGlobalID string
	Kind            *Kind
	Limit           int
	Offset          int
}
