package docstore

// Op constants name the remote calls for error context.
const (
	OpSearch        = "search"
	OpScroll        = "scroll"
	OpBulk          = "bulk"
	OpDelete        = "delete"
	OpDeleteByQuery = "delete_by_query"
	OpRefresh       = "refresh"
	OpHealth        = "cluster_health"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
