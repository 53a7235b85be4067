package ncm

import "fmt"

// InvalidModeTransitionError reports an attempted operation that the
// current OperationMode does not authorize. Nothing in this module
// returns it; Core reports unauthorized operations as store.StatusAccess.
type InvalidModeTransitionError struct {
	Mode      fmt.Stringer
	Operation string
}

func (e *InvalidModeTransitionError) Error() string {
	return fmt.Sprintf("ncm: %s not authorized for mode %s", e.Operation, e.Mode)
}

// NotInitializedError is returned by admin/status callers that query a
// Core before its first config has published.
type NotInitializedError struct {
	NodeID uint64
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("ncm: node %d has not published a configuration yet", e.NodeID)
}
