package alerting

import "fmt"

// StorageError represents an error from the alert ledger backend.
// Ledger-level failures are fatal to a sweep run; per-subject evaluation
// failures are not.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("alert storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// ConsistencyError reports a reference that no longer resolves, e.g. a
// policy whose subject has no recipient. The unit is logged and skipped,
// never deleted automatically.
type ConsistencyError struct {
	SubjectID string
	Reason    string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error [subject=%s]: %s", e.SubjectID, e.Reason)
}

// NewConsistencyError creates a new ConsistencyError.
func NewConsistencyError(subjectID, reason string) *ConsistencyError {
	return &ConsistencyError{SubjectID: subjectID, Reason: reason}
}
