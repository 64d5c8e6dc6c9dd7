package kvstore

import "fmt"

// StorageError wraps a durable-storage failure with its operation and key.
//
// The cache layers treat storage as best-effort: read failures skip the
// entry, write failures are logged and do not fail the in-memory result.
type StorageError struct {
	Op    string
	Key   string
	cause error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.cause)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.cause)
}

func (e *StorageError) Unwrap() error { return e.cause }

// NewStorageError constructs a StorageError.
func NewStorageError(op, key string, cause error) *StorageError {
	return &StorageError{Op: op, Key: key, cause: cause}
}
