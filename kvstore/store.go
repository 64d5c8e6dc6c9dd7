// Package kvstore abstracts the durable key-value storage used by the disk
// embedding cache and the vector index.
//
// Cache logic never touches files directly; swapping the file-per-key layout
// for an embedded database or an object store is a constructor change only.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist.
//
// Implementations must return an error that satisfies
// errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a durable key-value store.
//
// Keys are expected to be path-safe (hex fingerprints, decimal record IDs and
// the like). Values are opaque byte slices; implementations may not retain
// the slice passed to Put after it returns.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix, in unspecified order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}
