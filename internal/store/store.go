// Package store provides the key-value backends and the chunked large-object
// store built on top of them.
package store

import (
	"context"
	"errors"
	"fmt"
)

// KV is a string key-value backend with a per-value size ceiling and no
// cross-key atomicity.
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error

	// List returns every key starting with prefix, in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// ConditionalKV is a KV that can write a key only when it is absent.
type ConditionalKV interface {
	KV

	// PutIfAbsent stores value unless key already exists. It reports
	// whether the write happened.
	PutIfAbsent(ctx context.Context, key, value string) (bool, error)
}

var (
	// ErrEmpty means nothing has been stored under the object name.
	ErrEmpty = errors.New("nothing stored")

	// ErrCorrupt means metadata exists but the chunks it describes cannot be
	// reassembled into the recorded document.
	ErrCorrupt = errors.New("stored document is corrupt")

	// ErrConflict means another writer stored its metadata first.
	ErrConflict = errors.New("concurrent write conflict")

	// ErrValueTooLarge means a value exceeds the backend's ceiling.
	ErrValueTooLarge = errors.New("value exceeds size limit")
)

// StorageError records a failed backend call.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
