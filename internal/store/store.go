// Package store provides durable key/value persistence for client-side state
// such as the session snapshot. Records are grouped by namespace.
package store

import "errors"

// ErrNotFound is returned when a namespace or key holds no record.
var ErrNotFound = errors.New("record not found")

// Backend defines the persistence operations the client needs.
// Implementations must be safe for concurrent use.
type Backend interface {
	Get(namespace, key string) ([]byte, error)
	Put(namespace, key string, value []byte) error
	// Delete removes a record. Deleting a missing record is not an error.
	Delete(namespace, key string) error
	Close() error
}
